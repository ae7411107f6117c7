// Package chat contiene i due controller che riconciliano la vista:
// Conversation per la chat aperta (cronologia paginata + eventi live)
// e Tracker per i non letti a livello di processo. Entrambi scrivono
// nella stessa cache con le stesse regole di merge, su regioni
// disgiunte: Conversation tocca solo la pagina messaggi della chat,
// Tracker solo la voce nella lista chat.
package chat

import (
	"encoding/json"

	"loopin-chat/socket"
)

// Numero di messaggi per pagina nella cronologia
const defaultPageSize = 30

// Socket è la superficie del wrapper di trasporto usata dai controller
type Socket interface {
	On(event string, h socket.Handler)
	Off(event string, h socket.Handler)
	Emit(event string, payload interface{})
}

func decode(payload json.RawMessage, target interface{}) bool {
	return json.Unmarshal(payload, target) == nil
}
