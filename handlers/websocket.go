package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"loopin-chat/models"
	"loopin-chat/socket"
)

var (
	// WebSocket upgrader per i client UI locali
	wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // Consenti tutte le origini in sviluppo
		},
	}

	wsClients    = make(map[*websocket.Conn]bool)
	wsClientsMux sync.Mutex
)

// Eventi del backend da inoltrare ai client UI locali
var fanoutEvents = []string{
	models.EventNewMessage,
	models.EventMessageSent,
	models.EventUserTyping,
	models.EventUserStoppedTyping,
	models.EventReactionAdded,
	models.EventReactionRemoved,
	models.EventUnreadChatsSummary,
}

// RegisterFanout inoltra ogni evento live del backend ai client
// WebSocket locali, con la stessa busta {type, payload}
func RegisterFanout(sock *socket.Client) {
	for _, event := range fanoutEvents {
		evt := event
		sock.On(evt, func(payload json.RawMessage) {
			BroadcastToClients(evt, payload)
		})
	}
}

// BroadcastToClients invia un messaggio a tutti i client WebSocket connessi
func BroadcastToClients(messageType string, payload json.RawMessage) {
	wsClientsMux.Lock()
	defer wsClientsMux.Unlock()

	if len(wsClients) == 0 {
		return
	}

	wsMessage := models.WSMessage{
		Type:    messageType,
		Payload: payload,
	}

	for client := range wsClients {
		err := client.WriteJSON(wsMessage)
		if err != nil {
			client.Close()
			delete(wsClients, client)
		}
	}
}

// HandleWebSocket gestisce le connessioni WebSocket dei client UI
func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Could not upgrade connection", http.StatusInternalServerError)
		return
	}

	wsClientsMux.Lock()
	wsClients[conn] = true
	wsClientsMux.Unlock()

	// Cleanup quando la connessione viene chiusa
	defer func() {
		wsClientsMux.Lock()
		delete(wsClients, conn)
		wsClientsMux.Unlock()
		conn.Close()
	}()

	// Loop di lettura: i client locali non inviano comandi dal ws
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
