package chat

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"loopin-chat/cache"
	"loopin-chat/models"
	"loopin-chat/socket"
)

// Tracker mantiene l'insieme delle chat con messaggi non letti a
// livello di processo, indipendente da quale chat sia aperta.
// Invariante: la chat attiva non è mai nell'insieme dei non letti.
type Tracker struct {
	sock  Socket
	store *cache.Cache
	log   *zap.SugaredLogger

	mu           sync.Mutex
	unread       map[string]struct{}
	activeChatID string

	onNewMessage socket.Handler
	onSummary    socket.Handler
}

// NewTracker crea il tracker dei non letti (non ancora in ascolto)
func NewTracker(sock Socket, store *cache.Cache, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		sock:   sock,
		store:  store,
		log:    log,
		unread: make(map[string]struct{}),
	}
}

// Start registra i listener di processo (new_message e riepilogo)
func (t *Tracker) Start() {
	t.onNewMessage = t.handleNewMessage
	t.onSummary = t.handleSummary

	t.sock.On(models.EventNewMessage, t.onNewMessage)
	t.sock.On(models.EventUnreadChatsSummary, t.onSummary)
}

// Stop rimuove i listener
func (t *Tracker) Stop() {
	t.sock.Off(models.EventNewMessage, t.onNewMessage)
	t.sock.Off(models.EventUnreadChatsSummary, t.onSummary)
}

// SetActive marca la chat aperta: esce dall'insieme dei non letti e il
// suo contatore nella lista chat viene azzerato
func (t *Tracker) SetActive(chatID string) {
	t.mu.Lock()
	t.activeChatID = chatID
	delete(t.unread, chatID)
	t.mu.Unlock()

	t.store.Set(cache.ChatsKey(), func(current interface{}) interface{} {
		list := chatsFrom(current)
		for i := range list {
			if list[i].ID == chatID {
				// copy-on-write: gli snapshot consegnati ai lettori
				// condividono l'array sottostante
				out := make([]models.Chat, len(list))
				copy(out, list)
				out[i].UnreadCount = 0
				out[i].LastMessage.IsRead = true
				return out
			}
		}
		return list
	})
}

// ClearActive azzera il marcatore di chat attiva
func (t *Tracker) ClearActive() {
	t.mu.Lock()
	t.activeChatID = ""
	t.mu.Unlock()
}

// ActiveChatID restituisce l'id della chat attiva ("" se nessuna)
func (t *Tracker) ActiveChatID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeChatID
}

// HasUnread indica se la chat ha messaggi non letti
func (t *Tracker) HasUnread(chatID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.unread[chatID]
	return ok
}

// UnreadChatIDs restituisce uno snapshot degli id con non letti
func (t *Tracker) UnreadChatIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.unread))
	for id := range t.unread {
		ids = append(ids, id)
	}
	return ids
}

// Il riepilogo inviato dal server (tipicamente alla connessione)
// sostituisce l'insieme per intero con le chat a contatore positivo
func (t *Tracker) handleSummary(payload json.RawMessage) {
	var p models.UnreadSummaryPayload
	if !decode(payload, &p) {
		return
	}

	next := make(map[string]struct{}, len(p.Chats))
	t.mu.Lock()
	for _, entry := range p.Chats {
		if entry.UnreadCount > 0 && entry.ChatID != t.activeChatID {
			next[entry.ChatID] = struct{}{}
		}
	}
	t.unread = next
	t.mu.Unlock()
}

// Ogni new_message aggiorna la voce della lista chat: in testa, ultimo
// messaggio sovrascritto, letto sse la chat è attiva, contatore +1
// salvo chat attiva (forzato a 0). Chat sconosciuta alla cache →
// refetch completo della lista invece di una patch parziale.
func (t *Tracker) handleNewMessage(payload json.RawMessage) {
	var p models.NewMessagePayload
	if !decode(payload, &p) || p.ChatID == "" {
		return
	}
	msg := p.Message.ToMessage()

	t.mu.Lock()
	active := t.activeChatID == p.ChatID
	if !active {
		t.unread[p.ChatID] = struct{}{}
	}
	t.mu.Unlock()

	found := false
	t.store.Set(cache.ChatsKey(), func(current interface{}) interface{} {
		list := chatsFrom(current)
		for i := range list {
			if list[i].ID != p.ChatID {
				continue
			}
			found = true

			entry := list[i]
			entry.LastMessage = msg
			entry.LastMessage.IsRead = active
			entry.UpdatedAt = msg.CreatedAt
			if active {
				entry.UnreadCount = 0
			} else {
				entry.UnreadCount++
			}

			// sposta la chat in testa (ordinamento per recency)
			rest := append(list[:i:i], list[i+1:]...)
			return append([]models.Chat{entry}, rest...)
		}
		return list
	})

	if !found {
		// deriva della cache: meglio ricaricare tutto che rattoppare
		t.log.Debugw("chat non in cache, refetch della lista", "chatId", p.ChatID)
		t.store.Invalidate(cache.ChatsKey())
	}
}
