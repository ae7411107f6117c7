package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loopin-chat/api"
	"loopin-chat/cache"
	"loopin-chat/models"
	"loopin-chat/socket"
)

// Conversation orchestra la chat attualmente aperta: carica la
// cronologia a pagine, si iscrive agli eventi live della chat e li
// fonde nella pagina in cache con de-dup per id. Ne esiste al più una
// aperta alla volta.
type Conversation struct {
	chatID        string
	currentUserID string

	sock    Socket
	rest    *api.Client
	store   *cache.Cache
	tracker *Tracker
	log     *zap.SugaredLogger

	mu          sync.Mutex
	participant models.Participant
	nextCursor  string
	hasMore     bool

	// stato effimero di composizione
	inputText     string
	isTyping      bool
	otherTyping   bool
	reply         *models.ReplyContext
	imageURL      string
	voiceURL      string
	voiceDuration float64

	// gli handler vengono conservati così Off riceve lo stesso riferimento
	onNewMessage        socket.Handler
	onMessageSent       socket.Handler
	onUserTyping        socket.Handler
	onUserStoppedTyping socket.Handler
	onReactionAdded     socket.Handler
	onReactionRemoved   socket.Handler
}

// NewConversation prepara il controller per una chat (non apre nulla)
func NewConversation(chatID, currentUserID string, sock Socket, rest *api.Client, store *cache.Cache, tracker *Tracker, log *zap.SugaredLogger) *Conversation {
	return &Conversation{
		chatID:        chatID,
		currentUserID: currentUserID,
		sock:          sock,
		rest:          rest,
		store:         store,
		tracker:       tracker,
		log:           log,
	}
}

// Open marca la chat come attiva, carica la prima pagina di cronologia
// e si iscrive agli eventi live. Il fallimento del fetch risale al
// chiamante; nessun retry a questo livello.
func (c *Conversation) Open(ctx context.Context) error {
	c.tracker.SetActive(c.chatID)

	page, err := c.rest.GetMessages(ctx, c.chatID, defaultPageSize, "")
	if err != nil {
		// il chiamante scarta la conversazione: senza rollback la chat
		// resterebbe marcata attiva e i suoi non letti andrebbero persi
		c.tracker.ClearActive()
		return fmt.Errorf("apertura chat %s: %w", c.chatID, err)
	}

	ordered := reversePage(page.Messages)
	c.store.Set(cache.MessagesKey(c.chatID), func(interface{}) interface{} {
		return ordered
	})

	c.mu.Lock()
	c.participant = page.Participant
	c.nextCursor = page.Pagination.NextCursor
	c.hasMore = page.Pagination.HasMore
	c.mu.Unlock()

	c.sock.Emit(models.EventJoinChat, models.ChatRefPayload{ChatID: c.chatID})
	c.subscribe()
	return nil
}

// LoadOlder carica la pagina precedente e la antepone alla sequenza
// cronologica esistente
func (c *Conversation) LoadOlder(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	cursor := c.nextCursor
	c.mu.Unlock()

	page, err := c.rest.GetMessages(ctx, c.chatID, defaultPageSize, cursor)
	if err != nil {
		return fmt.Errorf("caricamento cronologia chat %s: %w", c.chatID, err)
	}

	older := reversePage(page.Messages)
	c.store.Set(cache.MessagesKey(c.chatID), func(current interface{}) interface{} {
		existing := messagesFrom(current)
		merged := make([]models.Message, 0, len(older)+len(existing))
		merged = append(merged, older...)
		return append(merged, existing...)
	})

	c.mu.Lock()
	c.nextCursor = page.Pagination.NextCursor
	c.hasMore = page.Pagination.HasMore
	c.mu.Unlock()
	return nil
}

// Close rimuove i sei listener, lascia il gruppo di presenza della chat
// e azzera il marcatore globale di chat attiva (sicuro: al più una
// chat è aperta alla volta)
func (c *Conversation) Close() {
	c.sock.Off(models.EventNewMessage, c.onNewMessage)
	c.sock.Off(models.EventMessageSent, c.onMessageSent)
	c.sock.Off(models.EventUserTyping, c.onUserTyping)
	c.sock.Off(models.EventUserStoppedTyping, c.onUserStoppedTyping)
	c.sock.Off(models.EventReactionAdded, c.onReactionAdded)
	c.sock.Off(models.EventReactionRemoved, c.onReactionRemoved)

	c.sock.Emit(models.EventLeaveChat, models.ChatRefPayload{ChatID: c.chatID})
	c.tracker.ClearActive()
}

// ChatID restituisce l'id della chat aperta
func (c *Conversation) ChatID() string {
	return c.chatID
}

// Participant restituisce i metadati dell'altro utente
func (c *Conversation) Participant() models.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant
}

// HasMore indica se esistono pagine più vecchie da caricare
func (c *Conversation) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// OtherTyping indica se l'altro utente sta scrivendo
func (c *Conversation) OtherTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.otherTyping
}

// Messages restituisce lo snapshot corrente della pagina in cache
func (c *Conversation) Messages() []models.Message {
	value, _ := c.store.Get(cache.MessagesKey(c.chatID))
	return messagesFrom(value)
}

func (c *Conversation) subscribe() {
	c.onNewMessage = c.handleNewMessage
	c.onMessageSent = c.handleMessageSent
	c.onUserTyping = c.handleUserTyping
	c.onUserStoppedTyping = c.handleUserStoppedTyping
	c.onReactionAdded = c.handleReactionAdded
	c.onReactionRemoved = c.handleReactionRemoved

	c.sock.On(models.EventNewMessage, c.onNewMessage)
	c.sock.On(models.EventMessageSent, c.onMessageSent)
	c.sock.On(models.EventUserTyping, c.onUserTyping)
	c.sock.On(models.EventUserStoppedTyping, c.onUserStoppedTyping)
	c.sock.On(models.EventReactionAdded, c.onReactionAdded)
	c.sock.On(models.EventReactionRemoved, c.onReactionRemoved)
}

// Un new_message del mittente stesso viene ignorato: arriverà come
// message_sent, evitando la doppia inserzione
func (c *Conversation) handleNewMessage(payload json.RawMessage) {
	var p models.NewMessagePayload
	if !decode(payload, &p) || p.ChatID != c.chatID {
		return
	}
	msg := p.Message.ToMessage()
	if msg.ID == "" || msg.SenderID == c.currentUserID {
		return
	}
	c.appendMessage(msg)
}

// Eco del proprio invio: l'id assegnato dal server è quello definitivo
// (nessuna inserzione ottimistica da riconciliare)
func (c *Conversation) handleMessageSent(payload json.RawMessage) {
	var p models.NewMessagePayload
	if !decode(payload, &p) || p.ChatID != c.chatID {
		return
	}
	msg := p.Message.ToMessage()
	if msg.ID == "" {
		return
	}
	c.appendMessage(msg)
}

func (c *Conversation) appendMessage(msg models.Message) {
	c.store.Set(cache.MessagesKey(c.chatID), func(current interface{}) interface{} {
		return appendIfAbsent(messagesFrom(current), msg)
	})
}

func (c *Conversation) handleUserTyping(payload json.RawMessage) {
	c.setOtherTyping(payload, true)
}

func (c *Conversation) handleUserStoppedTyping(payload json.RawMessage) {
	c.setOtherTyping(payload, false)
}

func (c *Conversation) setOtherTyping(payload json.RawMessage, typing bool) {
	var p models.TypingPayload
	if !decode(payload, &p) || p.ChatID != c.chatID || p.UserID == c.currentUserID {
		return
	}
	c.mu.Lock()
	c.otherTyping = typing
	c.mu.Unlock()
}

func (c *Conversation) handleReactionAdded(payload json.RawMessage) {
	c.applyReactionEvent(payload, true)
}

func (c *Conversation) handleReactionRemoved(payload json.RawMessage) {
	c.applyReactionEvent(payload, false)
}

// Gli eventi reazione incompleti vengono scartati in silenzio: il
// backend riusa questi nomi evento anche come ack dell'operazione
func (c *Conversation) applyReactionEvent(payload json.RawMessage, add bool) {
	var p models.ReactionPayload
	if !decode(payload, &p) || !p.IsComplete() || p.ChatID != c.chatID {
		return
	}
	byMe := p.UserID == c.currentUserID

	c.store.Set(cache.MessagesKey(c.chatID), func(current interface{}) interface{} {
		page := messagesFrom(current)
		if add {
			return applyReactionAdd(page, p.MessageID, p.Emoji, byMe)
		}
		return applyReactionRemove(page, p.MessageID, p.Emoji, byMe)
	})
}

// SetInput aggiorna il testo di composizione. Start/stop typing vengono
// emessi solo sulla transizione vuoto↔non-vuoto, non a ogni tasto.
func (c *Conversation) SetInput(text string) {
	c.mu.Lock()
	wasTyping := c.isTyping
	c.inputText = text
	c.isTyping = text != ""
	nowTyping := c.isTyping
	c.mu.Unlock()

	if nowTyping && !wasTyping {
		c.sock.Emit(models.EventStartTyping, models.ChatRefPayload{ChatID: c.chatID})
	}
	if !nowTyping && wasTyping {
		c.sock.Emit(models.EventStopTyping, models.ChatRefPayload{ChatID: c.chatID})
	}
}

// SetReply registra lo snapshot del messaggio a cui rispondere
// (solo per il rendering del box di composizione)
func (c *Conversation) SetReply(msg models.Message, senderName string) {
	c.mu.Lock()
	c.reply = &models.ReplyContext{
		MessageID:  msg.ID,
		Content:    msg.Content,
		SenderName: senderName,
		HadImage:   msg.ImageURL != "",
		HadVoice:   msg.VoiceURL != "",
	}
	c.mu.Unlock()
}

// ClearReply annulla la risposta in corso
func (c *Conversation) ClearReply() {
	c.mu.Lock()
	c.reply = nil
	c.mu.Unlock()
}

// Reply restituisce il contesto di risposta attivo, se presente
func (c *Conversation) Reply() *models.ReplyContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply
}

// SetImage allega un'immagine già caricata al prossimo invio
func (c *Conversation) SetImage(url string) {
	c.mu.Lock()
	c.imageURL = url
	c.mu.Unlock()
}

// SetVoice allega un messaggio vocale già caricato al prossimo invio
func (c *Conversation) SetVoice(url string, duration float64) {
	c.mu.Lock()
	c.voiceURL = url
	c.voiceDuration = duration
	c.mu.Unlock()
}

// Send emette il messaggio composto sul canale live. No-op se non c'è
// niente da inviare. Priorità del tipo: voice > reply > image > text.
// Al termine azzera typing (con stop_typing se serviva), testo e
// contesto di risposta.
func (c *Conversation) Send() {
	c.mu.Lock()
	text := strings.TrimSpace(c.inputText)
	if c.chatID == "" || (text == "" && c.imageURL == "" && c.voiceURL == "") {
		c.mu.Unlock()
		return
	}

	messageType := models.MessageTypeText
	switch {
	case c.voiceURL != "":
		messageType = models.MessageTypeVoice
	case c.reply != nil:
		messageType = models.MessageTypeReply
	case c.imageURL != "":
		messageType = models.MessageTypeImage
	}

	payload := models.SendMessagePayload{
		ChatID:         c.chatID,
		Content:        text,
		MessageType:    messageType,
		ImageURL:       c.imageURL,
		IsFirstMessage: len(c.Messages()) == 0,
		VoiceURL:       c.voiceURL,
		VoiceDuration:  c.voiceDuration,
		ClientKey:      uuid.NewString(),
	}
	if c.reply != nil {
		payload.ReplyToID = c.reply.MessageID
	}

	wasTyping := c.isTyping
	c.isTyping = false
	c.inputText = ""
	c.reply = nil
	c.imageURL = ""
	c.voiceURL = ""
	c.voiceDuration = 0
	c.mu.Unlock()

	if wasTyping {
		c.sock.Emit(models.EventStopTyping, models.ChatRefPayload{ChatID: c.chatID})
	}
	c.sock.Emit(models.EventSendMessage, payload)
}

// AddReaction emette l'aggiunta di una reazione a un messaggio
func (c *Conversation) AddReaction(messageID, emoji string) {
	c.sock.Emit(models.EventAddReaction, models.ReactionPayload{
		ChatID:    c.chatID,
		MessageID: messageID,
		Emoji:     emoji,
		UserID:    c.currentUserID,
	})
}

// RemoveReaction emette la rimozione di una reazione da un messaggio
func (c *Conversation) RemoveReaction(messageID, emoji string) {
	c.sock.Emit(models.EventRemoveReaction, models.ReactionPayload{
		ChatID:    c.chatID,
		MessageID: messageID,
		Emoji:     emoji,
		UserID:    c.currentUserID,
	})
}
