package models

import (
	"encoding/json"
	"time"
)

// WSMessage rappresenta una busta WebSocket {type, payload}
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Eventi in arrivo dal backend
const (
	EventNewMessage         = "new_message"
	EventMessageSent        = "message_sent"
	EventUserTyping         = "user_typing"
	EventUserStoppedTyping  = "user_stopped_typing"
	EventReactionAdded      = "reaction_added"
	EventReactionRemoved    = "reaction_removed"
	EventUnreadChatsSummary = "unread_chats_summary"
)

// Eventi emessi verso il backend
const (
	EventJoinChat       = "join_chat"
	EventLeaveChat      = "leave_chat"
	EventStartTyping    = "start_typing"
	EventStopTyping     = "stop_typing"
	EventSendMessage    = "send_message"
	EventAddReaction    = "add_reaction"
	EventRemoveReaction = "remove_reaction"
)

// WireSender è il mittente annidato nei payload del backend
type WireSender struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// WireMessage è un messaggio così come viaggia sul filo (snake_case).
// Il campo sender_id può mancare: in quel caso si ricava dal sender
// annidato o dal vecchio campo senderId (catena di fallback).
type WireMessage struct {
	ID              string      `json:"id"`
	ChatID          string      `json:"chat_id"`
	Content         string      `json:"content"`
	MessageType     string      `json:"message_type"`
	ReplyToID       string      `json:"reply_to_id,omitempty"`
	ReplyToContent  string      `json:"reply_to_content,omitempty"`
	ReplyToSenderID string      `json:"reply_to_sender_id,omitempty"`
	ImageURL        string      `json:"image_url,omitempty"`
	VoiceURL        string      `json:"voice_url,omitempty"`
	VoiceDuration   float64     `json:"voice_duration,omitempty"`
	IsRead          bool        `json:"is_read"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Sender          *WireSender `json:"sender,omitempty"`
	SenderID        string      `json:"sender_id,omitempty"`
	SenderIDLegacy  string      `json:"senderId,omitempty"`
}

// ResolveSenderID applica la catena di fallback sender.id → sender_id → senderId
func (w *WireMessage) ResolveSenderID() string {
	if w.Sender != nil && w.Sender.ID != "" {
		return w.Sender.ID
	}
	if w.SenderID != "" {
		return w.SenderID
	}
	return w.SenderIDLegacy
}

// ToMessage converte il payload wire nel modello interno camelCase
func (w *WireMessage) ToMessage() Message {
	msg := Message{
		ID:            w.ID,
		Content:       w.Content,
		MessageType:   w.MessageType,
		ImageURL:      w.ImageURL,
		VoiceURL:      w.VoiceURL,
		VoiceDuration: w.VoiceDuration,
		IsRead:        w.IsRead,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
		SenderID:      w.ResolveSenderID(),
		Reactions:     []Reaction{},
	}
	if msg.MessageType == "" {
		msg.MessageType = MessageTypeText
	}
	if w.ReplyToID != "" {
		msg.ReplyTo = &ReplyTo{
			MessageID: w.ReplyToID,
			Content:   w.ReplyToContent,
			SenderID:  w.ReplyToSenderID,
		}
	}
	return msg
}

// NewMessagePayload è il payload di new_message e message_sent
type NewMessagePayload struct {
	ChatID  string      `json:"chat_id"`
	Message WireMessage `json:"message"`
}

// TypingPayload è il payload di user_typing e user_stopped_typing
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ReactionPayload è il payload di reaction_added e reaction_removed.
// Il backend riusa il nome evento anche per gli ack: un payload senza
// tutti i campi obbligatori va scartato, non interpretato.
type ReactionPayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"user_id"`
}

// IsComplete verifica la presenza di tutti i campi obbligatori
func (p *ReactionPayload) IsComplete() bool {
	return p.ChatID != "" && p.MessageID != "" && p.Emoji != "" && p.UserID != ""
}

// UnreadSummaryEntry è una voce del riepilogo non letti inviato alla connessione
type UnreadSummaryEntry struct {
	ChatID      string `json:"chat_id"`
	UnreadCount int    `json:"unread_count"`
}

// UnreadSummaryPayload è il payload di unread_chats_summary
type UnreadSummaryPayload struct {
	Chats []UnreadSummaryEntry `json:"chats"`
}

// ChatRefPayload è il payload di join_chat e leave_chat
type ChatRefPayload struct {
	ChatID string `json:"chat_id"`
}

// SendMessagePayload è il payload in uscita di send_message
type SendMessagePayload struct {
	ChatID         string  `json:"chat_id"`
	Content        string  `json:"content"`
	MessageType    string  `json:"message_type"`
	ReplyToID      string  `json:"reply_to_id,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	IsFirstMessage bool    `json:"is_first_message"`
	VoiceURL       string  `json:"voice_url,omitempty"`
	VoiceDuration  float64 `json:"voice_duration,omitempty"`
	ClientKey      string  `json:"client_key,omitempty"`
}
