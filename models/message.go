package models

import (
	"time"
)

// Tipi di messaggio supportati dal backend
const (
	MessageTypeText  = "text"
	MessageTypeVoice = "voice"
	MessageTypeReply = "reply"
	MessageTypeImage = "image"
)

// Reaction rappresenta una reazione emoji aggregata su un messaggio.
// In una chat a due partecipanti il count è sempre reactedByMe + reactedByOther.
type Reaction struct {
	Emoji          string `json:"emoji"`
	Count          int    `json:"count"`
	ReactedByMe    bool   `json:"reactedByMe"`
	ReactedByOther bool   `json:"reactedByOther"`
}

// ReplyTo rappresenta il riferimento al messaggio citato in una risposta
type ReplyTo struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
}

// Message rappresenta un messaggio di chat
type Message struct {
	ID            string     `json:"id"`
	Content       string     `json:"content"`
	MessageType   string     `json:"messageType"`
	ReplyTo       *ReplyTo   `json:"replyTo,omitempty"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	VoiceURL      string     `json:"voiceUrl,omitempty"`
	VoiceDuration float64    `json:"voiceDuration,omitempty"`
	IsRead        bool       `json:"isRead"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	SenderID      string     `json:"senderId"`
	Reactions     []Reaction `json:"reactions,omitempty"`
}

// ReplyContext è lo snapshot del messaggio a cui si sta rispondendo
// nel box di composizione. Vive solo in memoria, mai persistito.
type ReplyContext struct {
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
	SenderName string `json:"senderName"`
	HadImage   bool   `json:"hadImage"`
	HadVoice   bool   `json:"hadVoice"`
}
