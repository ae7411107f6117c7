package models

import "time"

// Participant rappresenta l'altro utente di una chat a due
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Chat rappresenta una conversazione con un partecipante
type Chat struct {
	ID          string      `json:"id"`
	Participant Participant `json:"participant"`
	LastMessage Message     `json:"lastMessage"`
	UnreadCount int         `json:"unreadCount"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
