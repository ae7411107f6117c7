// Package api è il client REST verso il backend Loopin: lista chat
// paginata e cronologia messaggi per chat. Nessun retry a questo
// livello: i fallimenti risalgono al chiamante con un messaggio generico.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"loopin-chat/models"
)

const defaultTimeout = 30 * time.Second

// TokenFunc restituisce il token bearer corrente
type TokenFunc func() string

// Client è il client HTTP autenticato verso il backend
type Client struct {
	baseURL    string
	tokenFn    TokenFunc
	httpClient *http.Client
}

// NewClient crea un client REST per il backend
func NewClient(baseURL string, tokenFn TokenFunc) *Client {
	return &Client{
		baseURL:    baseURL,
		tokenFn:    tokenFn,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Pagination descrive la continuazione di una pagina (cursore opaco)
type Pagination struct {
	NextCursor string `json:"nextCursor"`
	HasMore    bool   `json:"hasMore"`
}

// ChatsPage è una pagina della lista chat, ordinata per recency
type ChatsPage struct {
	Chats      []models.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

// MessagesPage è una pagina di messaggi (dal più recente) con i
// metadati del partecipante
type MessagesPage struct {
	Messages    []models.Message   `json:"messages"`
	Participant models.Participant `json:"participant"`
	Pagination  Pagination         `json:"pagination"`
}

// Forme wire snake_case delle risposte REST
type wireParticipant struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (w *wireParticipant) toParticipant() models.Participant {
	return models.Participant{
		ID:          w.ID,
		Username:    w.Username,
		DisplayName: w.DisplayName,
		AvatarURL:   w.AvatarURL,
	}
}

type wireChat struct {
	ID          string             `json:"id"`
	Participant wireParticipant    `json:"participant"`
	LastMessage models.WireMessage `json:"last_message"`
	UnreadCount int                `json:"unread_count"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type chatsResponse struct {
	Chats      []wireChat `json:"chats"`
	NextCursor string     `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

type messagesResponse struct {
	Messages    []models.WireMessage `json:"messages"`
	Participant wireParticipant      `json:"participant"`
	NextCursor  string               `json:"next_cursor"`
	HasMore     bool                 `json:"has_more"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetChats carica una pagina della lista chat
func (c *Client) GetChats(ctx context.Context, limit int, cursor string) (*ChatsPage, error) {
	var resp chatsResponse
	if err := c.get(ctx, "/api/v1/chats", limit, cursor, &resp); err != nil {
		return nil, fmt.Errorf("errore nel caricamento delle chat: %w", err)
	}

	page := &ChatsPage{
		Chats:      make([]models.Chat, 0, len(resp.Chats)),
		Pagination: Pagination{NextCursor: resp.NextCursor, HasMore: resp.HasMore},
	}
	for _, wc := range resp.Chats {
		page.Chats = append(page.Chats, models.Chat{
			ID:          wc.ID,
			Participant: wc.Participant.toParticipant(),
			LastMessage: wc.LastMessage.ToMessage(),
			UnreadCount: wc.UnreadCount,
			UpdatedAt:   wc.UpdatedAt,
		})
	}
	return page, nil
}

// GetMessages carica una pagina di messaggi di una chat (dal più
// recente, per la paginazione all'indietro)
func (c *Client) GetMessages(ctx context.Context, chatID string, limit int, cursor string) (*MessagesPage, error) {
	var resp messagesResponse
	path := "/api/v1/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.get(ctx, path, limit, cursor, &resp); err != nil {
		return nil, fmt.Errorf("errore nel caricamento dei messaggi: %w", err)
	}

	page := &MessagesPage{
		Messages:    make([]models.Message, 0, len(resp.Messages)),
		Participant: resp.Participant.toParticipant(),
		Pagination:  Pagination{NextCursor: resp.NextCursor, HasMore: resp.HasMore},
	}
	for _, wm := range resp.Messages {
		page.Messages = append(page.Messages, wm.ToMessage())
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, path string, limit int, cursor string, out interface{}) error {
	u := c.baseURL + path
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if token := c.tokenFn(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Usa il messaggio del server quando c'è, altrimenti lo status
		var apiErr errorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("risposta HTTP %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
