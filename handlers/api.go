package handlers

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loopin-chat/api"
	"loopin-chat/cache"
	"loopin-chat/chat"
	"loopin-chat/models"
	"loopin-chat/socket"
)

// App raccoglie le dipendenze esposte dall'API locale e tiene la
// conversazione aperta (al più una alla volta)
type App struct {
	Cache         *cache.Cache
	Tracker       *chat.Tracker
	Rest          *api.Client
	Sock          *socket.Client
	CurrentUserID string
	Log           *zap.SugaredLogger

	mu   sync.Mutex
	open *chat.Conversation
}

// OpenConversation chiude l'eventuale chat aperta e apre quella richiesta
func (a *App) OpenConversation(c *gin.Context, chatID string) (*chat.Conversation, error) {
	a.mu.Lock()
	if a.open != nil {
		a.open.Close()
		a.open = nil
	}
	a.mu.Unlock()

	conv := chat.NewConversation(chatID, a.CurrentUserID, a.Sock, a.Rest, a.Cache, a.Tracker, a.Log)
	if err := conv.Open(c.Request.Context()); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.open = conv
	a.mu.Unlock()
	return conv, nil
}

// CloseConversation chiude la chat aperta, se è quella indicata
func (a *App) CloseConversation(chatID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open != nil && a.open.ChatID() == chatID {
		a.open.Close()
		a.open = nil
	}
}

// Current restituisce la conversazione aperta (nil se nessuna)
func (a *App) Current() *chat.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// SetupAPIRoutes configura tutte le rotte API
func SetupAPIRoutes(router *gin.Engine, app *App) {
	// Abilita CORS
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// WebSocket verso i client UI locali
	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(c.Writer, c.Request)
	})

	// API per ottenere la lista chat riconciliata
	router.GET("/api/chats", func(c *gin.Context) {
		if value, ok := app.Cache.Get(cache.ChatsKey()); ok {
			if list, ok := value.([]models.Chat); ok {
				c.JSON(http.StatusOK, list)
				return
			}
		}

		// Cache vuota: carica la prima pagina dal backend
		page, err := app.Rest.GetChats(c.Request.Context(), 20, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Errore nel caricamento delle chat: %v", err)})
			return
		}

		app.Cache.Set(cache.ChatsKey(), func(interface{}) interface{} {
			return page.Chats
		})
		c.JSON(http.StatusOK, page.Chats)
	})

	// API per ottenere i messaggi in cache di una chat
	router.GET("/api/chats/:id/messages", func(c *gin.Context) {
		chatID := c.Param("id")

		value, ok := app.Cache.Get(cache.MessagesKey(chatID))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat non aperta o nessun messaggio"})
			return
		}

		messages, _ := value.([]models.Message)
		c.JSON(http.StatusOK, messages)
	})

	// API per lo stato dei non letti
	router.GET("/api/unread", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"chatIds":      app.Tracker.UnreadChatIDs(),
			"activeChatId": app.Tracker.ActiveChatID(),
		})
	})

	// API per aprire una chat (carica la cronologia e aggancia i listener)
	router.POST("/api/chats/:id/open", func(c *gin.Context) {
		chatID := c.Param("id")

		conv, err := app.OpenConversation(c, chatID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Errore nell'apertura della chat: %v", err)})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"participant": conv.Participant(),
			"hasMore":     conv.HasMore(),
			"messages":    conv.Messages(),
		})
	})

	// API per chiudere la chat aperta
	router.POST("/api/chats/:id/close", func(c *gin.Context) {
		app.CloseConversation(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// API per caricare una pagina più vecchia della cronologia
	router.POST("/api/chats/:id/older", func(c *gin.Context) {
		conv := app.Current()
		if conv == nil || conv.ChatID() != c.Param("id") {
			c.JSON(http.StatusConflict, gin.H{"error": "Chat non aperta"})
			return
		}

		if err := conv.LoadOlder(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Errore nel caricamento della cronologia: %v", err)})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"hasMore":  conv.HasMore(),
			"messages": conv.Messages(),
		})
	})

	// API per il testo di composizione (pilota start/stop typing)
	router.POST("/api/chats/:id/input", func(c *gin.Context) {
		conv := app.Current()
		if conv == nil || conv.ChatID() != c.Param("id") {
			c.JSON(http.StatusConflict, gin.H{"error": "Chat non aperta"})
			return
		}

		var requestData struct {
			Text string `json:"text"`
		}
		if err := c.BindJSON(&requestData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
			return
		}

		conv.SetInput(requestData.Text)
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// API per inviare il messaggio composto
	router.POST("/api/chats/:id/send", func(c *gin.Context) {
		conv := app.Current()
		if conv == nil || conv.ChatID() != c.Param("id") {
			c.JSON(http.StatusConflict, gin.H{"error": "Chat non aperta"})
			return
		}

		var requestData struct {
			Content          string  `json:"content"`
			ReplyToMessageID string  `json:"replyToMessageId"`
			ImageURL         string  `json:"imageUrl"`
			VoiceURL         string  `json:"voiceUrl"`
			VoiceDuration    float64 `json:"voiceDuration"`
		}
		if err := c.BindJSON(&requestData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
			return
		}

		conv.SetInput(requestData.Content)

		if requestData.ReplyToMessageID != "" {
			// Cerca il messaggio originale nella pagina in cache
			for _, msg := range conv.Messages() {
				if msg.ID == requestData.ReplyToMessageID {
					senderName := conv.Participant().DisplayName
					if msg.SenderID == app.CurrentUserID {
						senderName = "Tu"
					}
					conv.SetReply(msg, senderName)
					break
				}
			}
		}
		if requestData.ImageURL != "" {
			conv.SetImage(requestData.ImageURL)
		}
		if requestData.VoiceURL != "" {
			conv.SetVoice(requestData.VoiceURL, requestData.VoiceDuration)
		}

		conv.Send()
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// API per aggiungere o togliere una reazione
	router.POST("/api/chats/:id/messages/:messageId/reaction", func(c *gin.Context) {
		conv := app.Current()
		if conv == nil || conv.ChatID() != c.Param("id") {
			c.JSON(http.StatusConflict, gin.H{"error": "Chat non aperta"})
			return
		}

		var requestData struct {
			Emoji  string `json:"emoji"`
			Remove bool   `json:"remove"`
		}
		if err := c.BindJSON(&requestData); err != nil || requestData.Emoji == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
			return
		}

		if requestData.Remove {
			conv.RemoveReaction(c.Param("messageId"), requestData.Emoji)
		} else {
			conv.AddReaction(c.Param("messageId"), requestData.Emoji)
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// Endpoint di test
	router.GET("/api/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Il client funziona correttamente",
		})
	})
}
