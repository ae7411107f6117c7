package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loopin-chat/api"
	"loopin-chat/cache"
	"loopin-chat/chat"
	"loopin-chat/db"
	"loopin-chat/handlers"
	"loopin-chat/models"
	"loopin-chat/persistence"
	"loopin-chat/socket"
	"loopin-chat/utils"
)

func main() {
	// Carica la configurazione
	config, err := utils.LoadConfig("config.json")
	if err != nil {
		fmt.Println("Errore nel caricamento della configurazione:", err)
		return
	}

	logger, err := utils.NewLogger()
	if err != nil {
		fmt.Println("Errore nell'inizializzazione del logger:", err)
		return
	}
	defer logger.Sync()

	// Database SQLite per le credenziali
	dbManager, err := db.NewSQLiteManager(config.Storage.SQLitePath)
	if err != nil {
		logger.Errorw("Errore nella connessione al database SQLite", "error", err)
		return
	}
	defer dbManager.Close()

	if err := dbManager.InitTables(); err != nil {
		logger.Errorw("Errore nell'inizializzazione delle tabelle", "error", err)
		return
	}

	if token := os.Getenv("LOOPIN_TOKEN"); token != "" {
		if err := dbManager.SaveToken(token); err != nil {
			logger.Warnw("Errore nel salvataggio del token", "error", err)
		}
	}

	// Cache di riconciliazione, precaricata dall'ultimo snapshot
	store := cache.New()

	pm, err := persistence.NewPersistenceManager(config.Storage.SnapshotPath)
	if err != nil {
		logger.Warnw("Snapshot non disponibile, si riparte a vuoto", "error", err)
		pm = nil
	} else {
		defer pm.Close()
		if chats, err := pm.LoadChats(); err == nil && len(chats) > 0 {
			store.Set(cache.ChatsKey(), func(interface{}) interface{} { return chats })
			logger.Infow("Chat ripristinate dallo snapshot", "count", len(chats))
		}
		if all, err := pm.LoadAllMessages(); err == nil {
			for chatID, messages := range all {
				msgs := messages
				store.Set(cache.MessagesKey(chatID), func(interface{}) interface{} { return msgs })
			}
		}
	}

	// Client REST verso il backend
	restClient := api.NewClient(config.Backend.APIURL, dbManager.GetToken)

	// Quando la lista chat viene invalidata la si ricarica dal backend
	store.OnInvalidate(func(key cache.Key) {
		if key != cache.ChatsKey() {
			return
		}
		go func() {
			page, err := restClient.GetChats(context.Background(), 20, "")
			if err != nil {
				logger.Warnw("Errore nel ricaricamento delle chat", "error", err)
				return
			}
			store.Set(cache.ChatsKey(), func(interface{}) interface{} {
				return page.Chats
			})
		}()
	})

	// Client WebSocket verso il backend
	sock := socket.NewClient(config.Backend.SocketURL, dbManager.GetToken, logger)
	if err := sock.Connect(); err != nil {
		logger.Warnw("Connessione WebSocket non riuscita, si continua offline", "error", err)
	}

	// Tracker dei non letti, attivo per tutta la vita del processo
	tracker := chat.NewTracker(sock, store, logger)
	tracker.Start()
	defer tracker.Stop()

	// Inoltra gli eventi del backend ai client UI locali
	handlers.RegisterFanout(sock)

	app := &handlers.App{
		Cache:         store,
		Tracker:       tracker,
		Rest:          restClient,
		Sock:          sock,
		CurrentUserID: config.CurrentUserID,
		Log:           logger,
	}

	router := gin.Default()
	handlers.SetupAPIRoutes(router, app)

	// Avvia il server HTTP in una goroutine
	go func() {
		port := fmt.Sprintf(":%d", config.Server.Port)
		if err := router.Run(port); err != nil {
			logger.Errorw("Errore nell'avvio del server", "error", err)
		}
	}()

	logger.Infow("Server API avviato", "port", config.Server.Port)

	// Gestisci chiusura corretta
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Disconnessione...")
	sock.Disconnect()

	if pm != nil {
		saveSnapshot(store, pm, logger)
	}
}

// saveSnapshot scrive su disco lo stato corrente della cache
func saveSnapshot(store *cache.Cache, pm *persistence.PersistenceManager, logger *zap.SugaredLogger) {
	for _, key := range store.Keys() {
		value, ok := store.Get(key)
		if !ok {
			continue
		}
		switch {
		case key == cache.ChatsKey():
			if chats, ok := value.([]models.Chat); ok {
				if err := pm.SaveChats(chats); err != nil {
					logger.Warnw("Errore nel salvataggio dello snapshot chat", "error", err)
				}
			}
		case strings.HasPrefix(string(key), "messages:"):
			chatID := strings.TrimPrefix(string(key), "messages:")
			if messages, ok := value.([]models.Message); ok {
				if err := pm.SaveMessages(chatID, messages); err != nil {
					logger.Warnw("Errore nel salvataggio dello snapshot messaggi", "error", err, "chatId", chatID)
				}
			}
		}
	}
}
