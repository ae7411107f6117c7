package persistence

import (
	"bytes"
	"encoding/gob"
	"time"

	"go.etcd.io/bbolt"

	"loopin-chat/models"
)

var (
	chatsBucket    = []byte("chats")
	messagesBucket = []byte("messages")

	chatListKey = []byte("list")
)

// PersistenceManager salva su disco uno snapshot della vista
// riconciliata (lista chat + pagine messaggi per chat), così al
// riavvio l'app riparte dall'ultima vista nota. Best effort: gli
// errori di caricamento fanno ripartire da vuoto.
type PersistenceManager struct {
	db *bbolt.DB
}

func NewPersistenceManager(path string) (*PersistenceManager, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chatsBucket)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(messagesBucket)
		return err
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &PersistenceManager{db: db}, nil
}

// Salva la lista chat
func (pm *PersistenceManager) SaveChats(chats []models.Chat) error {
	return pm.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeToBinary(chats)
		if err != nil {
			return err
		}
		return tx.Bucket(chatsBucket).Put(chatListKey, data)
	})
}

// Carica la lista chat (nil se mai salvata)
func (pm *PersistenceManager) LoadChats() ([]models.Chat, error) {
	var chats []models.Chat
	err := pm.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(chatsBucket).Get(chatListKey)
		if data == nil {
			return nil
		}
		return decodeBinary(data, &chats)
	})
	return chats, err
}

// Salva la pagina messaggi di una chat
func (pm *PersistenceManager) SaveMessages(chatID string, messages []models.Message) error {
	return pm.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeToBinary(messages)
		if err != nil {
			return err
		}
		return tx.Bucket(messagesBucket).Put([]byte(chatID), data)
	})
}

// Carica la pagina messaggi di una chat
func (pm *PersistenceManager) LoadMessages(chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := pm.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(messagesBucket).Get([]byte(chatID))
		if data == nil {
			return nil
		}
		return decodeBinary(data, &messages)
	})
	return messages, err
}

// Carica tutte le pagine messaggi salvate, per chat
func (pm *PersistenceManager) LoadAllMessages() (map[string][]models.Message, error) {
	pages := make(map[string][]models.Message)

	err := pm.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(messagesBucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var messages []models.Message
			if err := decodeBinary(v, &messages); err != nil {
				continue
			}
			pages[string(k)] = messages
		}
		return nil
	})

	return pages, err
}

// Cancella la pagina messaggi di una chat
func (pm *PersistenceManager) DeleteMessages(chatID string) error {
	return pm.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(messagesBucket).Delete([]byte(chatID))
	})
}

func (pm *PersistenceManager) Close() error {
	return pm.db.Close()
}

func encodeToBinary(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(data)
	return buf.Bytes(), err
}

func decodeBinary(data []byte, target interface{}) error {
	buf := bytes.NewBuffer(data)
	return gob.NewDecoder(buf).Decode(target)
}
