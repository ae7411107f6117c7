// Package cache è lo store chiave-valore condiviso su cui client REST
// ed eventi live riconciliano la stessa vista (il "query cache").
// Politica last-write-wins, nessun versioning: ogni updater rilegge
// lo snapshot più recente sotto lock, così un fetch completato fuori
// ordine non può sovrascrivere una scrittura più nuova.
package cache

import (
	"strings"
	"sync"
)

// Key identifica una voce della cache come tupla [dominio, ...parametri]
type Key string

// NewKey costruisce una chiave da dominio e parametri
func NewKey(domain string, params ...string) Key {
	if len(params) == 0 {
		return Key(domain)
	}
	return Key(domain + ":" + strings.Join(params, ":"))
}

// ChatsKey è la chiave della lista chat
func ChatsKey() Key {
	return NewKey("chats")
}

// MessagesKey è la chiave della pagina messaggi di una chat
func MessagesKey(chatID string) Key {
	return NewKey("messages", chatID)
}

// UpdaterFunc riceve il valore corrente (nil se assente) e restituisce
// il nuovo valore da memorizzare
type UpdaterFunc func(current interface{}) interface{}

// InvalidateFunc viene notificata quando una chiave viene invalidata,
// così il proprietario può pianificare un refetch
type InvalidateFunc func(key Key)

// Cache è lo store in memoria condiviso tra i controller
type Cache struct {
	mu           sync.RWMutex
	entries      map[Key]interface{}
	onInvalidate InvalidateFunc
}

// New crea una cache vuota
func New() *Cache {
	return &Cache{
		entries: make(map[Key]interface{}),
	}
}

// OnInvalidate registra il listener di invalidazione (uno solo)
func (c *Cache) OnInvalidate(fn InvalidateFunc) {
	c.mu.Lock()
	c.onInvalidate = fn
	c.mu.Unlock()
}

// Get restituisce il valore corrente per la chiave
func (c *Cache) Get(key Key) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

// Set applica l'updater allo snapshot più recente, sotto lock.
// Se l'updater restituisce nil la voce viene rimossa.
func (c *Cache) Set(key Key, update UpdaterFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := update(c.entries[key])
	if next == nil {
		delete(c.entries, key)
		return
	}
	c.entries[key] = next
}

// Invalidate elimina la voce e notifica il listener
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	fn := c.onInvalidate
	c.mu.Unlock()

	if fn != nil {
		fn(key)
	}
}

// Keys restituisce uno snapshot delle chiavi presenti
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
