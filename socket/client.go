package socket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"loopin-chat/models"
)

const (
	reconnectAttempts = 5
	reconnectDelay    = 1 * time.Second
)

// Handler è la callback registrata per un evento
type Handler func(payload json.RawMessage)

// TokenFunc restituisce il token di autenticazione, o stringa vuota se assente
type TokenFunc func() string

// Client mantiene l'unica connessione live verso il backend.
// Il registro dei listener è separato dalla connessione: gli handler
// sopravvivono alla riconnessione perché il dispatch legge il registro,
// non l'oggetto connessione.
type Client struct {
	url     string
	tokenFn TokenFunc
	log     *zap.SugaredLogger

	mu          sync.Mutex // protegge conn, connecting, intentional
	conn        *websocket.Conn
	connecting  bool
	intentional bool

	// gorilla/websocket ammette un solo writer concorrente
	writeMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   map[string][]Handler
}

// NewClient crea il wrapper socket (non apre la connessione)
func NewClient(url string, tokenFn TokenFunc, log *zap.SugaredLogger) *Client {
	return &Client{
		url:       url,
		tokenFn:   tokenFn,
		log:       log,
		listeners: make(map[string][]Handler),
	}
}

// Connect apre la connessione verso il backend. Idempotente: se la
// connessione esiste o un tentativo è in corso non fa nulla. Senza
// token disponibile non connette e non restituisce errore: il chiamante
// deve trattarlo come "non connesso".
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	token := c.tokenFn()
	if token == "" {
		c.mu.Unlock()
		c.log.Warnw("connessione socket saltata: nessun token disponibile")
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	conn, err := c.dial(token)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("errore nella connessione al socket: %w", err)
	}
	c.conn = conn
	c.intentional = false
	c.mu.Unlock()

	c.log.Infow("socket connesso", "url", c.url)
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	return conn, err
}

// Disconnect chiude la connessione attiva e azzera l'handle. Idempotente.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.intentional = true
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Connected indica se esiste una connessione attiva
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// On registra una callback per un evento
func (c *Client) On(event string, h Handler) {
	c.listenersMu.Lock()
	c.listeners[event] = append(c.listeners[event], h)
	c.listenersMu.Unlock()
}

// Off rimuove esattamente la callback passata in precedenza a On
// (confronto per puntatore a funzione, una sola occorrenza).
// Attenzione: due method value dello stesso metodo su receiver diversi
// condividono il puntatore del wrapper, quindi Off non li distingue.
// Regge perché al più una Conversation è iscritta alla volta (quella
// vecchia viene chiusa prima di aprire la nuova); se il vincolo cade
// serve un registro a token di iscrizione.
func (c *Client) Off(event string, h Handler) {
	ptr := reflect.ValueOf(h).Pointer()

	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	handlers := c.listeners[event]
	for i, registered := range handlers {
		if reflect.ValueOf(registered).Pointer() == ptr {
			c.listeners[event] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(c.listeners[event]) == 0 {
		delete(c.listeners, event)
	}
}

// Emit invia un evento al backend. Se non connesso il messaggio viene
// scartato con un warning, non accodato.
func (c *Client) Emit(event string, payload interface{}) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.log.Warnw("emit scartato: socket non connesso", "event", event)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Warnw("emit scartato: payload non serializzabile", "event", event, "error", err)
		return
	}

	c.writeMu.Lock()
	err = conn.WriteJSON(models.WSMessage{Type: event, Payload: data})
	c.writeMu.Unlock()

	if err != nil {
		c.log.Warnw("errore nell'invio dell'evento", "event", event, "error", err)
	}
}

// Loop di lettura: decodifica le buste e le smista al registro
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env models.WSMessage
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			intentional := c.intentional
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			if intentional {
				return
			}
			c.log.Warnw("connessione socket persa", "error", err)
			go c.reconnect()
			return
		}
		if env.Type == "" {
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env models.WSMessage) {
	c.listenersMu.RLock()
	handlers := append([]Handler(nil), c.listeners[env.Type]...)
	c.listenersMu.RUnlock()

	for _, h := range handlers {
		func() {
			// un panic in un handler non deve abbattere il loop di dispatch
			defer func() {
				if r := recover(); r != nil {
					c.log.Errorw("panic in un handler di evento", "event", env.Type, "panic", r)
				}
			}()
			h(env.Payload)
		}()
	}
}

// Riconnessione a tentativi limitati con ritardo fisso. Esauriti i
// tentativi la connessione resta giù finché qualcuno non richiama Connect.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		time.Sleep(reconnectDelay)

		c.mu.Lock()
		if c.conn != nil || c.intentional {
			c.mu.Unlock()
			return
		}
		token := c.tokenFn()
		if token == "" {
			c.mu.Unlock()
			c.log.Warnw("riconnessione interrotta: nessun token disponibile")
			return
		}
		c.connecting = true
		c.mu.Unlock()

		conn, err := c.dial(token)

		c.mu.Lock()
		c.connecting = false
		if err == nil {
			c.conn = conn
			c.mu.Unlock()
			c.log.Infow("socket riconnesso", "tentativo", attempt)
			go c.readLoop(conn)
			return
		}
		c.mu.Unlock()
		c.log.Warnw("tentativo di riconnessione fallito", "tentativo", attempt, "error", err)
	}
	c.log.Warnw("riconnessione abbandonata: tentativi esauriti", "tentativi", reconnectAttempts)
}
