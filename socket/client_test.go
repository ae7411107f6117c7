package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loopin-chat/models"
)

// wsServer è un backend WebSocket di test che tiene l'ultima
// connessione accettata e registra l'header di autenticazione
type wsServer struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     []*websocket.Conn
	lastAuth  string
	connected chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{connected: make(chan *websocket.Conn, 8)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.lastAuth = r.Header.Get("Authorization")
		s.mu.Unlock()

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.connected <- conn
	}))
	t.Cleanup(func() {
		s.mu.Lock()
		for _, conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.Server.Close()
	})
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.connected:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("nessuna connessione entro il timeout")
		return nil
	}
}

func (s *wsServer) send(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.WSMessage{Type: event, Payload: raw}))
}

func staticToken(token string) TokenFunc {
	return func() string { return token }
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestConnectWithoutTokenIsSkipped(t *testing.T) {
	server := newWSServer(t)
	client := NewClient(server.wsURL(), staticToken(""), testLogger())

	require.NoError(t, client.Connect())
	assert.False(t, client.Connected())
}

func TestConnectSendsBearerToken(t *testing.T) {
	server := newWSServer(t)
	client := NewClient(server.wsURL(), staticToken("tok-1"), testLogger())
	defer client.Disconnect()

	require.NoError(t, client.Connect())
	server.waitConn(t)

	assert.True(t, client.Connected())
	server.mu.Lock()
	auth := server.lastAuth
	server.mu.Unlock()
	assert.Equal(t, "Bearer tok-1", auth)

	// Idempotente: la seconda chiamata non apre una seconda connessione
	require.NoError(t, client.Connect())
	select {
	case <-server.connected:
		t.Fatal("aperta una seconda connessione inattesa")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDispatchToRegisteredHandlers(t *testing.T) {
	server := newWSServer(t)
	client := NewClient(server.wsURL(), staticToken("tok"), testLogger())
	defer client.Disconnect()

	received := make(chan json.RawMessage, 1)
	client.On("new_message", func(payload json.RawMessage) {
		received <- payload
	})

	require.NoError(t, client.Connect())
	conn := server.waitConn(t)

	server.send(t, conn, "new_message", map[string]string{"chat_id": "c1"})

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"chat_id": "c1"}`, string(payload))
	case <-time.After(3 * time.Second):
		t.Fatal("evento mai consegnato")
	}
}

func TestOffRemovesOnlyThatHandler(t *testing.T) {
	client := NewClient("ws://unused", staticToken("tok"), testLogger())

	calls := make(chan string, 4)
	first := func(json.RawMessage) { calls <- "primo" }
	second := func(json.RawMessage) { calls <- "secondo" }

	client.On("evt", first)
	client.On("evt", second)
	client.Off("evt", first)

	client.dispatch(models.WSMessage{Type: "evt", Payload: json.RawMessage(`{}`)})

	assert.Equal(t, "secondo", <-calls)
	select {
	case extra := <-calls:
		t.Fatalf("handler rimosso ancora chiamato: %s", extra)
	default:
	}
}

func TestPanicInHandlerDoesNotStopDispatch(t *testing.T) {
	client := NewClient("ws://unused", staticToken("tok"), testLogger())

	called := make(chan struct{}, 1)
	client.On("evt", func(json.RawMessage) { panic("boom") })
	client.On("evt", func(json.RawMessage) { called <- struct{}{} })

	client.dispatch(models.WSMessage{Type: "evt", Payload: json.RawMessage(`{}`)})

	select {
	case <-called:
	default:
		t.Fatal("il secondo handler non è stato chiamato dopo il panic")
	}
}

func TestEmitWhileDisconnectedIsDropped(t *testing.T) {
	client := NewClient("ws://unused", staticToken("tok"), testLogger())

	// Nessun panic, nessun accodamento
	client.Emit("send_message", map[string]string{"chat_id": "c1"})
	assert.False(t, client.Connected())
}

func TestEmitWritesEnvelope(t *testing.T) {
	server := newWSServer(t)
	client := NewClient(server.wsURL(), staticToken("tok"), testLogger())
	defer client.Disconnect()

	require.NoError(t, client.Connect())
	conn := server.waitConn(t)

	client.Emit("join_chat", map[string]string{"chat_id": "c1"})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env models.WSMessage
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "join_chat", env.Type)
	assert.JSONEq(t, `{"chat_id": "c1"}`, string(env.Payload))
}

// Il registro dei listener sopravvive alla riconnessione: dopo la
// caduta della connessione gli handler ricevono ancora gli eventi
func TestHandlersSurviveReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("test di riconnessione con attese reali")
	}

	server := newWSServer(t)
	client := NewClient(server.wsURL(), staticToken("tok"), testLogger())
	defer client.Disconnect()

	received := make(chan json.RawMessage, 2)
	client.On("new_message", func(payload json.RawMessage) {
		received <- payload
	})

	require.NoError(t, client.Connect())
	first := server.waitConn(t)

	// Caduta lato server: il client deve riconnettersi da solo
	first.Close()
	second := server.waitConn(t)

	server.send(t, second, "new_message", map[string]string{"chat_id": "c2"})

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"chat_id": "c2"}`, string(payload))
	case <-time.After(5 * time.Second):
		t.Fatal("evento mai consegnato dopo la riconnessione")
	}
}

func TestDisconnectStopsReconnect(t *testing.T) {
	server := newWSServer(t)
	client := NewClient(server.wsURL(), staticToken("tok"), testLogger())

	require.NoError(t, client.Connect())
	server.waitConn(t)

	client.Disconnect()
	assert.False(t, client.Connected())

	// Nessun tentativo di riconnessione dopo una chiusura intenzionale
	select {
	case <-server.connected:
		t.Fatal("riconnessione inattesa dopo Disconnect")
	case <-time.After(1500 * time.Millisecond):
	}
}
