package chat

import (
	"encoding/json"
	"reflect"
	"testing"

	"loopin-chat/socket"
)

// fakeSocket registra iscrizioni ed emissioni e permette di iniettare
// eventi come farebbe il client WebSocket reale
type fakeSocket struct {
	listeners map[string][]socket.Handler
	emitted   []emittedEvent
}

type emittedEvent struct {
	event   string
	payload interface{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{listeners: make(map[string][]socket.Handler)}
}

func (f *fakeSocket) On(event string, h socket.Handler) {
	f.listeners[event] = append(f.listeners[event], h)
}

func (f *fakeSocket) Off(event string, h socket.Handler) {
	handlers := f.listeners[event]
	target := reflect.ValueOf(h).Pointer()
	for i, existing := range handlers {
		if reflect.ValueOf(existing).Pointer() == target {
			f.listeners[event] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

func (f *fakeSocket) Emit(event string, payload interface{}) {
	f.emitted = append(f.emitted, emittedEvent{event: event, payload: payload})
}

// fire consegna un evento a tutti i listener registrati
func (f *fakeSocket) fire(t *testing.T, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("payload non serializzabile: %v", err)
	}
	for _, h := range f.listeners[event] {
		h(raw)
	}
}

// emittedEvents restituisce i soli nomi evento emessi, in ordine
func (f *fakeSocket) emittedEvents() []string {
	events := make([]string, 0, len(f.emitted))
	for _, e := range f.emitted {
		events = append(events, e.event)
	}
	return events
}

func (f *fakeSocket) listenerCount(event string) int {
	return len(f.listeners[event])
}
