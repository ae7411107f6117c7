package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, Key("chats"), ChatsKey())
	assert.Equal(t, Key("messages:chat-1"), MessagesKey("chat-1"))
	assert.Equal(t, Key("dominio:a:b"), NewKey("dominio", "a", "b"))
}

func TestSetAndGet(t *testing.T) {
	c := New()

	_, ok := c.Get(ChatsKey())
	assert.False(t, ok)

	c.Set(ChatsKey(), func(current interface{}) interface{} {
		assert.Nil(t, current)
		return []string{"a"}
	})

	value, ok := c.Get(ChatsKey())
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, value)
}

// L'updater riceve sempre lo snapshot più recente: un fetch arrivato
// in ritardo non può sovrascrivere alla cieca una scrittura più nuova
func TestSetReadsLatestSnapshot(t *testing.T) {
	c := New()
	key := MessagesKey("chat-1")

	c.Set(key, func(interface{}) interface{} { return []string{"1"} })
	c.Set(key, func(current interface{}) interface{} {
		return append(current.([]string), "2")
	})

	value, _ := c.Get(key)
	assert.Equal(t, []string{"1", "2"}, value)
}

func TestSetNilDeletes(t *testing.T) {
	c := New()
	key := ChatsKey()

	c.Set(key, func(interface{}) interface{} { return "valore" })
	c.Set(key, func(interface{}) interface{} { return nil })

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestInvalidateNotifiesListener(t *testing.T) {
	c := New()
	c.Set(ChatsKey(), func(interface{}) interface{} { return "valore" })

	var got Key
	c.OnInvalidate(func(key Key) { got = key })
	c.Invalidate(ChatsKey())

	assert.Equal(t, ChatsKey(), got)
	_, ok := c.Get(ChatsKey())
	assert.False(t, ok)
}

func TestKeysSnapshot(t *testing.T) {
	c := New()
	c.Set(ChatsKey(), func(interface{}) interface{} { return 1 })
	c.Set(MessagesKey("a"), func(interface{}) interface{} { return 2 })

	assert.ElementsMatch(t, []Key{ChatsKey(), MessagesKey("a")}, c.Keys())
}

func TestConcurrentUpdaters(t *testing.T) {
	c := New()
	key := MessagesKey("chat-1")
	c.Set(key, func(interface{}) interface{} { return 0 })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(key, func(current interface{}) interface{} {
				return current.(int) + 1
			})
		}()
	}
	wg.Wait()

	value, _ := c.Get(key)
	assert.Equal(t, 50, value)
}
