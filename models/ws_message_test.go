package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSenderIDFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"sender annidato", `{"sender": {"id": "a"}, "sender_id": "b", "senderId": "c"}`, "a"},
		{"sender_id piatto", `{"sender_id": "b", "senderId": "c"}`, "b"},
		{"senderId legacy", `{"senderId": "c"}`, "c"},
		{"tutto assente", `{}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var w WireMessage
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &w))
			assert.Equal(t, tc.want, w.ResolveSenderID())
		})
	}
}

func TestToMessageDefaults(t *testing.T) {
	w := WireMessage{ID: "m1", Content: "ciao"}
	msg := w.ToMessage()

	assert.Equal(t, MessageTypeText, msg.MessageType)
	assert.NotNil(t, msg.Reactions)
	assert.Nil(t, msg.ReplyTo)
}

func TestToMessageReply(t *testing.T) {
	w := WireMessage{
		ID:              "m2",
		MessageType:     MessageTypeReply,
		ReplyToID:       "m1",
		ReplyToContent:  "originale",
		ReplyToSenderID: "u1",
	}
	msg := w.ToMessage()

	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, "m1", msg.ReplyTo.MessageID)
	assert.Equal(t, "originale", msg.ReplyTo.Content)
	assert.Equal(t, "u1", msg.ReplyTo.SenderID)
}

// Il backend riusa i nomi evento delle reazioni anche come ack: solo i
// payload completi vanno applicati
func TestReactionPayloadIsComplete(t *testing.T) {
	full := ReactionPayload{ChatID: "c", MessageID: "m", Emoji: "❤️", UserID: "u"}
	assert.True(t, full.IsComplete())

	partial := ReactionPayload{ChatID: "c", MessageID: "m"}
	assert.False(t, partial.IsComplete())
}
