package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := make(Client, 10)
	second := make(Client, 10)
	hub.Register(first)
	hub.Register(second)

	hub.BroadcastEvent(Event{Type: "status", Message: "hello"})

	for _, client := range []Client{first, second} {
		select {
		case raw := <-client:
			var event Event
			require.NoError(t, json.Unmarshal(raw, &event))
			assert.Equal(t, "hello", event.Message)
		case <-time.After(2 * time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := make(Client, 10)
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed")
	}
}

func TestBroadcastEventStampsTimestamp(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := make(Client, 10)
	hub.Register(client)

	hub.BroadcastEvent(Event{Type: "popup", Message: "notice"})

	select {
	case raw := <-client:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
