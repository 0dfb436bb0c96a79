package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"presence-kiosk-go/internal/core/session"
	"presence-kiosk-go/internal/server/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subscribe attaches one client to a running hub.
func subscribe(t *testing.T) (*sse.Hub, sse.Client) {
	t.Helper()
	hub := sse.NewHub()
	go hub.Run()
	client := make(sse.Client, 10)
	hub.Register(client)
	return hub, client
}

func receive(t *testing.T, client sse.Client) sse.Event {
	t.Helper()
	select {
	case raw := <-client:
		var event sse.Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no SSE event received")
		return sse.Event{}
	}
}

func TestStatusIsLocalizedAndBroadcast(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, nil)

	surface.Status(session.SeveritySuccess, "recognize.success", map[string]interface{}{"Name": "Alice"})

	event := receive(t, client)
	assert.Equal(t, "status", event.Type)
	assert.Equal(t, "success", event.Severity)
	assert.Equal(t, "Welcome, Alice!", event.Message)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPopupAndSpeakEvents(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, nil)

	surface.Popup("face.multiple", nil)
	event := receive(t, client)
	assert.Equal(t, "popup", event.Type)
	assert.Equal(t, "Multiple faces detected. Please approach one at a time.", event.Message)

	surface.Speak("reprompt.ready", nil)
	event = receive(t, client)
	assert.Equal(t, "speak", event.Type)
	assert.Equal(t, "Ready for the next person.", event.Message)
}

func TestUnknownMessageFallsBackToRawData(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, nil)

	surface.Status(session.SeverityInfo, "no.such.message", map[string]interface{}{"Message": "verbatim text"})

	event := receive(t, client)
	assert.Equal(t, "verbatim text", event.Message)
}

func TestBackendMessagePassthrough(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, nil)

	surface.Status(session.SeveritySuccess, "backend.message", map[string]interface{}{
		"Message": "Welcome Alice, checked in at 09:00",
	})

	event := receive(t, client)
	assert.Equal(t, "Welcome Alice, checked in at 09:00", event.Message)
}

func TestRefreshActivityBroadcastsFragment(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, func(ctx context.Context) (string, error) {
		return "<tr><td>Alice</td></tr>", nil
	})

	surface.RefreshActivity()

	event := receive(t, client)
	assert.Equal(t, "activity", event.Type)
	assert.Equal(t, "<tr><td>Alice</td></tr>", event.HTML)
}

func TestRefreshActivityFailureIsSilent(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, func(ctx context.Context) (string, error) {
		return "", errors.New("backend down")
	})

	surface.RefreshActivity()

	select {
	case raw := <-client:
		t.Fatalf("unexpected event: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGesturePromptRendersConfiguredNames(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, nil)

	surface.Speak("gesture.prompt", map[string]interface{}{
		"Name":     "Alice",
		"Presence": "peace sign",
		"Break":    "fist",
	})

	event := receive(t, client)
	assert.Equal(t, "Alice, show a peace sign to mark presence or a fist for a break.", event.Message)
}

func TestCatalogCoversOrchestratorMessages(t *testing.T) {
	hub, client := subscribe(t)
	surface := NewSurface(hub, []string{"en"}, nil)

	ids := []string{
		"kiosk.ready", "scan.started", "scan.no_face",
		"face.multiple", "face.centered", "face.recognizing",
		"face.move_closer", "face.move_further",
		"face.move_left", "face.move_right", "face.move_up", "face.move_down",
		"recognize.success", "recognize.unknown", "recognize.error",
		"gesture.prompt", "gesture.cooldown", "gesture.timeout",
		"attendance.processing", "attendance.late", "attendance.error",
		"reprompt.ready", "device.error", "model.error",
	}

	for _, id := range ids {
		surface.Status(session.SeverityInfo, id, map[string]interface{}{
			"Name": "Alice", "Seconds": 5,
		})
		event := receive(t, client)
		assert.NotEqual(t, id, event.Message, "message %q has no catalog entry", id)
		assert.NotEmpty(t, event.Message)
	}
}
