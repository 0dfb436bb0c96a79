// Package feedback is the passive sink for the orchestrator's user-facing
// output: status line, popups and speech, delivered to the browser over SSE.
package feedback

import (
	"context"
	"time"

	"presence-kiosk-go/internal/core/session"
	"presence-kiosk-go/internal/server/sse"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
)

// ActivityFetcher returns the rendered recent-activity fragment.
type ActivityFetcher func(ctx context.Context) (string, error)

// Surface localizes orchestrator messages and broadcasts them over SSE.
type Surface struct {
	hub       *sse.Hub
	localizer *i18n.Localizer
	fetch     ActivityFetcher
}

// NewSurface creates a surface bound to the given hub. fetch may be nil when
// no recent-activity backend is configured.
func NewSurface(hub *sse.Hub, langs []string, fetch ActivityFetcher) *Surface {
	bundle := newBundle()
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &Surface{
		hub:       hub,
		localizer: i18n.NewLocalizer(bundle, langs...),
		fetch:     fetch,
	}
}

// Status updates the status line.
func (s *Surface) Status(sev session.Severity, messageID string, data map[string]interface{}) {
	s.hub.BroadcastEvent(sse.Event{
		Type:     "status",
		Severity: string(sev),
		Message:  s.localize(messageID, data),
	})
}

// Popup shows a transient on-screen notice.
func (s *Surface) Popup(messageID string, data map[string]interface{}) {
	s.hub.BroadcastEvent(sse.Event{
		Type:    "popup",
		Message: s.localize(messageID, data),
	})
}

// Speak asks the browser to utter a prompt via speech synthesis.
func (s *Surface) Speak(messageID string, data map[string]interface{}) {
	s.hub.BroadcastEvent(sse.Event{
		Type:    "speak",
		Message: s.localize(messageID, data),
	})
}

// RefreshActivity re-fetches the rendered recent-activity fragment and pushes
// it to all clients. Runs off the tick goroutine; failures only log.
func (s *Surface) RefreshActivity() {
	if s.fetch == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		html, err := s.fetch(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to refresh recent activity")
			return
		}
		s.hub.BroadcastEvent(sse.Event{Type: "activity", HTML: html})
	}()
}

func (s *Surface) localize(messageID string, data map[string]interface{}) string {
	msg, err := s.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		log.Debugf("No catalog entry for message %q: %v", messageID, err)
		if data != nil {
			if raw, ok := data["Message"].(string); ok {
				return raw
			}
		}
		return messageID
	}
	return msg
}
