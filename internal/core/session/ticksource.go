package session

import "time"

// TickSource drives the orchestrator loop. Abstracting the display refresh
// signal keeps the state machine testable with synchronously pumped ticks.
type TickSource interface {
	Ticks() <-chan time.Time
	Stop()
}

type intervalSource struct {
	ticker *time.Ticker
}

// NewIntervalSource returns a TickSource backed by a wall-clock ticker.
func NewIntervalSource(interval time.Duration) TickSource {
	return &intervalSource{ticker: time.NewTicker(interval)}
}

func (s *intervalSource) Ticks() <-chan time.Time { return s.ticker.C }

func (s *intervalSource) Stop() { s.ticker.Stop() }
