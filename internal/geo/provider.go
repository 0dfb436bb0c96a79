// Package geo provides best-effort coordinates for attendance enrichment.
// A kiosk is stationary, so the coordinates come from configuration; the
// Locator contract still honors the caller's deadline so a slow or missing
// provider can never block a commit.
package geo

import (
	"context"
	"fmt"

	"presence-kiosk-go/internal/config"
)

// StaticProvider returns the configured installation coordinates.
type StaticProvider struct {
	cfg config.GeoConfig
}

// NewStaticProvider creates a provider from config. Returns nil when
// geolocation is disabled; the orchestrator treats a nil locator as
// "commit without coordinates".
func NewStaticProvider(cfg config.GeoConfig) *StaticProvider {
	if !cfg.Enabled {
		return nil
	}
	return &StaticProvider{cfg: cfg}
}

// Locate returns the configured coordinates, or an error once the caller's
// deadline has passed.
func (p *StaticProvider) Locate(ctx context.Context) (float64, float64, error) {
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("geolocation timed out: %w", ctx.Err())
	default:
	}
	return p.cfg.Latitude, p.cfg.Longitude, nil
}
