package geo

import (
	"context"
	"testing"

	"presence-kiosk-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticProviderDisabled(t *testing.T) {
	assert.Nil(t, NewStaticProvider(config.GeoConfig{Enabled: false}))
}

func TestLocateReturnsConfiguredCoordinates(t *testing.T) {
	provider := NewStaticProvider(config.GeoConfig{
		Enabled:   true,
		Latitude:  48.1351,
		Longitude: 11.582,
	})
	require.NotNil(t, provider)

	lat, lon, err := provider.Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.1351, lat, 0.0001)
	assert.InDelta(t, 11.582, lon, 0.0001)
}

func TestLocateHonorsExpiredDeadline(t *testing.T) {
	provider := NewStaticProvider(config.GeoConfig{Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := provider.Locate(ctx)
	assert.Error(t, err)
}
