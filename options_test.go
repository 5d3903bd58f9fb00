package winloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOptions(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.logger)
	assert.False(t, cfg.metricsEnabled)
	assert.NotNil(t, cfg.now)

	fixed := time.Unix(42, 0)
	cfg, err = resolveOptions([]Option{
		nil,
		WithMetrics(true),
		WithClock(func() time.Time { return fixed }),
		WithClock(nil),
	})
	require.NoError(t, err)
	assert.True(t, cfg.metricsEnabled)
	assert.Equal(t, fixed, cfg.now(), "a nil clock keeps the previous one")
}

func TestResolveOptions_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := resolveOptions([]Option{&optionImpl{func(*loopOptions) error { return boom }}})
	assert.ErrorIs(t, err, boom)
}
