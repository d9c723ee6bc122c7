package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingRetriesUntilReachable(t *testing.T) {
	p := &flakyPinger{failures: 2}
	require.NoError(t, ping(context.Background(), p, 5, time.Millisecond))
	assert.Equal(t, 3, p.calls)
}

func TestPingGivesUp(t *testing.T) {
	p := &flakyPinger{failures: 10}
	err := ping(context.Background(), p, 3, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, p.calls)
}

func TestPingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &flakyPinger{failures: 10}
	assert.ErrorIs(t, ping(ctx, p, 5, time.Hour), context.Canceled)
	assert.Equal(t, 1, p.calls)
}
