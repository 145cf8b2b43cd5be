package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalGateSpacesWaits(t *testing.T) {
	gate := NewIntervalGate(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, gate.Interval())

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestIntervalGateIgnoresIdleTime(t *testing.T) {
	gate := NewIntervalGate(50 * time.Millisecond)

	// time spent between waits must not shorten the next pause
	time.Sleep(120 * time.Millisecond)
	start := time.Now()
	require.NoError(t, gate.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	start = time.Now()
	require.NoError(t, gate.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestIntervalGateZeroNeverBlocks(t *testing.T) {
	gate := NewIntervalGate(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, gate.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, gate.Interval())
}

func TestIntervalGateHonoursContext(t *testing.T) {
	gate := NewIntervalGate(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, gate.Wait(ctx))
}
