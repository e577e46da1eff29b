package videotimer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingListener struct {
	pings int32
}

func (l *countingListener) VideoTimerPing() { atomic.AddInt32(&l.pings, 1) }

func TestDelegateDefaultPlayrateIsOne(t *testing.T) {
	d := New(10*time.Millisecond, nil)
	assert.Equal(t, 10*time.Millisecond, d.TimerPeriod())
}

func TestDelegatePeriodScalesWithPlayrateFactor(t *testing.T) {
	d := New(10*time.Millisecond, nil)
	require.NoError(t, d.SetAudioPlayrateFactor(2.0))
	assert.Equal(t, 20*time.Millisecond, d.TimerPeriod())
}

func TestDelegateRejectsNonPositivePeriodAndFactor(t *testing.T) {
	d := New(10*time.Millisecond, nil)
	require.Error(t, d.SetBasePeriod(0))
	require.Error(t, d.SetBasePeriod(-time.Millisecond))
	require.Error(t, d.SetAudioPlayrateFactor(0))
	require.Error(t, d.SetAudioPlayrateFactor(-1))
}

func TestDelegateTimerPingForwardsToListener(t *testing.T) {
	l := &countingListener{}
	d := New(time.Millisecond, l)
	d.TimerPing()
	d.TimerPing()
	assert.Equal(t, int32(2), l.pings)
}

func TestDelegateFireOnceIsAlwaysFalse(t *testing.T) {
	d := New(time.Millisecond, nil)
	assert.False(t, d.FireOnce())
}

func TestDelegatePrepareForDestructionDropsListener(t *testing.T) {
	l := &countingListener{}
	d := New(time.Millisecond, l)
	d.PrepareForDestruction()
	d.TimerPing() // must not panic, and must not reach l
	assert.Equal(t, int32(0), l.pings)
}
