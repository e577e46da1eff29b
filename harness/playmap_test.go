package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPlaymapKeysByCumulativeStartFrame(t *testing.T) {
	pm := buildPlaymap([]VideoParameters{
		{SampleDuration: 1001, TimeScale: 30000, NumVideoFrames: 100},
		{SampleDuration: 1, TimeScale: 25, NumVideoFrames: 50},
	})

	assert.Equal(t, int64(0), pm.entries[0].startFrame)
	assert.Equal(t, int64(100), pm.entries[1].startFrame)
	assert.Equal(t, int64(150), pm.totalFrames())
}

func TestPlaymapLookupFindsGreatestKeyLessOrEqual(t *testing.T) {
	pm := buildPlaymap([]VideoParameters{
		{SampleDuration: 1001, TimeScale: 30000, NumVideoFrames: 100},
		{SampleDuration: 1, TimeScale: 25, NumVideoFrames: 50},
	})

	e, ok := pm.lookup(0)
	assert.True(t, ok)
	assert.Equal(t, int64(0), e.startFrame)

	e, ok = pm.lookup(99)
	assert.True(t, ok)
	assert.Equal(t, int64(0), e.startFrame)

	e, ok = pm.lookup(100)
	assert.True(t, ok)
	assert.Equal(t, int64(100), e.startFrame)

	e, ok = pm.lookup(149)
	assert.True(t, ok)
	assert.Equal(t, int64(100), e.startFrame)
}

func TestPlaymapLookupEmpty(t *testing.T) {
	var pm playmap
	_, ok := pm.lookup(0)
	assert.False(t, ok)
}

func TestVideoParametersFrameSeconds(t *testing.T) {
	p := VideoParameters{SampleDuration: 1001, TimeScale: 30000, NumVideoFrames: 1}
	assert.InDelta(t, 1001.0/30000.0, p.FrameSeconds(), 1e-12)
}
