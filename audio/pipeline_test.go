package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive Pipeline's internal queue/callback bookkeeping directly,
// without opening a real portaudio stream, since Initialize requires an
// actual output device.

func TestPipelineQueueAudioRejectsInvalidChunk(t *testing.T) {
	p := &Pipeline{initialized: true}
	err := p.QueueAudio([]Chunk{{Format: FormatNone}})
	require.Error(t, err)
	assert.Equal(t, 0, p.NumBuffersQueued())
}

func TestPipelineQueueAudioStopsAtFirstInvalidElement(t *testing.T) {
	p := &Pipeline{initialized: true}
	good := Chunk{Format: FormatStereo16, SampleRate: 1000, Data: make([]byte, 4)}
	bad := Chunk{Format: FormatNone}
	err := p.QueueAudio([]Chunk{good, bad, good})
	require.Error(t, err)
	assert.Equal(t, 1, p.NumBuffersQueued(), "only the chunk before the failing one should be queued")
}

func TestPipelineOutputCallbackDrainsAndReportsCompletion(t *testing.T) {
	p := &Pipeline{initialized: true}
	require.NoError(t, p.QueueAudio([]Chunk{
		{Format: FormatStereo16, SampleRate: 1000, Data: []byte{1, 0, 2, 0}}, // 1 frame
	}))

	out := make([]int16, 4) // 4 int16 slots = 8 bytes, more than the 4-byte chunk
	p.outputCallback(out)

	assert.Equal(t, 0, p.NumBuffersQueued())
	assert.Equal(t, int16(1), out[0])
	assert.Equal(t, int16(2), out[1])
	assert.Equal(t, int16(0), out[2], "remainder of callback buffer should be silence")

	batch := p.Poll()
	require.Len(t, batch, 1)
	assert.InDelta(t, 0.001, batch[0].DurationSeconds, 1e-9)
}

func TestPipelineOutputCallbackPartialDrainKeepsChunkQueued(t *testing.T) {
	p := &Pipeline{initialized: true}
	require.NoError(t, p.QueueAudio([]Chunk{
		{Format: FormatStereo16, SampleRate: 1000, Data: make([]byte, 16)}, // 4 frames
	}))

	out := make([]int16, 2) // only room for 1 frame
	p.outputCallback(out)

	assert.Equal(t, 1, p.NumBuffersQueued(), "chunk not fully drained should stay queued")
	assert.Nil(t, p.Poll())
}

func TestPipelineStopDropsOutstandingChunks(t *testing.T) {
	p := &Pipeline{initialized: true}
	require.NoError(t, p.QueueAudio([]Chunk{
		{Format: FormatStereo16, SampleRate: 1000, Data: make([]byte, 4)},
	}))
	p.Stop()
	assert.Equal(t, 0, p.NumBuffersQueued())
	assert.Equal(t, float64(0), p.QueuedAudioDurationSeconds())
}
