package audio

import "fmt"

// Chunk is an immutable descriptor for one buffer of PCM audio the caller
// wants queued. The caller transfers ownership of Data to the pipeline on a
// successful QueueAudio; ownership comes back to the caller's listener (or
// is dropped by the pipeline) on completion.
type Chunk struct {
	Format     Format
	SampleRate uint32
	Data       []byte
}

// Validate checks the submission invariants spec'd for QueueAudio: format
// must be playable, sample rate positive, data non-empty and an exact
// multiple of the format's frame byte length.
func (c Chunk) Validate() error {
	if !c.Format.Playable() {
		return fmt.Errorf("audio chunk has unplayable format %s", c.Format)
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("audio chunk has zero sample rate")
	}
	if len(c.Data) == 0 {
		return fmt.Errorf("audio chunk has empty data")
	}
	frameLen := c.Format.FrameByteLength()
	if uint32(len(c.Data))%frameLen != 0 {
		return fmt.Errorf("audio chunk byte length %d is not a multiple of frame length %d", len(c.Data), frameLen)
	}
	return nil
}

// DurationSeconds is byte_length / (frame_byte_length * sample_rate).
func (c Chunk) DurationSeconds() float64 {
	frameLen := c.Format.FrameByteLength()
	if frameLen == 0 || c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Data)) / (float64(frameLen) * float64(c.SampleRate))
}

// CompletedChunk is a batch element delivered to a CompletionListener: the
// buffer the caller originally submitted, plus its intended duration.
type CompletedChunk struct {
	Data            []byte
	DurationSeconds float64
}

// CompletionListener receives batches of completed chunks in arrival order.
// The pipeline's lock is held across this call: implementations must not
// call back into the Pipeline.
type CompletionListener interface {
	AudioChunkCompleted(batch []CompletedChunk)
}
