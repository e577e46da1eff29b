package audio

// GenerateSampleTone builds a Stereo16 buffer of numFrames frames at
// sampleRate. When silent is true the buffer is all zero; otherwise it is a
// simple repeating ramp tone, grounded on the original sample generator
// used to drive the test harness without real media files.
func GenerateSampleTone(numFrames int, sampleRate uint32, silent bool) Chunk {
	format := FormatStereo16
	data := make([]byte, numFrames*int(format.FrameByteLength()))

	if !silent {
		const rampLength = 100
		const amplitude = 8000
		for i := 0; i < numFrames; i++ {
			phase := i % rampLength
			v := int16((phase * amplitude) / rampLength)
			off := i * int(format.FrameByteLength())
			data[off] = byte(v)
			data[off+1] = byte(v >> 8)
			data[off+2] = byte(v)
			data[off+3] = byte(v >> 8)
		}
	}

	return Chunk{Format: format, SampleRate: sampleRate, Data: data}
}
