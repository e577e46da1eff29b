package audio

import (
	"bytes"
	"context"
	"fmt"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"
)

// DecodeFileToStereo16PCM decodes an arbitrary media file on disk into raw
// interleaved Stereo16 PCM at sampleRate, by shelling out to ffmpeg. This
// supplements the original, which only ever fed the harness synthetic tone
// data generated in-process; letting LoadAudio point at a real media file
// is a natural extension once a real audio decoder is available.
func DecodeFileToStereo16PCM(ctx context.Context, path string, sampleRate uint32) (Chunk, error) {
	var out bytes.Buffer

	err := ffmpeg_go.Input(path).
		Output("pipe:", ffmpeg_go.KwArgs{
			"format": "s16le",
			"ar":     sampleRate,
			"ac":     2,
		}).
		WithContext(ctx).
		WithOutput(&out).
		Run()
	if err != nil {
		return Chunk{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return Chunk{Format: FormatStereo16, SampleRate: sampleRate, Data: out.Bytes()}, nil
}
