// Command avsynctest drives the audio/video synchronization test harness
// from the command line: it builds a synthetic (or file-backed) audio
// track, a multi-segment video playlist, and runs the reconciliation state
// machine until every segment has played out, printing telemetry to
// stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jbodinet/avsynctest/harness"
	"github.com/jbodinet/avsynctest/options"
)

type stdoutOutputter struct{}

func (stdoutOutputter) OutputData(text string) {
	fmt.Println(text)
}

func runTest(opts *options.TestOptions) error {
	h := harness.New()
	if err := h.Initialize(uint32(*opts.SampleRate)); err != nil {
		return fmt.Errorf("initialize harness: %w", err)
	}
	defer h.PrepareForDestruction()

	h.SetDataOutputter(stdoutOutputter{})

	if *opts.AudioFile != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.LoadAudio(ctx, *opts.AudioFile); err != nil {
			return fmt.Errorf("load audio: %w", err)
		}
	} else {
		h.GenerateSampleAudio(*opts.AudioSeconds, *opts.Silent)
	}

	segs := make([]harness.VideoParameters, len(opts.Segments.Segments))
	for i, s := range opts.Segments.Segments {
		segs[i] = harness.VideoParameters{
			SampleDuration: s.SampleDuration,
			TimeScale:      s.TimeScale,
			NumVideoFrames: s.NumFrames,
		}
	}

	if err := h.StartTest(segs, *opts.PlayrateFactor, int64(*opts.ChunkCacheSize), *opts.PressureThreads); err != nil {
		return fmt.Errorf("start test: %w", err)
	}

	h.WaitOnTestCompletion()
	h.StopTest()
	return nil
}

func main() {
	opts := &options.TestOptions{}
	opts.Help = flag.Bool("help", false, "show this help message")

	opts.SampleRate = flag.Int("samplerate", 48000, "audio sample rate in Hz")
	opts.AudioFile = flag.String("audiofile", "", "path to a media file to decode for audio (overrides synthetic tone)")
	opts.Silent = flag.Bool("silent", false, "generate silence instead of a tone when no audio file is given")
	opts.AudioSeconds = flag.Float64("audioseconds", 30.0, "duration of the generated synthetic audio source, in seconds")

	opts.Segments = &options.SegmentList{}
	flag.Var(opts.Segments, "segment", "sampleDuration:timeScale:numFrames, repeatable for a multi-segment playlist (default 1001:30000:900, ~29.97fps for 30s)")

	opts.PlayrateFactor = flag.Float64("playrate-factor", 1.0, "adversarial override for the measured audio playrate once slow-audio detection kicks in")
	opts.ChunkCacheSize = flag.Int("chunk-cache-size", 1, "number of audio chunk completions to batch before pumping the reconciliation state machine")
	opts.PressureThreads = flag.Int("pressure-threads", 0, "number of CPU-burning threads to run concurrently, to perturb scheduling")

	flag.Parse()

	if *opts.Help {
		flag.PrintDefaults()
		return
	}

	if len(opts.Segments.Segments) == 0 {
		opts.Segments.Segments = []options.Segment{{SampleDuration: 1001, TimeScale: 30000, NumFrames: 900}}
	}

	if err := runTest(opts); err != nil {
		log.Fatalf("avsynctest: %v", err)
	}
}
