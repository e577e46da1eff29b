// Package options holds the harness's command-line configuration surface.
package options

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one playlist entry, parsed from a repeated -segment flag
// formatted as "sampleDuration:timeScale:numFrames" (e.g. "1001:30000:900"
// for 900 frames at 29.97fps).
type Segment struct {
	SampleDuration int64
	TimeScale      int64
	NumFrames      int64
}

// SegmentList accumulates repeated -segment flag occurrences into an
// ordered playlist, implementing flag.Value.
type SegmentList struct {
	Segments []Segment
}

func (l *SegmentList) String() string {
	parts := make([]string, len(l.Segments))
	for i, s := range l.Segments {
		parts[i] = fmt.Sprintf("%d:%d:%d", s.SampleDuration, s.TimeScale, s.NumFrames)
	}
	return strings.Join(parts, ",")
}

// Set parses one "sampleDuration:timeScale:numFrames" entry and appends it.
func (l *SegmentList) Set(value string) error {
	fields := strings.Split(value, ":")
	if len(fields) != 3 {
		return fmt.Errorf("segment %q must be sampleDuration:timeScale:numFrames", value)
	}

	sampleDuration, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("segment %q: invalid sampleDuration: %w", value, err)
	}
	timeScale, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("segment %q: invalid timeScale: %w", value, err)
	}
	numFrames, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("segment %q: invalid numFrames: %w", value, err)
	}

	l.Segments = append(l.Segments, Segment{SampleDuration: sampleDuration, TimeScale: timeScale, NumFrames: numFrames})
	return nil
}

// TestOptions is the set of flags controlling one run of the test harness.
type TestOptions struct {
	Help *bool

	SampleRate   *int
	AudioFile    *string
	Silent       *bool
	AudioSeconds *float64

	Segments *SegmentList

	PlayrateFactor  *float64
	ChunkCacheSize  *int
	PressureThreads *int
}
