package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentListSetParsesAndAccumulates(t *testing.T) {
	var l SegmentList
	require.NoError(t, l.Set("1001:30000:900"))
	require.NoError(t, l.Set("1:25:50"))

	require.Len(t, l.Segments, 2)
	assert.Equal(t, Segment{SampleDuration: 1001, TimeScale: 30000, NumFrames: 900}, l.Segments[0])
	assert.Equal(t, Segment{SampleDuration: 1, TimeScale: 25, NumFrames: 50}, l.Segments[1])
}

func TestSegmentListSetRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "1:2", "1:2:3:4", "a:2:3", "1:b:3", "1:2:c"}
	for _, c := range cases {
		var l SegmentList
		assert.Error(t, l.Set(c), "expected error for %q", c)
	}
}

func TestSegmentListString(t *testing.T) {
	l := SegmentList{Segments: []Segment{{SampleDuration: 1001, TimeScale: 30000, NumFrames: 900}}}
	assert.Equal(t, "1001:30000:900", l.String())
}
