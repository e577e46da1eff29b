package harness

import "sort"

// VideoParameters describes one segment of a multi-segment test playlist:
// a video frame lasts sampleDuration/timeScale seconds (e.g. 1001/30000 for
// 29.97fps) and the segment runs for numVideoFrames frames.
type VideoParameters struct {
	SampleDuration int64
	TimeScale      int64
	NumVideoFrames int64
}

// FrameSeconds is the duration of one video frame in this segment.
func (p VideoParameters) FrameSeconds() float64 {
	if p.TimeScale == 0 {
		return 0
	}
	return float64(p.SampleDuration) / float64(p.TimeScale)
}

type playmapEntry struct {
	startFrame int64
	params     VideoParameters
}

// playmap is an ordered mapping from a segment's cumulative starting frame
// index to its VideoParameters, standing in for the original's ordered
// map (Go has no built-in sorted map, so a sorted slice plus binary search
// over it is the idiomatic substitute).
type playmap struct {
	entries []playmapEntry
}

// buildPlaymap lays segments out back to back, keying each one by the
// running total of frames before it starts.
func buildPlaymap(segments []VideoParameters) playmap {
	var pm playmap
	var cursor int64
	for _, seg := range segments {
		pm.entries = append(pm.entries, playmapEntry{startFrame: cursor, params: seg})
		cursor += seg.NumVideoFrames
	}
	return pm
}

// totalFrames is the sum of every segment's NumVideoFrames.
func (pm playmap) totalFrames() int64 {
	var total int64
	for _, e := range pm.entries {
		total += e.params.NumVideoFrames
	}
	return total
}

// firstKey returns the starting frame index of the first segment.
func (pm playmap) firstKey() int64 {
	if len(pm.entries) == 0 {
		return 0
	}
	return pm.entries[0].startFrame
}

// lookup finds the entry governing frame index i: the entry with the
// greatest startFrame <= i. Mirrors the original's lower_bound-then-
// decrement-if-past traversal of a std::map.
func (pm playmap) lookup(i int64) (playmapEntry, bool) {
	if len(pm.entries) == 0 {
		return playmapEntry{}, false
	}
	idx := sort.Search(len(pm.entries), func(k int) bool {
		return pm.entries[k].startFrame > i
	})
	if idx == 0 {
		return playmapEntry{}, false
	}
	return pm.entries[idx-1], true
}
