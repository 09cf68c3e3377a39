package importer

import (
	"fmt"
	"math"

	"github.com/t0mac0/marytts/analysis"
)

// FrameDurations converts analysis frame times into sample durations. Frame
// i covers from the end of frame i-1 (0 for the first) up to the time of
// frame i+1; the last frame runs to the end of the utterance. The
// durations sum to round(totalSeconds*rate).
func FrameDurations(frames []analysis.Frame, totalSeconds float64, rate int) ([]uint64, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	r := float64(rate)
	out := make([]uint64, len(frames))
	var start int64
	for i := range frames {
		next := totalSeconds
		if i+1 < len(frames) {
			next = frames[i+1].Time
		}
		end := int64(math.Round(next * r))
		if end < start {
			return nil, fmt.Errorf("%w: frame %d ends at sample %d before %d", ErrNonMonotonic, i, end, start)
		}
		out[i] = uint64(end - start)
		start = end
	}
	return out, nil
}
