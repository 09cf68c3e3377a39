// Package analysis turns a recording and its pitch track into the ordered
// frames stored in a timeline.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/t0mac0/marytts/frame"
	"github.com/t0mac0/marytts/pitch"
	"github.com/t0mac0/marytts/timeline"
	"github.com/t0mac0/marytts/wave"
)

var (
	ErrEmptyWaveform = errors.New("analysis: empty waveform")
	ErrNoPitch       = errors.New("analysis: empty pitch track")
	ErrUnknown       = errors.New("analysis: unknown analyzer")
)

// Frame is one analysis frame and the time, in seconds from the start of
// the utterance, at which it was measured.
type Frame struct {
	Time    float64
	Payload frame.Payload
}

// Result is the analysis of one utterance. Frames are in time order.
type Result struct {
	Frames   []Frame
	Duration float64 // seconds
}

type Analyzer interface {
	Name() string
	// Params lists the settings to record in the timeline processing header.
	Params() timeline.Params
	// NeedsPitch reports whether Analyze reads the pitch track.
	NeedsPitch() bool
	Analyze(ctx context.Context, w *wave.Waveform, f0 *pitch.Track) (*Result, error)
}

const (
	NameHNM  = "hnm"
	NameMCep = "mcep"
)

// New returns the analyzer registered under name.
func New(name string, hnm HNMParams, mcep MCepParams) (Analyzer, error) {
	switch name {
	case NameHNM:
		return NewHNMAnalyzer(hnm), nil
	case NameMCep:
		return NewCepstrumAnalyzer(mcep), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// checkEvery is how many frames are analyzed between context checks.
const checkEvery = 64
