package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/t0mac0/marytts/frame"
	"github.com/t0mac0/marytts/pitch"
	"github.com/t0mac0/marytts/timeline"
	"github.com/t0mac0/marytts/wave"
)

type MCepParams struct {
	Order        int     `mapstructure:"order" yaml:"order"`
	FrameShift   float64 `mapstructure:"frame_shift" yaml:"frame_shift"`     // seconds
	WindowLength float64 `mapstructure:"window_length" yaml:"window_length"` // seconds
}

func DefaultMCepParams() MCepParams {
	return MCepParams{Order: 25, FrameShift: 0.005, WindowLength: 0.025}
}

func (p MCepParams) Properties() timeline.Params {
	return timeline.Params{
		{Key: "mcep.order", Value: strconv.Itoa(p.Order)},
		{Key: "mcep.frameShift", Value: ftoa(p.FrameShift)},
		{Key: "mcep.windowLength", Value: ftoa(p.WindowLength)},
	}
}

func (p MCepParams) Validate() error {
	if p.Order < 1 || !(p.FrameShift > 0) || !(p.WindowLength > 0) {
		return fmt.Errorf("mcep: order %d, shift %v, window %v", p.Order, p.FrameShift, p.WindowLength)
	}
	return nil
}

// CepstrumAnalyzer makes fixed-shift frames of real cepstrum coefficients.
// It does not use the pitch track.
type CepstrumAnalyzer struct {
	params MCepParams
}

func NewCepstrumAnalyzer(p MCepParams) *CepstrumAnalyzer {
	return &CepstrumAnalyzer{params: p}
}

func (a *CepstrumAnalyzer) Name() string { return NameMCep }

func (a *CepstrumAnalyzer) Params() timeline.Params { return a.params.Properties() }

func (a *CepstrumAnalyzer) NeedsPitch() bool { return false }

func (a *CepstrumAnalyzer) Analyze(ctx context.Context, w *wave.Waveform, _ *pitch.Track) (*Result, error) {
	if len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, ErrEmptyWaveform
	}
	if err := a.params.Validate(); err != nil {
		return nil, err
	}
	rate := float64(w.SampleRate)
	n := int(math.Round(a.params.WindowLength * rate))
	if n < 16 {
		n = 16
	}
	s := newSpectrum(nextPow2(n))
	win := hann(n)
	x := make([]float64, n)
	res := &Result{Duration: w.Duration()}

	for i := 0; ; i++ {
		t := float64(i) * a.params.FrameShift
		if t >= res.Duration {
			break
		}
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		segment(x, w.Samples, int(math.Round(t*rate)))
		c := s.cepstrum(x, win, a.params.Order)
		res.Frames = append(res.Frames, Frame{Time: t, Payload: &frame.MCep{Coeffs: toFloat32(c)}})
	}
	return res, nil
}
