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

// HNMParams configures harmonics-plus-noise analysis.
type HNMParams struct {
	NoiseModel               int     `mapstructure:"noise_model" yaml:"noise_model"` // 1=waveform, 2=LPC
	NumFiltStages            int     `mapstructure:"num_filt_stages" yaml:"num_filt_stages"`
	MedianFiltLen            int     `mapstructure:"median_filt_len" yaml:"median_filt_len"`
	MAFiltLen                int     `mapstructure:"ma_filt_len" yaml:"ma_filt_len"`
	CumAmpTh                 float64 `mapstructure:"cum_amp_th" yaml:"cum_amp_th"`
	MaxAmpTh                 float64 `mapstructure:"max_amp_th" yaml:"max_amp_th"`
	HarmDevPercent           float64 `mapstructure:"harm_dev_percent" yaml:"harm_dev_percent"`
	SharpPeakAmpDiff         float64 `mapstructure:"sharp_peak_amp_diff" yaml:"sharp_peak_amp_diff"`
	MinHarmonics             int     `mapstructure:"min_harmonics" yaml:"min_harmonics"`
	MaxHarmonics             int     `mapstructure:"max_harmonics" yaml:"max_harmonics"`
	MinVoicedFreq            float64 `mapstructure:"min_voiced_freq" yaml:"min_voiced_freq"`
	MaxVoicedFreq            float64 `mapstructure:"max_voiced_freq" yaml:"max_voiced_freq"`
	MaxFreqVoicingFinalShift float64 `mapstructure:"max_freq_voicing_final_shift" yaml:"max_freq_voicing_final_shift"`
	NeighsPercent            float64 `mapstructure:"neighs_percent" yaml:"neighs_percent"`
	HarmCepsOrder            int     `mapstructure:"harm_ceps_order" yaml:"harm_ceps_order"`
	RegCepWarpMethod         int     `mapstructure:"reg_cep_warp_method" yaml:"reg_cep_warp_method"` // 1=post mel, 2=pre bark
	RegCepsLambda            float64 `mapstructure:"reg_ceps_lambda" yaml:"reg_ceps_lambda"`
	NoiseLpOrder             int     `mapstructure:"noise_lp_order" yaml:"noise_lp_order"`
	PreCoefNoise             float64 `mapstructure:"pre_coef_noise" yaml:"pre_coef_noise"`
	HPFBeforeNoiseAnalysis   bool    `mapstructure:"hpf_before_noise_analysis" yaml:"hpf_before_noise_analysis"`
	HarmNumPer               float64 `mapstructure:"harm_num_per" yaml:"harm_num_per"`
}

func DefaultHNMParams() HNMParams {
	return HNMParams{
		NoiseModel:               1,
		NumFiltStages:            2,
		MedianFiltLen:            12,
		MAFiltLen:                12,
		CumAmpTh:                 2.0,
		MaxAmpTh:                 13.0,
		HarmDevPercent:           20.0,
		SharpPeakAmpDiff:         12.0,
		MinHarmonics:             0,
		MaxHarmonics:             100,
		MinVoicedFreq:            0,
		MaxVoicedFreq:            5000,
		MaxFreqVoicingFinalShift: 0,
		NeighsPercent:            50,
		HarmCepsOrder:            24,
		RegCepWarpMethod:         1,
		RegCepsLambda:            1.0e-5,
		NoiseLpOrder:             12,
		PreCoefNoise:             0.97,
		HPFBeforeNoiseAnalysis:   true,
		HarmNumPer:               2,
	}
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Properties renders the parameters as hnm.* processing header lines.
func (p HNMParams) Properties() timeline.Params {
	return timeline.Params{
		{Key: "hnm.noiseModel", Value: strconv.Itoa(p.NoiseModel)},
		{Key: "hnm.numFiltStages", Value: strconv.Itoa(p.NumFiltStages)},
		{Key: "hnm.medianFiltLen", Value: strconv.Itoa(p.MedianFiltLen)},
		{Key: "hnm.maFiltLen", Value: strconv.Itoa(p.MAFiltLen)},
		{Key: "hnm.cumAmpTh", Value: ftoa(p.CumAmpTh)},
		{Key: "hnm.maxAmpTh", Value: ftoa(p.MaxAmpTh)},
		{Key: "hnm.harmDevPercent", Value: ftoa(p.HarmDevPercent)},
		{Key: "hnm.sharpPeakAmpDiff", Value: ftoa(p.SharpPeakAmpDiff)},
		{Key: "hnm.minHarmonics", Value: strconv.Itoa(p.MinHarmonics)},
		{Key: "hnm.maxHarmonics", Value: strconv.Itoa(p.MaxHarmonics)},
		{Key: "hnm.minVoicedFreq", Value: ftoa(p.MinVoicedFreq)},
		{Key: "hnm.maxVoicedFreq", Value: ftoa(p.MaxVoicedFreq)},
		{Key: "hnm.maxFreqVoicingFinalShift", Value: ftoa(p.MaxFreqVoicingFinalShift)},
		{Key: "hnm.neighsPercent", Value: ftoa(p.NeighsPercent)},
		{Key: "hnm.harmCepsOrder", Value: strconv.Itoa(p.HarmCepsOrder)},
		{Key: "hnm.regCepWarpMethod", Value: strconv.Itoa(p.RegCepWarpMethod)},
		{Key: "hnm.regCepsLambda", Value: ftoa(p.RegCepsLambda)},
		{Key: "hnm.noiseLpOrder", Value: strconv.Itoa(p.NoiseLpOrder)},
		{Key: "hnm.preCoefNoise", Value: ftoa(p.PreCoefNoise)},
		{Key: "hnm.hpfBeforeNoiseAnalysis", Value: strconv.FormatBool(p.HPFBeforeNoiseAnalysis)},
		{Key: "hnm.harmNumPer", Value: ftoa(p.HarmNumPer)},
	}
}

func (p HNMParams) Validate() error {
	switch {
	case p.MaxHarmonics < p.MinHarmonics || p.MinHarmonics < 0:
		return fmt.Errorf("hnm: harmonics range [%d, %d]", p.MinHarmonics, p.MaxHarmonics)
	case p.MaxVoicedFreq < p.MinVoicedFreq:
		return fmt.Errorf("hnm: voiced frequency range [%v, %v]", p.MinVoicedFreq, p.MaxVoicedFreq)
	case p.NoiseLpOrder < 1:
		return fmt.Errorf("hnm: noise lp order %d", p.NoiseLpOrder)
	case p.PreCoefNoise < 0 || p.PreCoefNoise >= 1:
		return fmt.Errorf("hnm: pre-emphasis %v", p.PreCoefNoise)
	case !(p.HarmNumPer > 0):
		return fmt.Errorf("hnm: harmonic periods %v", p.HarmNumPer)
	}
	return nil
}

// HNMAnalyzer makes one frame per pitch-track frame. Voiced frames carry
// the amplitudes of the harmonics of f0 below the maximum voiced frequency;
// every frame carries an LPC envelope and gain of the noise part.
type HNMAnalyzer struct {
	params HNMParams
}

func NewHNMAnalyzer(p HNMParams) *HNMAnalyzer {
	return &HNMAnalyzer{params: p}
}

func (a *HNMAnalyzer) Name() string { return NameHNM }

func (a *HNMAnalyzer) Params() timeline.Params { return a.params.Properties() }

func (a *HNMAnalyzer) NeedsPitch() bool { return true }

func (a *HNMAnalyzer) Analyze(ctx context.Context, w *wave.Waveform, f0 *pitch.Track) (*Result, error) {
	if len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, ErrEmptyWaveform
	}
	if f0 == nil || len(f0.F0) == 0 {
		return nil, ErrNoPitch
	}
	if err := a.params.Validate(); err != nil {
		return nil, err
	}
	rate := float64(w.SampleRate)
	res := &Result{Duration: w.Duration()}
	unvoicedLen := 2 * f0.SkipSize
	if unvoicedLen <= 0 {
		unvoicedLen = 0.02
	}
	plans := map[int]*spectrum{}

	for i, hz := range f0.F0 {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		t := f0.Time(i)
		if t > res.Duration {
			break
		}
		winSec := unvoicedLen
		if hz > 0 {
			winSec = a.params.HarmNumPer / hz
		}
		n := int(math.Round(winSec * rate))
		if n < 16 {
			n = 16
		}
		x := make([]float64, n)
		segment(x, w.Samples, int(math.Round(t*rate)))

		fr := &frame.HNM{TAnalysis: float32(t), HarmonicAmps: []float32{}}
		if hz > 0 {
			nfft := nextPow2(n)
			if nfft < 256 {
				nfft = 256
			}
			s, ok := plans[nfft]
			if !ok {
				s = newSpectrum(nfft)
				plans[nfft] = s
			}
			amps, mvf := a.harmonics(s.magnitudes(x, hann(n)), hz, rate, nfft)
			if len(amps) > 0 {
				fr.F0 = float32(hz)
				fr.MaxFreqOfVoicing = float32(mvf)
				fr.HarmonicAmps = toFloat32(amps)
			}
		}
		noise := x
		if a.params.PreCoefNoise > 0 {
			noise = preemphasize(x, a.params.PreCoefNoise)
		}
		win := hann(n)
		for k := range noise {
			noise[k] *= win[k]
		}
		lp, gain := lpc(noise, a.params.NoiseLpOrder)
		fr.NoiseLPC = toFloat32(lp)
		fr.NoiseGain = float32(gain)
		res.Frames = append(res.Frames, Frame{Time: t, Payload: fr})
	}
	return res, nil
}

// harmonics picks the spectral peak near each multiple of f0 up to the
// maximum voiced frequency. It returns no amplitudes when fewer than
// MinHarmonics fit.
func (a *HNMAnalyzer) harmonics(mag []float64, f0, rate float64, nfft int) ([]float64, float64) {
	mvf := a.params.MaxVoicedFreq + a.params.MaxFreqVoicingFinalShift
	mvf = math.Min(mvf, rate/2)
	mvf = math.Max(mvf, a.params.MinVoicedFreq)
	count := int(mvf / f0)
	if count > a.params.MaxHarmonics {
		count = a.params.MaxHarmonics
	}
	if count < 1 || count < a.params.MinHarmonics {
		return nil, 0
	}
	binHz := rate / float64(nfft)
	dev := a.params.HarmDevPercent / 100 * f0
	amps := make([]float64, count)
	for h := 1; h <= count; h++ {
		lo := int(math.Floor((float64(h)*f0 - dev) / binHz))
		hi := int(math.Ceil((float64(h)*f0 + dev) / binHz))
		if lo < 0 {
			lo = 0
		}
		if hi >= len(mag) {
			hi = len(mag) - 1
		}
		for k := lo; k <= hi; k++ {
			amps[h-1] = math.Max(amps[h-1], mag[k])
		}
	}
	return amps, mvf
}
