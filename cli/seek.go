package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/t0mac0/marytts/frame"
	"github.com/t0mac0/marytts/timeline"
)

type seekResult struct {
	Sample   uint64 `yaml:"sample"`
	Start    uint64 `yaml:"start"`
	Duration uint64 `yaml:"duration"`
	Bytes    int    `yaml:"payload_bytes"`
	Kind     string `yaml:"kind,omitempty"`

	TAnalysis        *float32  `yaml:"t_analysis,omitempty"`
	F0               *float32  `yaml:"f0,omitempty"`
	MaxFreqOfVoicing *float32  `yaml:"max_freq_of_voicing,omitempty"`
	Harmonics        *int      `yaml:"harmonics,omitempty"`
	NoiseGain        *float32  `yaml:"noise_gain,omitempty"`
	Coeffs           []float32 `yaml:"coeffs,omitempty"`
}

func newSeekCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seek FILE SAMPLE",
		Short: "Find the datagram covering an absolute sample time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("sample %q: %w", args[1], err)
			}
			r, err := timeline.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			d, start, err := r.DatagramAt(t)
			if err != nil {
				return err
			}
			res := seekResult{Sample: t, Start: start, Duration: d.Duration, Bytes: len(d.Payload)}
			if p, err := frame.Unmarshal(d.Payload); err == nil {
				res.Kind = p.Kind().String()
				switch f := p.(type) {
				case *frame.HNM:
					n := len(f.HarmonicAmps)
					res.TAnalysis, res.F0, res.MaxFreqOfVoicing = &f.TAnalysis, &f.F0, &f.MaxFreqOfVoicing
					res.Harmonics, res.NoiseGain = &n, &f.NoiseGain
				case *frame.MCep:
					res.Coeffs = f.Coeffs
				}
			}
			return encodeYAML(cmd, &res)
		},
	}
}
