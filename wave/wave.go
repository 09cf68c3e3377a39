// Package wave loads speech recordings as mono float samples.
package wave

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

const streamChunk = 4096

// Waveform is a mono recording with samples in [-1, 1].
type Waveform struct {
	SampleRate int
	Samples    []float64
}

// Duration is the length of the recording in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Decode reads a WAV stream and mixes it down to mono.
func Decode(r io.Reader) (*Waveform, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return collect(s, format)
}

func Load(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// pcmScale undoes the wav decoder dividing signed PCM by 2^bits-1 instead of
// 2^(bits-1), so full scale reads as ±1.
func pcmScale(precision int) float64 {
	switch precision {
	case 2:
		return (1<<16 - 1) / float64(1<<15)
	case 3:
		return (1<<24 - 1) / float64(1<<23)
	}
	return 1
}

func collect(s beep.StreamSeekCloser, format beep.Format) (*Waveform, error) {
	w := &Waveform{SampleRate: int(format.SampleRate)}
	scale := pcmScale(format.Precision)
	if n := s.Len(); n > 0 {
		w.Samples = make([]float64, 0, n)
	}
	buf := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			if format.NumChannels == 1 {
				w.Samples = append(w.Samples, frame[0]*scale)
			} else {
				w.Samples = append(w.Samples, (frame[0]+frame[1])/2*scale)
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return w, nil
}
