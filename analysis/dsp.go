package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// segment copies n samples centered at sample c into dst, zero outside x.
func segment(dst, x []float64, c int) {
	start := c - len(dst)/2
	for i := range dst {
		j := start + i
		if j >= 0 && j < len(x) {
			dst[i] = x[j]
		} else {
			dst[i] = 0
		}
	}
}

// spectrum holds a reusable FFT plan and its buffers.
type spectrum struct {
	fft    *fourier.FFT
	n      int
	buf    []float64
	coeffs []complex128
}

func newSpectrum(n int) *spectrum {
	return &spectrum{fft: fourier.NewFFT(n), n: n, buf: make([]float64, n)}
}

// magnitudes returns |X_k| for k in [0, n/2] of the windowed frame x,
// scaled so a full-scale sinusoid reads as its amplitude.
func (s *spectrum) magnitudes(x, win []float64) []float64 {
	var wsum float64
	for i := range s.buf {
		if i < len(x) {
			s.buf[i] = x[i] * win[i]
			wsum += win[i]
		} else {
			s.buf[i] = 0
		}
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.buf)
	mag := make([]float64, len(s.coeffs))
	if wsum == 0 {
		return mag
	}
	for k, c := range s.coeffs {
		mag[k] = 2 * cmplx.Abs(c) / wsum
	}
	return mag
}

// cepstrum returns the first order+1 real cepstrum coefficients of the
// windowed frame x.
func (s *spectrum) cepstrum(x, win []float64, order int) []float64 {
	mag := s.magnitudes(x, win)
	logMag := make([]complex128, len(mag))
	for k, m := range mag {
		logMag[k] = complex(math.Log(m+1e-10), 0)
	}
	seq := s.fft.Sequence(nil, logMag)
	if order+1 > len(seq) {
		order = len(seq) - 1
	}
	out := make([]float64, order+1)
	for i := range out {
		out[i] = seq[i] / float64(s.n)
	}
	return out
}

// lpc estimates order prediction coefficients of x by the autocorrelation
// method. a[0] is 1; gain is the square root of the prediction error power.
func lpc(x []float64, order int) (a []float64, gain float64) {
	r := make([]float64, order+1)
	for lag := range r {
		for i := lag; i < len(x); i++ {
			r[lag] += x[i] * x[i-lag]
		}
	}
	a = make([]float64, order+1)
	a[0] = 1
	if r[0] == 0 {
		return a, 0
	}
	e := r[0]
	tmp := make([]float64, order+1)
	for i := 1; i <= order; i++ {
		acc := r[i]
		for j := 1; j < i; j++ {
			acc += a[j] * r[i-j]
		}
		k := -acc / e
		copy(tmp, a)
		for j := 1; j < i; j++ {
			a[j] = tmp[j] + k*tmp[i-j]
		}
		a[i] = k
		e *= 1 - k*k
		if e <= 0 {
			e = 0
			break
		}
	}
	return a, math.Sqrt(e / float64(len(x)))
}

func preemphasize(x []float64, coef float64) []float64 {
	y := make([]float64, len(x))
	prev := 0.0
	for i, v := range x {
		y[i] = v - coef*prev
		prev = v
	}
	return y
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
