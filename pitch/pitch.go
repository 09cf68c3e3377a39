// Package pitch reads and writes pitch-track files: a fixed-rate f0
// contour stored as
//
//	windowSize f64 | skipSize f64 | numFrames u32 | f0 f64 × numFrames
//
// big-endian, times in seconds and f0 in Hz (0 or less when unvoiced).
package pitch

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxFrames = 1 << 26

var ErrBadTrack = errors.New("pitch: bad track")

type Track struct {
	WindowSize float64
	SkipSize   float64
	F0         []float64
}

type trackHeader struct {
	WindowSize float64
	SkipSize   float64
	NumFrames  uint32
}

// Time is the center of frame i in seconds.
func (t *Track) Time(i int) float64 {
	return t.WindowSize/2 + float64(i)*t.SkipSize
}

// At returns the f0 of the frame nearest to sec, 0 outside the track.
func (t *Track) At(sec float64) float64 {
	if len(t.F0) == 0 || t.SkipSize <= 0 {
		return 0
	}
	i := int((sec-t.WindowSize/2)/t.SkipSize + 0.5)
	if i < 0 || i >= len(t.F0) {
		return 0
	}
	return t.F0[i]
}

func Read(r io.Reader) (*Track, error) {
	var h trackHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrBadTrack, err)
	}
	if !(h.SkipSize > 0) || h.WindowSize < 0 || h.NumFrames > maxFrames {
		return nil, fmt.Errorf("%w: window %v skip %v frames %d", ErrBadTrack, h.WindowSize, h.SkipSize, h.NumFrames)
	}
	t := &Track{WindowSize: h.WindowSize, SkipSize: h.SkipSize, F0: make([]float64, h.NumFrames)}
	if err := binary.Read(r, binary.BigEndian, t.F0); err != nil {
		return nil, fmt.Errorf("%w: contour: %w", ErrBadTrack, err)
	}
	return t, nil
}

func Write(w io.Writer, t *Track) error {
	h := trackHeader{WindowSize: t.WindowSize, SkipSize: t.SkipSize, NumFrames: uint32(len(t.F0))}
	if err := binary.Write(w, binary.BigEndian, &h); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, t.F0)
}

func Load(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func Save(path string, t *Track) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, t); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
