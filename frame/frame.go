// Package frame encodes the analysis frames stored as timeline datagram
// payloads. Each payload starts with a four-byte kind tag so a timeline
// can be decoded without knowing which analyzer produced it.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	KindHNM  = NewFourByteStr("hnmf")
	KindMCep = NewFourByteStr("mcep")
)

var (
	ErrUnknownKind   = errors.New("frame: unknown payload kind")
	ErrShortPayload  = errors.New("frame: short payload")
	errTooManyValues = errors.New("frame: more than 65535 values")
)

// Payload is one of *HNM or *MCep.
type Payload interface {
	Kind() FourByteString
	encode(w io.Writer) error
	decode(r io.Reader) error
}

// Marshal encodes p with its kind tag.
func Marshal(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	kind := p.Kind()
	buf.Write(kind[:])
	if err := p.encode(&buf); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(b []byte) (Payload, error) {
	if len(b) < 4 {
		return nil, ErrShortPayload
	}
	var kind FourByteString
	copy(kind[:], b[:4])
	var p Payload
	switch kind {
	case KindHNM:
		p = &HNM{}
	case KindMCep:
		p = &MCep{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind.String())
	}
	r := bytes.NewReader(b[4:])
	if err := p.decode(r); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s frame", ErrShortPayload, kind)
		}
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("frame: %d trailing bytes after %s frame", r.Len(), kind)
	}
	return p, nil
}

// HNM is a harmonics-plus-noise frame.
type HNM struct {
	TAnalysis        float32 // seconds from utterance start
	F0               float32 // Hz, 0 when unvoiced
	MaxFreqOfVoicing float32 // Hz
	HarmonicAmps     []float32
	NoiseLPC         []float32
	NoiseGain        float32
}

func (f *HNM) Kind() FourByteString { return KindHNM }

func (f *HNM) encode(w io.Writer) error {
	head := [3]float32{f.TAnalysis, f.F0, f.MaxFreqOfVoicing}
	if err := binary.Write(w, binary.BigEndian, head); err != nil {
		return err
	}
	if err := writeFloats(w, f.HarmonicAmps); err != nil {
		return err
	}
	if err := writeFloats(w, f.NoiseLPC); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, f.NoiseGain)
}

func (f *HNM) decode(r io.Reader) error {
	var head [3]float32
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return err
	}
	f.TAnalysis, f.F0, f.MaxFreqOfVoicing = head[0], head[1], head[2]
	var err error
	if f.HarmonicAmps, err = readFloats(r); err != nil {
		return err
	}
	if f.NoiseLPC, err = readFloats(r); err != nil {
		return err
	}
	return binary.Read(r, binary.BigEndian, &f.NoiseGain)
}

// Voiced reports whether the frame carries a harmonic part.
func (f *HNM) Voiced() bool {
	return f.F0 > 0 && len(f.HarmonicAmps) > 0
}

// MCep is a cepstral frame.
type MCep struct {
	Coeffs []float32
}

func (f *MCep) Kind() FourByteString { return KindMCep }

func (f *MCep) encode(w io.Writer) error {
	return writeFloats(w, f.Coeffs)
}

func (f *MCep) decode(r io.Reader) (err error) {
	f.Coeffs, err = readFloats(r)
	return err
}
