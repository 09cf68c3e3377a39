package timeline

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxParamsLen bounds the processing header read from disk.
const maxParamsLen = 1 << 24

// Header is the fixed preamble of a timeline file.
//
// The three counters are written as zero placeholders by the writer and
// patched in at close.
type Header struct {
	SampleRate       uint32
	IndexInterval    float64 // seconds
	ProcessingParams string
	NumDatagrams     uint64
	TotalDuration    uint64 // samples
	NumIndexEntries  uint64
}

type headerCounts struct {
	NumDatagrams    uint64
	TotalDuration   uint64
	NumIndexEntries uint64
}

// Size is the encoded length of the header in bytes.
func (h Header) Size() int64 {
	return 4 + 8 + 4 + int64(len(h.ProcessingParams)) + 3*8
}

// countsOffset is the position of the patched counters within the header.
func (h Header) countsOffset() int64 {
	return 4 + 8 + 4 + int64(len(h.ProcessingParams))
}

// Params parses the processing header text.
func (h Header) Params() (Params, error) {
	return ParseParams(h.ProcessingParams)
}

// IntervalSamples is the index grid spacing in samples, at least one.
func (h Header) IntervalSamples() uint64 {
	n := math.Round(h.IndexInterval * float64(h.SampleRate))
	if n < 1 {
		return 1
	}
	return uint64(n)
}

func (h Header) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, h.SampleRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, h.IndexInterval); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(h.ProcessingParams))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, h.ProcessingParams); err != nil {
		return err
	}
	return h.counts().encode(w)
}

func (h *Header) Decode(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &h.SampleRate); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &h.IndexInterval); err != nil {
		return err
	}
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	if n > maxParamsLen {
		return fmt.Errorf("%w: processing header of %d bytes", ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	h.ProcessingParams = string(buf)
	var c headerCounts
	if err := binary.Read(r, binary.BigEndian, &c); err != nil {
		return err
	}
	h.NumDatagrams = c.NumDatagrams
	h.TotalDuration = c.TotalDuration
	h.NumIndexEntries = c.NumIndexEntries
	if h.SampleRate == 0 || !(h.IndexInterval > 0) {
		return fmt.Errorf("%w: sample rate %d, index interval %v", ErrCorrupt, h.SampleRate, h.IndexInterval)
	}
	return nil
}

func (h Header) counts() headerCounts {
	return headerCounts{
		NumDatagrams:    h.NumDatagrams,
		TotalDuration:   h.TotalDuration,
		NumIndexEntries: h.NumIndexEntries,
	}
}

func (c headerCounts) encode(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, c)
}
