package timeline

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const writeBufferSize = 32 * 1024

// Stats summarizes what a writer has produced so far.
type Stats struct {
	Datagrams    uint64
	Samples      uint64
	IndexEntries int
	// Absorbed counts grid boundaries left without an entry because a longer
	// datagram covered them; IndexEntries+Absorbed is ceil(Samples/interval).
	Absorbed uint64
}

// IndexBytes is the on-disk size of the index block.
func (s Stats) IndexBytes() int64 {
	return int64(s.IndexEntries) * IndexEntrySize
}

// Writer streams datagrams into a timeline. It is not safe for concurrent
// use; all Feed calls must come from one goroutine.
type Writer struct {
	path   string
	sink   io.WriteSeeker
	closer io.Closer
	bw     *bufio.Writer

	header Header
	index  *Index
	offset int64 // absolute offset of the next record
	stats  Stats
	closed bool
	err    error // sticky write failure
}

// Create opens path for writing and writes the timeline header. A path the
// process may not write to yields ErrPermission; other failures ErrIO.
func Create(path string, params Params, sampleRate int, indexInterval float64) (*Writer, error) {
	text, err := validate(params, sampleRate, indexInterval)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, ioError("create", path, err)
	}
	w, err := newWriter(f, text, sampleRate, indexInterval)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, ioError("write header", path, err)
	}
	w.path = path
	w.closer = f
	return w, nil
}

// NewWriter writes a timeline to sink, which must be positioned at its start.
func NewWriter(sink io.WriteSeeker, params Params, sampleRate int, indexInterval float64) (*Writer, error) {
	text, err := validate(params, sampleRate, indexInterval)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(sink, text, sampleRate, indexInterval)
	if err != nil {
		return nil, fmt.Errorf("%w: write header: %w", ErrIO, err)
	}
	return w, nil
}

func validate(params Params, sampleRate int, indexInterval float64) (string, error) {
	if sampleRate <= 0 || sampleRate > 1<<31-1 {
		return "", fmt.Errorf("%w: sample rate %d", ErrInvalidArgument, sampleRate)
	}
	if !(indexInterval > 0) {
		return "", fmt.Errorf("%w: index interval %v", ErrInvalidArgument, indexInterval)
	}
	text, err := params.Encode()
	if err != nil {
		return "", err
	}
	if len(text) > maxParamsLen {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidParams, len(text), maxParamsLen)
	}
	return text, nil
}

func newWriter(sink io.WriteSeeker, params string, sampleRate int, indexInterval float64) (*Writer, error) {
	w := &Writer{
		sink: sink,
		bw:   bufio.NewWriterSize(sink, writeBufferSize),
		header: Header{
			SampleRate:       uint32(sampleRate),
			IndexInterval:    indexInterval,
			ProcessingParams: params,
		},
	}
	w.index = NewIndex(w.header.IntervalSamples())
	if err := w.header.Encode(w.bw); err != nil {
		return nil, err
	}
	w.offset = w.header.Size()
	logrus.Debugf("timeline header: %d Hz, index every %d samples, %d bytes",
		sampleRate, w.index.Interval(), w.offset)
	return w, nil
}

// Header returns the header as it will be finalized by Close.
func (w *Writer) Header() Header {
	h := w.header
	h.NumDatagrams = w.stats.Datagrams
	h.TotalDuration = w.stats.Samples
	h.NumIndexEntries = uint64(w.index.Len())
	return h
}

// Feed appends d at the current end of the timeline. sampleRate must match
// the rate the timeline was created with.
func (w *Writer) Feed(d Datagram, sampleRate int) error {
	if w.closed {
		return fmt.Errorf("%w: feed on closed writer", ErrInvalidState)
	}
	if w.err != nil {
		return w.err
	}
	if sampleRate != int(w.header.SampleRate) {
		return fmt.Errorf("%w: datagram at %d Hz, timeline at %d Hz",
			ErrSampleRateMismatch, sampleRate, w.header.SampleRate)
	}
	if len(d.Payload) > maxPayloadLen {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidArgument, len(d.Payload), maxPayloadLen)
	}
	if err := d.encode(w.bw); err != nil {
		w.err = fmt.Errorf("%w: write datagram %d: %w", ErrIO, w.stats.Datagrams, err)
		return w.err
	}
	w.index.Feed(w.stats.Samples, d.Duration, w.offset)
	w.offset += d.Size()
	w.stats.Datagrams++
	w.stats.Samples += d.Duration
	w.stats.IndexEntries = w.index.Len()
	w.stats.Absorbed = w.index.Absorbed()
	return nil
}

// Stats reports the totals accumulated so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Index exposes the index built so far.
func (w *Writer) Index() *Index {
	return w.index
}

// Close writes the index block, patches the header counters and closes
// the underlying file if the writer opened it.
func (w *Writer) Close() (Stats, error) {
	if w.closed {
		return w.stats, fmt.Errorf("%w: writer already closed", ErrInvalidState)
	}
	w.closed = true
	err := w.err
	if err == nil {
		err = w.finish()
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = ioError("close", w.path, cerr)
		}
	}
	return w.stats, err
}

func (w *Writer) finish() error {
	if err := w.index.encode(w.bw); err != nil {
		return fmt.Errorf("%w: write index: %w", ErrIO, err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrIO, err)
	}
	h := w.Header()
	if _, err := w.sink.Seek(h.countsOffset(), io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to header: %w", ErrIO, err)
	}
	if err := h.counts().encode(w.sink); err != nil {
		return fmt.Errorf("%w: patch header: %w", ErrIO, err)
	}
	if _, err := w.sink.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("%w: seek to end: %w", ErrIO, err)
	}
	w.header = h
	logrus.Debugf("timeline closed: %d datagrams, %d samples, %d index entries",
		w.stats.Datagrams, w.stats.Samples, w.stats.IndexEntries)
	return nil
}
