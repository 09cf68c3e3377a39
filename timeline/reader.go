package timeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader gives random access to a closed timeline.
type Reader struct {
	ra     io.ReaderAt
	closer io.Closer

	header    Header
	index     *Index
	dataStart int64
	dataEnd   int64
}

// Open reads the header and index of the timeline at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("open", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioError("stat", path, err)
	}
	r, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads a timeline of size bytes from ra.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	r := &Reader{ra: ra}
	if err := r.header.Decode(bufio.NewReader(io.NewSectionReader(ra, 0, size))); err != nil {
		return nil, corrupt("header", err)
	}
	r.dataStart = r.header.Size()
	n := r.header.NumIndexEntries
	if n > uint64(size/IndexEntrySize) {
		return nil, fmt.Errorf("%w: %d index entries in %d bytes", ErrCorrupt, n, size)
	}
	r.dataEnd = size - int64(n)*IndexEntrySize
	if r.dataEnd < r.dataStart {
		return nil, fmt.Errorf("%w: index overlaps header", ErrCorrupt)
	}
	if r.header.NumDatagrams > 0 && n == 0 && r.header.TotalDuration > 0 {
		return nil, fmt.Errorf("%w: missing index", ErrCorrupt)
	}
	idx, err := decodeIndex(io.NewSectionReader(ra, r.dataEnd, size-r.dataEnd), n, r.header.IntervalSamples())
	if err != nil {
		return nil, corrupt("index", err)
	}
	for _, e := range idx.entries {
		if int64(e.Offset) < r.dataStart || int64(e.Offset) >= r.dataEnd || e.Time >= r.header.TotalDuration {
			return nil, fmt.Errorf("%w: index entry %+v outside datagram stream", ErrCorrupt, e)
		}
	}
	r.index = idx
	return r, nil
}

func corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
	}
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	return fmt.Errorf("%w: read %s: %w", ErrIO, what, err)
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Index() *Index {
	return r.index
}

// DataStart is the offset of the first datagram record.
func (r *Reader) DataStart() int64 {
	return r.dataStart
}

// ReadDatagram decodes the record at offset and returns the offset of the
// record after it.
func (r *Reader) ReadDatagram(offset int64) (Datagram, int64, error) {
	if offset < r.dataStart || offset >= r.dataEnd {
		return Datagram{}, 0, fmt.Errorf("%w: offset %d outside datagram stream", ErrOutOfRange, offset)
	}
	var d Datagram
	if err := d.decode(io.NewSectionReader(r.ra, offset, r.dataEnd-offset)); err != nil {
		return Datagram{}, 0, corrupt("datagram", err)
	}
	return d, offset + d.Size(), nil
}

// DatagramAt returns the datagram whose span covers sample time t, and the
// time at which it starts.
func (r *Reader) DatagramAt(t uint64) (Datagram, uint64, error) {
	if t >= r.header.TotalDuration {
		return Datagram{}, 0, fmt.Errorf("%w: %d beyond %d samples", ErrOutOfRange, t, r.header.TotalDuration)
	}
	e, err := r.index.Seek(t)
	if err != nil {
		return Datagram{}, 0, err
	}
	start, offset := e.Time, int64(e.Offset)
	for offset < r.dataEnd {
		d, next, err := r.ReadDatagram(offset)
		if err != nil {
			return Datagram{}, 0, err
		}
		if t < start+d.Duration {
			return d, start, nil
		}
		start += d.Duration
		offset = next
	}
	return Datagram{}, 0, fmt.Errorf("%w: stream ended before sample %d", ErrCorrupt, t)
}

// Walk calls fn for every datagram in stream order with its start time and
// record offset. A non-nil error from fn stops the walk and is returned.
func (r *Reader) Walk(fn func(start uint64, offset int64, d Datagram) error) error {
	br := bufio.NewReader(io.NewSectionReader(r.ra, r.dataStart, r.dataEnd-r.dataStart))
	var start uint64
	offset := r.dataStart
	for i := uint64(0); i < r.header.NumDatagrams; i++ {
		var d Datagram
		if err := d.decode(br); err != nil {
			return corrupt("datagram", err)
		}
		if err := fn(start, offset, d); err != nil {
			return err
		}
		start += d.Duration
		offset += d.Size()
	}
	if offset != r.dataEnd {
		return fmt.Errorf("%w: %d trailing bytes after last datagram", ErrCorrupt, r.dataEnd-offset)
	}
	return nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
