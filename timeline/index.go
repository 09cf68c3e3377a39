package timeline

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const IndexEntrySize = 16 // time(8) + offset(8)

// IndexEntry maps the start time of a datagram to the file offset of its record.
type IndexEntry struct {
	Time   uint64
	Offset uint64
}

// Index is the sparse time index of a timeline.
//
// On the write path it is fed every datagram in order and keeps roughly one
// entry per interval samples: an entry is added for the datagram whose span
// covers the next grid boundary, and the boundary then moves past the end of
// that datagram. Further boundaries covered by the same datagram get no entry
// of their own and are counted as absorbed, so for a gapless stream Len plus
// Absorbed is the number of grid boundaries before its end.
type Index struct {
	interval uint64
	entries  []IndexEntry
	absorbed uint64

	next      uint64 // next grid boundary still to be covered
	runTime   uint64 // start time of the records at runOffset
	runOffset uint64 // first record starting at runTime
	fed       bool
}

func NewIndex(interval uint64) *Index {
	if interval == 0 {
		interval = 1
	}
	return &Index{interval: interval}
}

// Feed accounts for a datagram record of the given duration starting at
// sample time start and file offset offset.
func (x *Index) Feed(start, duration uint64, offset int64) {
	if !x.fed || start != x.runTime {
		x.runTime = start
		x.runOffset = uint64(offset)
		x.fed = true
	}
	if duration == 0 {
		return
	}
	end := start + duration
	if x.next >= end {
		return
	}
	x.entries = append(x.entries, IndexEntry{Time: start, Offset: x.runOffset})
	first := x.next
	if first < start {
		first = x.ceil(start)
	}
	if first < end {
		x.absorbed += (end-first+x.interval-1)/x.interval - 1
	}
	x.next = x.ceil(end)
}

func (x *Index) ceil(t uint64) uint64 {
	return (t + x.interval - 1) / x.interval * x.interval
}

// Absorbed is the number of grid boundaries covered by an indexed datagram
// beyond the first one it covers. It is zero when no datagram is longer than
// one interval.
func (x *Index) Absorbed() uint64 {
	return x.absorbed
}

func (x *Index) Interval() uint64 {
	return x.interval
}

func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns a copy of the entries in time order.
func (x *Index) Entries() []IndexEntry {
	out := make([]IndexEntry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Size is the encoded length of the index block in bytes.
func (x *Index) Size() int64 {
	return int64(len(x.entries)) * IndexEntrySize
}

// Seek returns the last entry at or before sample time t. The datagram
// covering t is found by scanning forward from the entry's offset.
func (x *Index) Seek(t uint64) (IndexEntry, error) {
	if len(x.entries) == 0 {
		return IndexEntry{}, fmt.Errorf("%w: seek on empty index", ErrInvalidState)
	}
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Time > t
	})
	if i == 0 {
		return IndexEntry{}, fmt.Errorf("%w: %d precedes first entry", ErrOutOfRange, t)
	}
	return x.entries[i-1], nil
}

func (x *Index) encode(w io.Writer) error {
	for i := range x.entries {
		if err := binary.Write(w, binary.BigEndian, &x.entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// decodeIndex reads n entries and checks they are strictly increasing.
func decodeIndex(r io.Reader, n uint64, interval uint64) (*Index, error) {
	x := NewIndex(interval)
	br := bufio.NewReader(r)
	x.entries = make([]IndexEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		var e IndexEntry
		if err := binary.Read(br, binary.BigEndian, &e); err != nil {
			return nil, err
		}
		if i > 0 {
			prev := x.entries[i-1]
			if e.Time <= prev.Time || e.Offset <= prev.Offset {
				return nil, fmt.Errorf("%w: index entry %d not increasing", ErrCorrupt, i)
			}
		}
		x.entries = append(x.entries, e)
	}
	return x, nil
}
