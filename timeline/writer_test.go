package timeline

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// memSink is an in-memory io.WriteSeeker.
type memSink struct {
	buf []byte
	pos int64
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	if m.pos < 0 {
		return 0, errors.New("negative position")
	}
	return m.pos, nil
}

func (m *memSink) reader(t *testing.T) *Reader {
	r, err := NewReader(bytes.NewReader(m.buf), int64(len(m.buf)))
	require.NoError(t, err)
	return r
}

// failingSink accepts the first n bytes and then fails every write.
type failingSink struct {
	memSink
	n int
}

func (f *failingSink) Write(p []byte) (int, error) {
	if len(f.buf)+len(p) > f.n {
		return 0, errors.New("disk full")
	}
	return f.memSink.Write(p)
}

var testParams = Params{
	{Key: "hnm.noiseModel", Value: "1"},
	{Key: "hnm.regCepsLambda", Value: "1e-05"},
}

func payload(i int) []byte {
	return []byte{byte(i), byte(i >> 8), 0xAB}
}

func TestThreeEqualDatagrams(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, testParams, 16000, 0.01)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Feed(Datagram{Duration: 160, Payload: payload(i)}, 16000))
	}
	stats, err := w.Close()
	require.NoError(t, err)
	require.Equal(t, Stats{Datagrams: 3, Samples: 480, IndexEntries: 3}, stats)

	r := sink.reader(t)
	h := r.Header()
	require.Equal(t, uint64(3), h.NumDatagrams)
	require.Equal(t, uint64(480), h.TotalDuration)
	require.Equal(t, uint32(16000), h.SampleRate)
	require.Equal(t, 0.01, h.IndexInterval)

	var times []uint64
	for _, e := range r.Index().Entries() {
		times = append(times, e.Time)
	}
	require.Equal(t, []uint64{0, 160, 320}, times)
	require.Equal(t, uint64(r.DataStart()), r.Index().Entries()[0].Offset)
}

func TestProcessingParamsRoundTrip(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, testParams, 22050, 0.01)
	require.NoError(t, err)
	require.NoError(t, w.Feed(Datagram{Duration: 10}, 22050))
	_, err = w.Close()
	require.NoError(t, err)

	h := sink.reader(t).Header()
	encoded, err := testParams.Encode()
	require.NoError(t, err)
	require.Equal(t, encoded, h.ProcessingParams)
	params, err := h.Params()
	require.NoError(t, err)
	require.Equal(t, testParams, params)

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))
	require.Equal(t, sink.buf[:h.Size()], buf.Bytes())
}

func TestIndexProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const rate = 16000
	const interval = 0.01 // 160 samples

	testCases := []struct {
		name        string
		maxDuration int
	}{
		{"short frames", 60},
		{"up to one interval", 160},
		{"with empty frames", 40},
		{"longer than an interval", 500},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &memSink{}
			w, err := NewWriter(sink, nil, rate, interval)
			require.NoError(t, err)
			for i := 0; i < 2000; i++ {
				d := uint64(rng.Intn(tc.maxDuration + 1))
				require.NoError(t, w.Feed(Datagram{Duration: d, Payload: payload(i)}, rate))
			}
			stats, err := w.Close()
			require.NoError(t, err)

			entries := sink.reader(t).Index().Entries()
			require.NotEmpty(t, entries)
			require.Equal(t, uint64(0), entries[0].Time)
			for i := 1; i < len(entries); i++ {
				require.Greater(t, entries[i].Time, entries[i-1].Time)
				require.Greater(t, entries[i].Offset, entries[i-1].Offset)
			}
			boundaries := (stats.Samples + 159) / 160
			require.Equal(t, boundaries, uint64(len(entries))+stats.Absorbed)
			if tc.maxDuration <= 160 {
				require.Zero(t, stats.Absorbed)
				require.InDelta(t, float64(stats.Samples)/160, float64(len(entries)), 1)
			}
		})
	}
}

// Pitch-synchronous analysis gives every utterance a leading frame of two
// intervals followed by one-interval frames.
func TestIndexCountWithLongLeadingFrames(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, nil, 16000, 0.01)
	require.NoError(t, err)
	for u := 0; u < 50; u++ {
		require.NoError(t, w.Feed(Datagram{Duration: 320, Payload: payload(u)}, 16000))
		for k := 0; k < 23; k++ {
			require.NoError(t, w.Feed(Datagram{Duration: 160, Payload: payload(k)}, 16000))
		}
	}
	stats, err := w.Close()
	require.NoError(t, err)
	require.Equal(t, uint64(200000), stats.Samples)
	require.Equal(t, 1200, stats.IndexEntries)
	require.Equal(t, uint64(50), stats.Absorbed)
	require.Equal(t, uint64(200000/160), uint64(stats.IndexEntries)+stats.Absorbed)

	r := sink.reader(t)
	for _, ts := range []uint64{0, 159, 160, 319, 320, 4000, 4160, 199999} {
		d, start, err := r.DatagramAt(ts)
		require.NoError(t, err)
		require.LessOrEqual(t, start, ts)
		require.Greater(t, start+d.Duration, ts)
	}
}

func TestSeekFindsCoveringDatagram(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	sink := &memSink{}
	w, err := NewWriter(sink, testParams, 16000, 0.005)
	require.NoError(t, err)
	type span struct{ start, end uint64 }
	var spans []span
	var now uint64
	for i := 0; i < 500; i++ {
		d := uint64(rng.Intn(300))
		require.NoError(t, w.Feed(Datagram{Duration: d, Payload: payload(i)}, 16000))
		spans = append(spans, span{now, now + d})
		now += d
	}
	_, err = w.Close()
	require.NoError(t, err)
	r := sink.reader(t)

	for k := 0; k < 300; k++ {
		ts := uint64(rng.Int63n(int64(now)))
		d, start, err := r.DatagramAt(ts)
		require.NoError(t, err)
		require.LessOrEqual(t, start, ts)
		require.Greater(t, start+d.Duration, ts)

		var hits []int
		for i, s := range spans {
			if s.start <= ts && ts < s.end {
				hits = append(hits, i)
			}
		}
		require.Len(t, hits, 1)
		require.Equal(t, payload(hits[0]), d.Payload)
	}

	_, _, err = r.DatagramAt(now)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestWalkIsGapless(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, nil, 8000, 0.01)
	require.NoError(t, err)
	durations := []uint64{80, 0, 33, 120, 7, 0, 0, 80}
	for i, d := range durations {
		require.NoError(t, w.Feed(Datagram{Duration: d, Payload: payload(i)}, 8000))
	}
	_, err = w.Close()
	require.NoError(t, err)

	var prevEnd uint64
	var n int
	err = sink.reader(t).Walk(func(start uint64, offset int64, d Datagram) error {
		require.Equal(t, prevEnd, start)
		require.Equal(t, durations[n], d.Duration)
		prevEnd = start + d.Duration
		n++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, len(durations), n)
	require.Equal(t, uint64(320), prevEnd)
}

func TestLeadingEmptyDatagramIsIndexed(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, nil, 8000, 0.01)
	require.NoError(t, err)
	require.NoError(t, w.Feed(Datagram{Duration: 0, Payload: []byte("a")}, 8000))
	require.NoError(t, w.Feed(Datagram{Duration: 50, Payload: []byte("b")}, 8000))
	_, err = w.Close()
	require.NoError(t, err)

	r := sink.reader(t)
	entries := r.Index().Entries()
	require.Len(t, entries, 1)
	require.Equal(t, IndexEntry{Time: 0, Offset: uint64(r.DataStart())}, entries[0])
	d, start, err := r.DatagramAt(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), start)
	require.Equal(t, []byte("b"), d.Payload)
}

func TestWriterStateErrors(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, nil, 16000, 0.01)
	require.NoError(t, err)

	err = w.Feed(Datagram{Duration: 1}, 44100)
	require.ErrorIs(t, err, ErrSampleRateMismatch)
	require.Equal(t, uint64(0), w.Stats().Datagrams)

	_, err = w.Close()
	require.NoError(t, err)
	require.ErrorIs(t, w.Feed(Datagram{Duration: 1}, 16000), ErrInvalidState)
	_, err = w.Close()
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = sink.reader(t).Index().Seek(0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestWriterArguments(t *testing.T) {
	_, err := NewWriter(&memSink{}, nil, 0, 0.01)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewWriter(&memSink{}, nil, 16000, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewWriter(&memSink{}, Params{{Key: "a=b", Value: "c"}}, 16000, 0.01)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestWriteFailureIsSticky(t *testing.T) {
	sink := &failingSink{n: 100}
	w, err := NewWriter(sink, nil, 16000, 0.01)
	require.NoError(t, err)
	big := make([]byte, writeBufferSize)
	require.ErrorIs(t, w.Feed(Datagram{Duration: 1, Payload: big}, 16000), ErrIO)
	require.ErrorIs(t, w.Feed(Datagram{Duration: 1}, 16000), ErrIO)
	_, err = w.Close()
	require.ErrorIs(t, err, ErrIO)
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline_hnm.mry")
	w, err := Create(path, testParams, 16000, 0.01)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Feed(Datagram{Duration: 100, Payload: payload(i)}, 16000))
	}
	_, err = w.Close()
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, uint64(1000), r.Header().TotalDuration)
	d, start, err := r.DatagramAt(950)
	require.NoError(t, err)
	require.Equal(t, uint64(900), start)
	require.Equal(t, payload(9), d.Payload)
}

func TestCreateInReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	defer os.Chmod(dir, 0o700)

	path := filepath.Join(dir, "timeline.mry")
	_, err := Create(path, nil, 16000, 0.01)
	require.ErrorIs(t, err, ErrPermission)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestIOErrorClassification(t *testing.T) {
	perm := &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}
	require.ErrorIs(t, ioError("create", "/x", perm), ErrPermission)
	require.NotErrorIs(t, ioError("create", "/x", perm), ErrIO)

	missing := &os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}
	require.ErrorIs(t, ioError("create", "/x", missing), ErrIO)

	_, err := Open(filepath.Join(t.TempDir(), "missing.mry"))
	require.ErrorIs(t, err, ErrIO)
}

func TestTruncatedFiles(t *testing.T) {
	sink := &memSink{}
	w, err := NewWriter(sink, testParams, 16000, 0.01)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Feed(Datagram{Duration: 160, Payload: payload(i)}, 16000))
	}
	_, err = w.Close()
	require.NoError(t, err)

	testCases := []struct {
		name string
		size int
	}{
		{"inside header", 10},
		{"inside counters", int(w.Header().Size()) - 4},
		{"inside index", len(sink.buf) - 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := sink.buf[:tc.size]
			_, err := NewReader(bytes.NewReader(b), int64(len(b)))
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestWriterLimits(t *testing.T) {
	big := Params{{Key: "blob", Value: strings.Repeat("x", maxParamsLen)}}
	_, err := NewWriter(&memSink{}, big, 16000, 0.01)
	require.ErrorIs(t, err, ErrInvalidParams)
	_, err = Create(filepath.Join(t.TempDir(), "big.mry"), big, 16000, 0.01)
	require.ErrorIs(t, err, ErrInvalidParams)

	sink := &memSink{}
	w, err := NewWriter(sink, nil, 16000, 0.01)
	require.NoError(t, err)
	err = w.Feed(Datagram{Duration: 1, Payload: make([]byte, maxPayloadLen+1)}, 16000)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// a rejected payload does not poison the writer
	require.NoError(t, w.Feed(Datagram{Duration: 160, Payload: payload(1)}, 16000))
	stats, err := w.Close()
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Datagrams)
	d, _, err := sink.reader(t).DatagramAt(0)
	require.NoError(t, err)
	require.Equal(t, payload(1), d.Payload)
}
