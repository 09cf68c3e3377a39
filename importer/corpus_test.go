package importer

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/stretchr/testify/require"

	"github.com/t0mac0/marytts/analysis"
	"github.com/t0mac0/marytts/frame"
	"github.com/t0mac0/marytts/pitch"
	"github.com/t0mac0/marytts/timeline"
)

func writeVowel(t *testing.T, path string, rate, n int, f0 float64) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	i := 0
	s := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= n {
			return 0, false
		}
		k := 0
		for ; k < len(samples) && i < n; k++ {
			ph := 2 * math.Pi * f0 * float64(i) / float64(rate)
			v := 0.3*math.Sin(ph) + 0.1*math.Sin(3*ph)
			samples[k] = [2]float64{v, v}
			i++
		}
		return k, true
	})
	require.NoError(t, wav.Encode(f, s, beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}))
}

func newDirCorpus(t *testing.T) DirCorpus {
	c := DirCorpus{RootDir: t.TempDir(), WavDir: "wav", WavExt: ".wav", PtcDir: "ptc", PtcExt: ".ptc"}
	require.NoError(t, os.MkdirAll(filepath.Join(c.RootDir, c.WavDir), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(c.RootDir, c.PtcDir), 0o755))
	return c
}

func TestReadBaseNameList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basenames.lst")
	require.NoError(t, os.WriteFile(path, []byte("arctic_a0001\n\n# held out\n  arctic_a0002 \r\narctic_a0003"), 0o644))
	names, err := ReadBaseNameList(path)
	require.NoError(t, err)
	require.Equal(t, []string{"arctic_a0001", "arctic_a0002", "arctic_a0003"}, names)

	require.NoError(t, os.WriteFile(path, []byte("# nothing\n\n"), 0o644))
	_, err = ReadBaseNameList(path)
	require.ErrorIs(t, err, ErrNoBaseNames)

	_, err = ReadBaseNameList(filepath.Join(t.TempDir(), "missing.lst"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirCorpusPaths(t *testing.T) {
	c := DirCorpus{RootDir: "/voices/slt", WavDir: "wav", WavExt: ".wav", PtcDir: "ptc", PtcExt: ".ptc"}
	require.Equal(t, "/voices/slt/wav/arctic_a0001.wav", c.WavPath("arctic_a0001"))
	require.Equal(t, "/voices/slt/ptc/arctic_a0001.ptc", c.PtcPath("arctic_a0001"))
}

func TestImportHNMFromDirectory(t *testing.T) {
	c := newDirCorpus(t)
	names := []string{"utt1", "utt2"}
	lengths := []int{4000, 3200}
	for i, name := range names {
		writeVowel(t, c.WavPath(name), 16000, lengths[i], 150)
		track := &pitch.Track{WindowSize: 0.02, SkipSize: 0.01, F0: make([]float64, 30)}
		for k := range track.F0 {
			if k > 2 {
				track.F0[k] = 150
			}
		}
		require.NoError(t, pitch.Save(c.PtcPath(name), track))
	}

	out := filepath.Join(c.RootDir, "timeline_hnm.mry")
	analyzer := analysis.NewHNMAnalyzer(analysis.DefaultHNMParams())
	rep, err := New(c, analyzer, Options{Output: out, IndexInterval: 0.01}).Run(context.Background(), names)
	require.NoError(t, err)
	require.Empty(t, rep.Failed)
	require.Equal(t, uint64(7200), rep.Stats.Samples)

	r, dgs := walk(t, out)
	params, err := r.Header().Params()
	require.NoError(t, err)
	require.Equal(t, analyzer.Params(), params)

	// frame centers at 10 ms + k*10 ms up to the end of each recording
	require.Len(t, dgs, 25+20)
	require.Equal(t, uint64(4000), dgs[25].start)
	voiced := 0
	for _, w := range dgs {
		p, err := frame.Unmarshal(w.d.Payload)
		require.NoError(t, err)
		hnm, ok := p.(*frame.HNM)
		require.True(t, ok)
		if hnm.Voiced() {
			voiced++
			require.Equal(t, float32(150), hnm.F0)
		}
	}
	require.Equal(t, 45-6, voiced)

	// each utterance opens with a two-interval frame, which absorbs one grid
	// boundary
	require.Equal(t, uint64(0), r.Index().Entries()[0].Time)
	require.Equal(t, 43, r.Index().Len())
	require.Equal(t, uint64(2), rep.Stats.Absorbed)
	require.Equal(t, uint64(7200/160), uint64(r.Index().Len())+rep.Stats.Absorbed)
	_, _, err = r.DatagramAt(7200)
	require.ErrorIs(t, err, timeline.ErrOutOfRange)
}
