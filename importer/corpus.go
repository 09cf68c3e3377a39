package importer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/t0mac0/marytts/pitch"
	"github.com/t0mac0/marytts/wave"
)

// Corpus resolves an utterance base name to its recording and pitch track.
type Corpus interface {
	Waveform(baseName string) (*wave.Waveform, error)
	Pitch(baseName string) (*pitch.Track, error)
}

// DirCorpus is a voice database laid out as RootDir/WavDir/<name>WavExt and
// RootDir/PtcDir/<name>PtcExt.
type DirCorpus struct {
	RootDir string
	WavDir  string
	WavExt  string
	PtcDir  string
	PtcExt  string
}

func (c DirCorpus) WavPath(baseName string) string {
	return filepath.Join(c.RootDir, c.WavDir, baseName+c.WavExt)
}

func (c DirCorpus) PtcPath(baseName string) string {
	return filepath.Join(c.RootDir, c.PtcDir, baseName+c.PtcExt)
}

func (c DirCorpus) Waveform(baseName string) (*wave.Waveform, error) {
	return wave.Load(c.WavPath(baseName))
}

func (c DirCorpus) Pitch(baseName string) (*pitch.Track, error) {
	return pitch.Load(c.PtcPath(baseName))
}

// ReadBaseNameList reads one base name per line. Blank lines and lines
// starting with # are skipped.
func ReadBaseNameList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBaseNames, path)
	}
	return names, nil
}
