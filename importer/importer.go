// Package importer concatenates the analysis frames of a list of
// utterances into a single timeline.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/t0mac0/marytts/analysis"
	"github.com/t0mac0/marytts/frame"
	"github.com/t0mac0/marytts/pitch"
	"github.com/t0mac0/marytts/timeline"
	"github.com/t0mac0/marytts/wave"
)

var (
	ErrNoFrames     = errors.New("importer: analysis produced no frames")
	ErrNonMonotonic = errors.New("importer: frame times decrease")
	ErrNoBaseNames  = errors.New("importer: no base names")
)

const DefaultIndexInterval = 0.01 // seconds

type Options struct {
	Output        string
	IndexInterval float64 // seconds; DefaultIndexInterval when zero
	// Strict aborts the run on the first utterance that cannot be imported.
	// Otherwise such utterances are skipped and listed in Report.Failed.
	Strict   bool
	Progress func(Progress)
}

type Progress struct {
	Done     int
	Total    int
	BaseName string
	Percent  int
}

// UtteranceError records why one utterance was left out of the timeline.
type UtteranceError struct {
	BaseName string
	Err      error
}

func (e *UtteranceError) Error() string { return e.BaseName + ": " + e.Err.Error() }

func (e *UtteranceError) Unwrap() error { return e.Err }

type Report struct {
	RunID      string
	Output     string
	SampleRate int
	Files      int
	Failed     []UtteranceError
	Stats      timeline.Stats
}

// Seconds is the total duration of the timeline.
func (r *Report) Seconds() float64 {
	if r.SampleRate == 0 {
		return 0
	}
	return float64(r.Stats.Samples) / float64(r.SampleRate)
}

type Importer struct {
	corpus   Corpus
	analyzer analysis.Analyzer
	opts     Options
	create   func(path string, params timeline.Params, sampleRate int, interval float64) (*timeline.Writer, error)
}

func New(corpus Corpus, analyzer analysis.Analyzer, opts Options) *Importer {
	if opts.IndexInterval == 0 {
		opts.IndexInterval = DefaultIndexInterval
	}
	return &Importer{corpus: corpus, analyzer: analyzer, opts: opts, create: timeline.Create}
}

// Run writes one timeline holding the frames of every base name in order.
// The sample rate of the first recording becomes the timeline rate. When
// Run returns an error the output file does not exist.
func (im *Importer) Run(ctx context.Context, baseNames []string) (_ *Report, err error) {
	if len(baseNames) == 0 {
		return nil, ErrNoBaseNames
	}
	rep := &Report{RunID: uuid.NewString(), Output: im.opts.Output, Files: len(baseNames)}
	log := logrus.WithFields(logrus.Fields{"run": rep.RunID, "analyzer": im.analyzer.Name()})

	first, err := im.corpus.Waveform(baseNames[0])
	if err != nil {
		return nil, &UtteranceError{BaseName: baseNames[0], Err: err}
	}
	rep.SampleRate = first.SampleRate
	log.Infof("importing %d utterances at %d Hz into %s", len(baseNames), rep.SampleRate, im.opts.Output)

	w, err := im.create(im.opts.Output, im.analyzer.Params(), rep.SampleRate, im.opts.IndexInterval)
	if err != nil {
		return nil, err
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			w.Close()
		}
		os.Remove(im.opts.Output)
	}()

	for i, name := range baseNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var wav *wave.Waveform
		if i == 0 {
			wav = first
		}
		dgs, err := im.utterance(ctx, name, rep.SampleRate, wav)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			uerr := UtteranceError{BaseName: name, Err: err}
			if im.opts.Strict {
				return nil, &uerr
			}
			log.WithField("basename", name).WithError(err).Warn("skipping utterance")
			rep.Failed = append(rep.Failed, uerr)
		}
		for _, d := range dgs {
			if err := w.Feed(d, rep.SampleRate); err != nil {
				return nil, err
			}
		}
		if im.opts.Progress != nil {
			im.opts.Progress(Progress{
				Done:     i + 1,
				Total:    len(baseNames),
				BaseName: name,
				Percent:  100 * (i + 1) / len(baseNames),
			})
		}
	}

	closed = true
	if rep.Stats, err = w.Close(); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"files":       rep.Files,
		"skipped":     len(rep.Failed),
		"samples":     rep.Stats.Samples,
		"seconds":     fmt.Sprintf("%.3f", rep.Seconds()),
		"datagrams":   rep.Stats.Datagrams,
		"index_bytes": rep.Stats.IndexBytes(),
		"absorbed":    rep.Stats.Absorbed,
		"index_mib":   fmt.Sprintf("%.3f", float64(rep.Stats.IndexBytes())/(1<<20)),
	}).Info("timeline written")
	return rep, nil
}

// utterance analyzes one base name and returns its datagrams. Nothing is
// written if any step fails.
func (im *Importer) utterance(ctx context.Context, name string, rate int, wav *wave.Waveform) ([]timeline.Datagram, error) {
	var err error
	if wav == nil {
		if wav, err = im.corpus.Waveform(name); err != nil {
			return nil, err
		}
	}
	if wav.SampleRate != rate {
		return nil, fmt.Errorf("%w: %d Hz, timeline at %d Hz", timeline.ErrSampleRateMismatch, wav.SampleRate, rate)
	}
	var track *pitch.Track
	if im.analyzer.NeedsPitch() {
		if track, err = im.corpus.Pitch(name); err != nil {
			return nil, err
		}
	}
	res, err := im.analyzer.Analyze(ctx, wav, track)
	if err != nil {
		return nil, err
	}
	durs, err := FrameDurations(res.Frames, res.Duration, rate)
	if err != nil {
		return nil, err
	}
	dgs := make([]timeline.Datagram, len(res.Frames))
	for i, f := range res.Frames {
		b, err := frame.Marshal(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		dgs[i] = timeline.Datagram{Duration: durs[i], Payload: b}
	}
	logrus.Debugf("%s: %d frames, %d samples", name, len(dgs), len(wav.Samples))
	return dgs, nil
}
