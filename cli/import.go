package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/t0mac0/marytts/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		output    string
		basenames string
		analyzer  string
		strict    bool
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "import [BASENAME...]",
		Short: "Analyze the voice database and write one timeline",
		Long: "Analyzes every utterance of the base name list (or the base names given as\n" +
			"arguments) and concatenates the frames into a single timeline file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if output != "" {
				cfg.Timeline.Output = output
			}
			if basenames != "" {
				cfg.Database.BaseNames = basenames
			}
			if analyzer != "" {
				cfg.Timeline.Analyzer = analyzer
			}
			if cmd.Flags().Changed("strict") {
				cfg.Timeline.Strict = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				var err error
				if names, err = importer.ReadBaseNameList(cfg.BaseNamesPath()); err != nil {
					return err
				}
			}
			an, err := cfg.Analyzer()
			if err != nil {
				return err
			}

			opts := importer.Options{
				Output:        cfg.OutputPath(),
				IndexInterval: cfg.Timeline.IndexInterval,
				Strict:        cfg.Timeline.Strict,
			}
			var (
				p   *mpb.Progress
				bar *mpb.Bar
			)
			if !quiet {
				p = mpb.New(mpb.WithWidth(64), mpb.WithOutput(cmd.ErrOrStderr()))
				bar = p.AddBar(int64(len(names)),
					mpb.PrependDecorators(
						decor.Name("Importing: "),
						decor.CountersNoUnit("%d / %d"),
					),
					mpb.AppendDecorators(
						decor.Percentage(),
						decor.EwmaETA(decor.ET_STYLE_GO, 60),
					),
				)
				last := time.Now()
				opts.Progress = func(importer.Progress) {
					bar.EwmaIncrement(time.Since(last))
					last = time.Now()
				}
			}

			rep, err := importer.New(cfg.Corpus(), an, opts).Run(cmd.Context(), names)
			if p != nil {
				if err != nil {
					bar.Abort(false)
				}
				p.Wait()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: wrote %s\n", rep.RunID, rep.Output)
			fmt.Fprintf(out, "  %d of %d files, %d datagrams, %d samples (%.2f s at %d Hz)\n",
				rep.Files-len(rep.Failed), rep.Files, rep.Stats.Datagrams, rep.Stats.Samples, rep.Seconds(), rep.SampleRate)
			fmt.Fprintf(out, "  index: %d entries, %d bytes (%.3f MiB)\n",
				rep.Stats.IndexEntries, rep.Stats.IndexBytes(), float64(rep.Stats.IndexBytes())/(1<<20))
			for _, f := range rep.Failed {
				fmt.Fprintf(out, "  skipped %s: %v\n", f.BaseName, f.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "timeline file (relative to the database root)")
	cmd.Flags().StringVar(&basenames, "basenames", "", "base name list (relative to the database root)")
	cmd.Flags().StringVar(&analyzer, "analyzer", "", "frame analyzer: hnm or mcep")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort on the first utterance that fails")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
	return cmd
}
