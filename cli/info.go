package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/t0mac0/marytts/config"
	"github.com/t0mac0/marytts/timeline"
)

type info struct {
	File            string    `yaml:"file"`
	SampleRate      uint32    `yaml:"sample_rate"`
	IndexInterval   float64   `yaml:"index_interval"`
	IntervalSamples uint64    `yaml:"index_interval_samples"`
	Datagrams       uint64    `yaml:"datagrams"`
	Samples         uint64    `yaml:"total_samples"`
	Seconds         float64   `yaml:"total_seconds"`
	IndexEntries    uint64    `yaml:"index_entries"`
	IndexBytes      int64     `yaml:"index_bytes"`
	DataStart       int64     `yaml:"data_start"`
	Params          yaml.Node `yaml:"processing_params"`
}

// paramsNode keeps the header's key order in the YAML mapping.
func paramsNode(p timeline.Params) yaml.Node {
	n := yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range p {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Value},
		)
	}
	return n
}

func newInfoCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print the header and index summary of a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := timeline.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			h := r.Header()
			params, err := h.Params()
			if err != nil {
				return err
			}
			doc := info{
				File:            args[0],
				SampleRate:      h.SampleRate,
				IndexInterval:   h.IndexInterval,
				IntervalSamples: h.IntervalSamples(),
				Datagrams:       h.NumDatagrams,
				Samples:         h.TotalDuration,
				Seconds:         float64(h.TotalDuration) / float64(h.SampleRate),
				IndexEntries:    h.NumIndexEntries,
				IndexBytes:      r.Index().Size(),
				DataStart:       r.DataStart(),
				Params:          paramsNode(params),
			}
			return encodeYAML(cmd, &doc)
		},
	}
}

func encodeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.Default().WriteYAML(cmd.OutOrStdout())
		},
	}
}
