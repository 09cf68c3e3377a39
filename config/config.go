// Package config loads timeline tool settings from built-in defaults, an
// optional YAML file and TIMELINE_* environment variables, in that order.
package config

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/t0mac0/marytts/analysis"
	"github.com/t0mac0/marytts/importer"
)

const EnvPrefix = "TIMELINE"

type Database struct {
	RootDir   string `mapstructure:"root_dir" yaml:"root_dir"`
	WavDir    string `mapstructure:"wav_dir" yaml:"wav_dir"`
	WavExt    string `mapstructure:"wav_ext" yaml:"wav_ext"`
	PtcDir    string `mapstructure:"ptc_dir" yaml:"ptc_dir"`
	PtcExt    string `mapstructure:"ptc_ext" yaml:"ptc_ext"`
	BaseNames string `mapstructure:"basenames" yaml:"basenames"`
}

type Timeline struct {
	Output        string  `mapstructure:"output" yaml:"output"`
	IndexInterval float64 `mapstructure:"index_interval" yaml:"index_interval"` // seconds
	Analyzer      string  `mapstructure:"analyzer" yaml:"analyzer"`
	Strict        bool    `mapstructure:"strict" yaml:"strict"`
}

type Config struct {
	LogLevel string              `mapstructure:"log_level" yaml:"log_level"`
	Database Database            `mapstructure:"database" yaml:"database"`
	Timeline Timeline            `mapstructure:"timeline" yaml:"timeline"`
	HNM      analysis.HNMParams  `mapstructure:"hnm" yaml:"hnm"`
	MCep     analysis.MCepParams `mapstructure:"mcep" yaml:"mcep"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Database: Database{
			RootDir:   ".",
			WavDir:    "wav",
			WavExt:    ".wav",
			PtcDir:    "ptc",
			PtcExt:    ".ptc",
			BaseNames: "basenames.lst",
		},
		Timeline: Timeline{
			Output:        filepath.Join("mary", "timeline_hnm.mry"),
			IndexInterval: importer.DefaultIndexInterval,
			Analyzer:      analysis.NameHNM,
		},
		HNM:  analysis.DefaultHNMParams(),
		MCep: analysis.DefaultMCepParams(),
	}
}

// Load layers the YAML file at path (skipped when empty) and the
// environment over Default. Nested keys map to variables with dots
// replaced by underscores, e.g. TIMELINE_TIMELINE_INDEX_INTERVAL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seed viper with every key so AutomaticEnv can override any of them.
	var defaults bytes.Buffer
	if err := Default().WriteYAML(&defaults); err != nil {
		return nil, err
	}
	if err := v.ReadConfig(&defaults); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		logrus.Debugf("config: merged %s", path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return enc.Close()
}

func (c *Config) Validate() error {
	if !(c.Timeline.IndexInterval > 0) {
		return fmt.Errorf("config: timeline.index_interval must be positive, got %v", c.Timeline.IndexInterval)
	}
	if c.Timeline.Output == "" {
		return fmt.Errorf("config: timeline.output is empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	switch c.Timeline.Analyzer {
	case analysis.NameHNM:
		return c.HNM.Validate()
	case analysis.NameMCep:
		return c.MCep.Validate()
	default:
		return fmt.Errorf("config: %w: %q", analysis.ErrUnknown, c.Timeline.Analyzer)
	}
}

// Analyzer builds the configured analyzer.
func (c *Config) Analyzer() (analysis.Analyzer, error) {
	return analysis.New(c.Timeline.Analyzer, c.HNM, c.MCep)
}

func (c *Config) Corpus() importer.DirCorpus {
	return importer.DirCorpus{
		RootDir: c.Database.RootDir,
		WavDir:  c.Database.WavDir,
		WavExt:  c.Database.WavExt,
		PtcDir:  c.Database.PtcDir,
		PtcExt:  c.Database.PtcExt,
	}
}

// BaseNamesPath resolves the base name list relative to the database root.
func (c *Config) BaseNamesPath() string {
	if filepath.IsAbs(c.Database.BaseNames) {
		return c.Database.BaseNames
	}
	return filepath.Join(c.Database.RootDir, c.Database.BaseNames)
}

// OutputPath resolves the timeline file relative to the database root.
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.Timeline.Output) {
		return c.Timeline.Output
	}
	return filepath.Join(c.Database.RootDir, c.Timeline.Output)
}
