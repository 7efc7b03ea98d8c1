// Package config loads and validates the YAML configuration that selects
// which part of the imaging distribution a dataset serves and how it is
// served.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/manifest"
)

// Strategy selects the access strategy trading memory for latency.
type Strategy string

const (
	StrategyOnDemand Strategy = "ondemand"
	StrategyCached   Strategy = "cached"
	StrategyIterable Strategy = "iterable"
)

// Config is the root configuration document.
type Config struct {
	// Root is the dataset distribution directory (imaging/ + clinical/).
	Root string `yaml:"root"`

	// Strategy is one of ondemand, cached, iterable. Default ondemand.
	Strategy Strategy `yaml:"strategy"`

	// BatchSize for yielded batches. Default 32.
	BatchSize int `yaml:"batch_size"`

	// Shuffle reshuffles sample order each epoch (ignored by iterable).
	Shuffle bool `yaml:"shuffle"`

	// Seed for shuffling. Zero means time-based.
	Seed int64 `yaml:"seed"`

	// TargetShape is the fixed per-frame output shape.
	TargetShape ShapeCfg `yaml:"target_shape"`

	// CacheFraction is the startup preload fraction for the cached
	// strategy, in (0, 1].
	CacheFraction float64 `yaml:"cache_fraction"`

	// DecodedCache bounds the on-demand strategy's decoded-volume cache.
	DecodedCache DecodedCacheCfg `yaml:"decoded_cache"`

	Filter FilterCfg `yaml:"filter"`
	Label  LabelCfg  `yaml:"label"`
	Split  SplitCfg  `yaml:"split"`
}

// ShapeCfg is a rows x cols frame shape.
type ShapeCfg struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// DecodedCacheCfg configures the bounded LRU of decoded volumes used by the
// on-demand strategy. MaxEntries 0 disables it.
type DecodedCacheCfg struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// FilterCfg narrows the enumeration. Empty lists match everything.
type FilterCfg struct {
	Devices    []string `yaml:"devices"`
	Modalities []string `yaml:"modalities"`
	Regions    []string `yaml:"regions"`
	Split      string   `yaml:"split"`
}

// LabelCfg selects the label signal.
type LabelCfg struct {
	Kind      string `yaml:"kind"`
	ConceptID string `yaml:"concept_id"`
}

// SplitCfg holds the train/val percentages; test takes the remainder.
type SplitCfg struct {
	TrainPct int `yaml:"train_pct"`
	ValPct   int `yaml:"val_pct"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyOnDemand
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.TargetShape.Rows == 0 {
		c.TargetShape.Rows = 224
	}
	if c.TargetShape.Cols == 0 {
		c.TargetShape.Cols = 224
	}
	if c.Label.Kind == "" {
		c.Label.Kind = string(clinical.LabelDiabetesStatus)
	}
	if c.Split.TrainPct == 0 && c.Split.ValPct == 0 {
		c.Split.TrainPct = manifest.DefaultSplitRatios.TrainPct
		c.Split.ValPct = manifest.DefaultSplitRatios.ValPct
	}
}

// Validate checks field ranges, enum tokens and the
// device/modality/region compatibility of the filter.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root directory is required")
	}
	switch c.Strategy {
	case StrategyOnDemand, StrategyCached, StrategyIterable:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.TargetShape.Rows <= 0 || c.TargetShape.Cols <= 0 {
		return fmt.Errorf("target_shape must be positive, got %dx%d", c.TargetShape.Rows, c.TargetShape.Cols)
	}
	if c.Strategy == StrategyCached && (c.CacheFraction <= 0 || c.CacheFraction > 1) {
		return fmt.Errorf("cache_fraction %v out of range (0, 1] for strategy cached", c.CacheFraction)
	}
	if c.DecodedCache.MaxEntries < 0 {
		return fmt.Errorf("decoded_cache.max_entries must not be negative")
	}

	kind, err := clinical.ParseLabelKind(c.Label.Kind)
	if err != nil {
		return err
	}
	if kind == clinical.LabelConcept && c.Label.ConceptID == "" {
		return fmt.Errorf("label kind %s requires concept_id", kind)
	}
	if kind != clinical.LabelConcept && c.Label.ConceptID != "" {
		return fmt.Errorf("concept_id is only valid with label kind %s", clinical.LabelConcept)
	}

	ratios := manifest.SplitRatios{TrainPct: c.Split.TrainPct, ValPct: c.Split.ValPct}
	if err := ratios.Validate(); err != nil {
		return err
	}
	if _, err := c.ManifestFilter(); err != nil {
		return err
	}
	return nil
}

// ManifestFilter resolves the filter section into typed manifest terms and
// rejects device/modality/region combinations that cannot exist.
func (c *Config) ManifestFilter() (manifest.Filter, error) {
	f := manifest.Filter{
		Ratios: manifest.SplitRatios{TrainPct: c.Split.TrainPct, ValPct: c.Split.ValPct},
	}
	var err error

	for _, s := range c.Filter.Devices {
		d, perr := manifest.ParseDevice(s)
		if perr != nil {
			return manifest.Filter{}, perr
		}
		f.Devices = append(f.Devices, d)
	}
	for _, s := range c.Filter.Modalities {
		m, perr := manifest.ParseModality(s)
		if perr != nil {
			return manifest.Filter{}, perr
		}
		f.Modalities = append(f.Modalities, m)
	}
	for _, s := range c.Filter.Regions {
		r, perr := manifest.ParseRegion(s)
		if perr != nil {
			return manifest.Filter{}, perr
		}
		f.Regions = append(f.Regions, r)
	}
	if f.Split, err = manifest.ParseSplit(c.Filter.Split); err != nil {
		return manifest.Filter{}, err
	}

	// Every requested modality and region must be producible by at least
	// one requested device, otherwise the filter can never match a sample.
	if len(f.Devices) > 0 {
		for _, m := range f.Modalities {
			supported := false
			for _, d := range f.Devices {
				if manifest.Supports(d, m) {
					supported = true
					break
				}
			}
			if !supported {
				return manifest.Filter{}, fmt.Errorf("no requested device produces modality %s", m)
			}
		}
		for _, r := range f.Regions {
			supported := false
			for _, d := range f.Devices {
				if manifest.SupportsRegion(d, r) {
					supported = true
					break
				}
			}
			if !supported {
				return manifest.Filter{}, fmt.Errorf("no requested device acquires region %s", r)
			}
		}
	}
	return f, nil
}

// LabelKind returns the validated label kind.
func (c *Config) LabelKind() clinical.LabelKind {
	return clinical.LabelKind(c.Label.Kind)
}

// Ratios returns the configured split ratios.
func (c *Config) Ratios() manifest.SplitRatios {
	return manifest.SplitRatios{TrainPct: c.Split.TrainPct, ValPct: c.Split.ValPct}
}
