package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oculoml/retinaset/manifest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "root: /data/retina\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, StrategyOnDemand, cfg.Strategy)
	require.Equal(t, 32, cfg.BatchSize)
	require.Equal(t, 224, cfg.TargetShape.Rows)
	require.Equal(t, 224, cfg.TargetShape.Cols)
	require.Equal(t, "diabetes_status", cfg.Label.Kind)
	require.Equal(t, manifest.DefaultSplitRatios, cfg.Ratios())
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeConfig(t, `
root: /data/retina
strategy: cached
cache_fraction: 0.25
batch_size: 16
shuffle: true
seed: 42
target_shape:
  rows: 128
  cols: 196
filter:
  devices: [maestro2, triton]
  modalities: [octa]
  regions: [macula]
  split: train
label:
  kind: concept
  concept_id: hba1c
split:
  train_pct: 60
  val_pct: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, StrategyCached, cfg.Strategy)
	require.Equal(t, 0.25, cfg.CacheFraction)
	require.Equal(t, 16, cfg.BatchSize)
	require.Equal(t, 128, cfg.TargetShape.Rows)

	f, err := cfg.ManifestFilter()
	require.NoError(t, err)
	require.Equal(t, []manifest.Device{manifest.DeviceMaestro2, manifest.DeviceTriton}, f.Devices)
	require.Equal(t, []manifest.Modality{manifest.ModalityOCTA}, f.Modalities)
	require.Equal(t, manifest.SplitTrain, f.Split)
	require.Equal(t, manifest.SplitRatios{TrainPct: 60, ValPct: 20}, f.Ratios)
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg := &Config{Root: "/data/retina"}
		cfg.ApplyDefaults()
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing root", func(c *Config) { c.Root = "" }},
		{"unknown strategy", func(c *Config) { c.Strategy = "mmap" }},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }},
		{"zero shape", func(c *Config) { c.TargetShape.Rows = 0 }},
		{"cached without fraction", func(c *Config) { c.Strategy = StrategyCached }},
		{"fraction above one", func(c *Config) { c.Strategy = StrategyCached; c.CacheFraction = 1.5 }},
		{"unknown label kind", func(c *Config) { c.Label.Kind = "grading" }},
		{"concept without id", func(c *Config) { c.Label.Kind = "concept" }},
		{"concept id on class label", func(c *Config) { c.Label.ConceptID = "hba1c" }},
		{"bad ratios", func(c *Config) { c.Split.TrainPct = 90; c.Split.ValPct = 20 }},
		{"unknown device", func(c *Config) { c.Filter.Devices = []string{"kowa"} }},
		{"unknown modality", func(c *Config) { c.Filter.Modalities = []string{"mri"} }},
		{"unknown region", func(c *Config) { c.Filter.Regions = []string{"retina"} }},
		{"unknown split", func(c *Config) { c.Filter.Split = "holdout" }},
		{"device cannot produce modality", func(c *Config) {
			c.Filter.Devices = []string{"eidon"}
			c.Filter.Modalities = []string{"oct"}
		}},
		{"device cannot acquire region", func(c *Config) {
			c.Filter.Devices = []string{"spectralis"}
			c.Filter.Regions = []string{"widefield"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_CompatibleFilterAccepted(t *testing.T) {
	cfg := &Config{Root: "/data/retina"}
	cfg.ApplyDefaults()
	cfg.Filter.Devices = []string{"maestro2", "eidon"}
	cfg.Filter.Modalities = []string{"octa", "faf"}
	cfg.Filter.Regions = []string{"macula", "widefield"}
	require.NoError(t, cfg.Validate())
}
