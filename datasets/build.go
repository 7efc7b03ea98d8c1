package datasets

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/config"
	"github.com/oculoml/retinaset/dicomio"
	"github.com/oculoml/retinaset/manifest"
)

// FromConfig scans the distribution named by cfg, loads the clinical
// tables, applies the filter and builds the configured strategy. The
// decoder defaults to the DICOM parser; pass a non-nil dec to override it.
func FromConfig(cfg *config.Config, dec dicomio.Decoder) (Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dec == nil {
		dec = dicomio.DICOMDecoder{}
	}

	m, err := manifest.Scan(cfg.Root)
	if err != nil {
		return nil, err
	}
	filter, err := cfg.ManifestFilter()
	if err != nil {
		return nil, err
	}
	entries := m.Select(filter)
	if len(entries) == 0 {
		return nil, fmt.Errorf("filter matches no samples (%d enumerated)", m.Len())
	}

	tables, err := clinical.LoadTables(cfg.Root)
	if err != nil {
		return nil, err
	}
	labeler, err := clinical.NewLabeler(cfg.LabelKind(), cfg.Label.ConceptID, tables)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("enumerated", m.Len()).
		Int("selected", len(entries)).
		Str("strategy", string(cfg.Strategy)).
		Str("label", cfg.Label.Kind).
		Msg("dataset ready")

	opts := Options{
		BatchSize:           cfg.BatchSize,
		Rows:                cfg.TargetShape.Rows,
		Cols:                cfg.TargetShape.Cols,
		Shuffle:             cfg.Shuffle,
		Seed:                cfg.Seed,
		CacheFraction:       cfg.CacheFraction,
		DecodedCacheEntries: cfg.DecodedCache.MaxEntries,
		DecodedCacheTTL:     cfg.DecodedCache.TTL,
	}

	switch cfg.Strategy {
	case config.StrategyOnDemand:
		return NewOnDemand(entries, labeler, dec, opts)
	case config.StrategyCached:
		return NewCached(entries, labeler, dec, opts)
	case config.StrategyIterable:
		return NewIterable(entries, labeler, dec, opts)
	}
	return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
}
