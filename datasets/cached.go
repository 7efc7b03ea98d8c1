package datasets

import (
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/rs/zerolog/log"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/dicomio"
	"github.com/oculoml/retinaset/manifest"
)

// CachedDataset decodes the first ceil(fraction*N) samples in manifest order
// once at construction and keeps them resident; samples past the preload
// boundary decode on demand. There is no eviction: the preload is a one-shot
// startup cost traded for epoch latency.
type CachedDataset struct {
	src       *source
	preloaded []*dicomio.Volume
	labels    [][]float32
	ep        *epoch
}

// NewCached builds a cached dataset. opts.CacheFraction must be in (0, 1];
// 1 preloads everything.
func NewCached(entries []manifest.Entry, labeler *clinical.Labeler, dec dicomio.Decoder, opts Options) (*CachedDataset, error) {
	opts.applyDefaults()
	if opts.CacheFraction <= 0 || opts.CacheFraction > 1 {
		return nil, fmt.Errorf("cache fraction %v out of range (0, 1]", opts.CacheFraction)
	}
	src, err := newSource(entries, labeler, dec, opts)
	if err != nil {
		return nil, err
	}

	n := int(math.Ceil(opts.CacheFraction * float64(src.len())))
	d := &CachedDataset{
		src:       src,
		preloaded: make([]*dicomio.Volume, n),
		labels:    make([][]float32, n),
		ep:        newEpoch(src.len(), opts.BatchSize, opts.Shuffle, opts.Seed),
	}
	for i := 0; i < n; i++ {
		if d.preloaded[i], d.labels[i], err = src.load(i); err != nil {
			return nil, fmt.Errorf("preload failed at sample %d/%d: %w", i, n, err)
		}
	}
	log.Debug().
		Int("preloaded", n).
		Int("total", src.len()).
		Float64("fraction", opts.CacheFraction).
		Msg("dataset preload complete")
	return d, nil
}

// Name implements Dataset.
func (d *CachedDataset) Name() string { return "CachedDataset" }

// Len returns the number of samples.
func (d *CachedDataset) Len() int { return d.src.len() }

// Preloaded returns how many samples are held in memory.
func (d *CachedDataset) Preloaded() int { return len(d.preloaded) }

func (d *CachedDataset) load(i int) (*dicomio.Volume, []float32, error) {
	if i >= 0 && i < len(d.preloaded) {
		return d.preloaded[i], d.labels[i], nil
	}
	return d.src.load(i)
}

// Example returns the record for sample i, served from memory when i falls
// inside the preload boundary.
func (d *CachedDataset) Example(i int) (Record, error) {
	v, label, err := d.load(i)
	if err != nil {
		return Record{}, err
	}
	return d.src.record(v, label), nil
}

// Batch loads the given indices and stacks them into batch tensors.
func (d *CachedDataset) Batch(indices []int) (frames *tensors.Tensor, labels *tensors.Tensor, err error) {
	vols := make([]*dicomio.Volume, len(indices))
	labs := make([][]float32, len(indices))
	for pos, idx := range indices {
		if vols[pos], labs[pos], err = d.load(idx); err != nil {
			return nil, nil, err
		}
	}
	return stackBatch(vols, labs)
}

// Yield implements Dataset.
func (d *CachedDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices, err := d.ep.next()
	if err != nil {
		return nil, nil, nil, err
	}
	in, lab, err := d.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Reset implements Dataset.
func (d *CachedDataset) Reset() { d.ep.reset() }
