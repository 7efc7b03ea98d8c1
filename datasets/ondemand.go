package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/dicomio"
	"github.com/oculoml/retinaset/manifest"
)

// OnDemandDataset decodes image files as samples are requested. Memory use
// stays flat regardless of dataset size; every access pays decode latency
// unless the bounded decoded-volume cache still holds the sample.
type OnDemandDataset struct {
	src   *source
	cache *volumeCache
	ep    *epoch
}

// NewOnDemand builds an on-demand dataset over the given entries.
func NewOnDemand(entries []manifest.Entry, labeler *clinical.Labeler, dec dicomio.Decoder, opts Options) (*OnDemandDataset, error) {
	opts.applyDefaults()
	src, err := newSource(entries, labeler, dec, opts)
	if err != nil {
		return nil, err
	}
	d := &OnDemandDataset{
		src: src,
		ep:  newEpoch(src.len(), opts.BatchSize, opts.Shuffle, opts.Seed),
	}
	if opts.DecodedCacheEntries > 0 {
		d.cache = newVolumeCache(opts.DecodedCacheEntries, opts.DecodedCacheTTL)
	}
	return d, nil
}

// Name implements Dataset.
func (d *OnDemandDataset) Name() string { return "OnDemandDataset" }

// Len returns the number of samples.
func (d *OnDemandDataset) Len() int { return d.src.len() }

// loadCached decodes sample i, serving the decoded volume from the cache
// when present. Labels are always resolved fresh; they are cheap lookups.
func (d *OnDemandDataset) loadCached(i int) (*dicomio.Volume, []float32, error) {
	if d.cache == nil {
		return d.src.load(i)
	}
	ck := cacheKey(d.src.entries[i].Key)
	if v, ok := d.cache.get(ck); ok {
		label, err := d.src.labeler.LabelFor(d.src.entries[i].Key)
		if err != nil {
			return nil, nil, err
		}
		return v, label, nil
	}
	v, label, err := d.src.load(i)
	if err != nil {
		return nil, nil, err
	}
	d.cache.put(ck, v)
	return v, label, nil
}

// Example returns the record for sample i.
func (d *OnDemandDataset) Example(i int) (Record, error) {
	v, label, err := d.loadCached(i)
	if err != nil {
		return Record{}, err
	}
	return d.src.record(v, label), nil
}

// Batch loads the given indices and stacks them into batch tensors.
func (d *OnDemandDataset) Batch(indices []int) (frames *tensors.Tensor, labels *tensors.Tensor, err error) {
	vols := make([]*dicomio.Volume, len(indices))
	labs := make([][]float32, len(indices))
	for pos, idx := range indices {
		if vols[pos], labs[pos], err = d.loadCached(idx); err != nil {
			return nil, nil, err
		}
	}
	return stackBatch(vols, labs)
}

// Yield implements Dataset: the next batch in epoch order, io.EOF when the
// epoch is exhausted.
func (d *OnDemandDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
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
func (d *OnDemandDataset) Reset() { d.ep.reset() }
