package datasets

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/dicomio"
	"github.com/oculoml/retinaset/manifest"
)

// IterableDataset streams samples sequentially in manifest order with a
// single cursor and constant memory. It deliberately offers no random
// access; loaders that need Example/Batch should use the on-demand or
// cached strategies.
type IterableDataset struct {
	src       *source
	batchSize int
	cursor    int
}

// NewIterable builds a streaming dataset over the given entries.
func NewIterable(entries []manifest.Entry, labeler *clinical.Labeler, dec dicomio.Decoder, opts Options) (*IterableDataset, error) {
	opts.applyDefaults()
	src, err := newSource(entries, labeler, dec, opts)
	if err != nil {
		return nil, err
	}
	return &IterableDataset{src: src, batchSize: opts.BatchSize}, nil
}

// Name implements Dataset.
func (d *IterableDataset) Name() string { return "IterableDataset" }

// Len returns the number of samples in one epoch.
func (d *IterableDataset) Len() int { return d.src.len() }

// Yield implements Dataset: decodes the next run of samples in order and
// returns them as one stacked batch; io.EOF once the stream is exhausted.
func (d *IterableDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= d.src.len() {
		return nil, nil, nil, io.EOF
	}
	end := d.cursor + d.batchSize
	if end > d.src.len() {
		end = d.src.len()
	}

	vols := make([]*dicomio.Volume, 0, end-d.cursor)
	labs := make([][]float32, 0, end-d.cursor)
	for ; d.cursor < end; d.cursor++ {
		v, label, err := d.src.load(d.cursor)
		if err != nil {
			return nil, nil, nil, err
		}
		vols = append(vols, v)
		labs = append(labs, label)
	}

	in, lab, err := stackBatch(vols, labs)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Reset implements Dataset: rewinds the stream to the first sample.
func (d *IterableDataset) Reset() { d.cursor = 0 }
