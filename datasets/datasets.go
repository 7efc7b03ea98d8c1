package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/oculoml/retinaset/clinical"
	"github.com/oculoml/retinaset/dicomio"
	"github.com/oculoml/retinaset/manifest"
)

// This package adapts an enumerated imaging manifest plus clinical labels to
// the gomlx train.Dataset contract. Three strategies trade memory for
// latency:
//
//   - OnDemandDataset decodes a file every time a sample is requested, with
//     a small bounded LRU/TTL cache for recently decoded volumes.
//   - CachedDataset decodes a configured fraction of the samples once at
//     construction and keeps them resident; the rest decode on demand.
//   - IterableDataset streams samples sequentially with a single cursor and
//     no random access.
//
// All strategies yield batches as gomlx tensors built with
// tensors.FromAnyValue, signal end of epoch with io.EOF, and rewind on
// Reset.

// Dataset is the contract shared by all three strategies. It matches
// gomlx's train.Dataset (Name, Yield, Reset) plus Len.
type Dataset interface {
	Name() string
	Len() int
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Reset()
}

// Record is the per-sample output mapping: a fixed-shape frames tensor of
// shape [depth][rows][cols] and a label tensor.
type Record struct {
	Frames *tensors.Tensor
	Label  *tensors.Tensor
}

// Map returns the record as the two-entry mapping consumed by batching
// utilities.
func (r Record) Map() map[string]*tensors.Tensor {
	return map[string]*tensors.Tensor{
		"frames": r.Frames,
		"label":  r.Label,
	}
}

// Options configures dataset construction. Zero values pick defaults.
type Options struct {
	// BatchSize used by Yield. Default 32.
	BatchSize int

	// Rows, Cols is the fixed target frame shape; decoded frames are
	// center-cropped or zero-padded to it. Default 224x224.
	Rows, Cols int

	// Shuffle reshuffles the sample order every epoch (OnDemand and Cached
	// only; IterableDataset always streams in manifest order).
	Shuffle bool

	// Seed for the shuffle RNG. Zero means time-based.
	Seed int64

	// CacheFraction is the fraction of samples CachedDataset preloads at
	// construction, in (0, 1].
	CacheFraction float64

	// DecodedCacheEntries bounds OnDemandDataset's decoded-volume cache.
	// Zero disables the cache.
	DecodedCacheEntries int

	// DecodedCacheTTL expires cached decoded volumes. Zero means no expiry.
	DecodedCacheTTL time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.Rows <= 0 {
		o.Rows = 224
	}
	if o.Cols <= 0 {
		o.Cols = 224
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}

// source resolves sample indices to fitted volumes and label vectors. It is
// the piece every strategy shares.
type source struct {
	entries []manifest.Entry
	labeler *clinical.Labeler
	decoder dicomio.Decoder
	rows    int
	cols    int
}

func newSource(entries []manifest.Entry, labeler *clinical.Labeler, dec dicomio.Decoder, opts Options) (*source, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no samples to serve")
	}
	if labeler == nil {
		return nil, fmt.Errorf("labeler is required")
	}
	if dec == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	return &source{
		entries: entries,
		labeler: labeler,
		decoder: dec,
		rows:    opts.Rows,
		cols:    opts.Cols,
	}, nil
}

func (s *source) len() int { return len(s.entries) }

// load decodes and fits sample i. Slice-addressed keys pointing at a
// multi-frame file select the addressed frame.
func (s *source) load(i int) (*dicomio.Volume, []float32, error) {
	if i < 0 || i >= len(s.entries) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", i, len(s.entries))
	}
	e := s.entries[i]

	v, err := s.decoder.Decode(e.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: %w", e.Key.String(), err)
	}
	if e.Key.Slice != manifest.NoSlice && v.Depth > 1 {
		if v, err = v.ExtractFrame(e.Key.Slice); err != nil {
			return nil, nil, fmt.Errorf("sample %s: %w", e.Key.String(), err)
		}
	}
	v = dicomio.FitTo(v, s.rows, s.cols)

	label, err := s.labeler.LabelFor(e.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: %w", e.Key.String(), err)
	}
	return v, label, nil
}

// record wraps a fitted volume and label into the output mapping.
func (s *source) record(v *dicomio.Volume, label []float32) Record {
	return Record{
		Frames: frameTensor(v),
		Label:  tensors.FromAnyValue(label),
	}
}

// frameTensor converts a volume into a [depth][rows][cols] tensor.
func frameTensor(v *dicomio.Volume) *tensors.Tensor {
	return tensors.FromAnyValue(frameData(v))
}

func frameData(v *dicomio.Volume) [][][]float32 {
	data := make([][][]float32, v.Depth)
	for d := 0; d < v.Depth; d++ {
		frame := v.Frame(d)
		rows := make([][]float32, v.Rows)
		for r := 0; r < v.Rows; r++ {
			rows[r] = frame[r*v.Cols : (r+1)*v.Cols]
		}
		data[d] = rows
	}
	return data
}

// stackBatch converts parallel volumes and labels into stacked
// [batch][depth][rows][cols] and [batch][labelDim] tensors. Rows and cols
// are already uniform via FitTo; depth can still differ between volumetric
// and planar samples, which is an error at batch time.
func stackBatch(vols []*dicomio.Volume, labels [][]float32) (*tensors.Tensor, *tensors.Tensor, error) {
	if len(vols) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	depth := vols[0].Depth
	frames := make([][][][]float32, len(vols))
	for i, v := range vols {
		if v.Depth != depth {
			return nil, nil, fmt.Errorf("inconsistent frame depth in batch: sample 0 has %d, sample %d has %d",
				depth, i, v.Depth)
		}
		frames[i] = frameData(v)
	}

	dim := len(labels[0])
	for i, l := range labels {
		if len(l) != dim {
			return nil, nil, fmt.Errorf("inconsistent label dimension at sample %d: expected %d, got %d", i, dim, len(l))
		}
	}
	return tensors.FromAnyValue(frames), tensors.FromAnyValue(labels), nil
}

// epoch is the shared batch cursor for the index-addressable strategies.
type epoch struct {
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []int
	cursor    int
}

func newEpoch(n, batchSize int, shuffle bool, seed int64) *epoch {
	e := &epoch{
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		order:     make([]int, n),
	}
	for i := range e.order {
		e.order[i] = i
	}
	if shuffle {
		e.rng.Shuffle(len(e.order), func(i, j int) {
			e.order[i], e.order[j] = e.order[j], e.order[i]
		})
	}
	return e
}

// next returns the indices of the next batch, or io.EOF once the epoch is
// exhausted. The final batch may be short.
func (e *epoch) next() ([]int, error) {
	if e.cursor >= len(e.order) {
		return nil, io.EOF
	}
	end := e.cursor + e.batchSize
	if end > len(e.order) {
		end = len(e.order)
	}
	batch := e.order[e.cursor:end]
	e.cursor = end
	return batch, nil
}

// reset rewinds the cursor and reshuffles when shuffling is enabled.
func (e *epoch) reset() {
	e.cursor = 0
	if e.shuffle {
		e.rng.Shuffle(len(e.order), func(i, j int) {
			e.order[i], e.order[j] = e.order[j], e.order[i]
		})
	}
}
