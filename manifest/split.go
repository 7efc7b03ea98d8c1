package manifest

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Split is a train/validation/test partition of the dataset. Assignment is
// per patient, never per sample: every image of a patient lands in the same
// split so the eval partitions stay patient-disjoint.
type Split string

const (
	// SplitAny disables split filtering.
	SplitAny   Split = ""
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// ParseSplit validates a split token; the empty string means "any".
func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case SplitAny, SplitTrain, SplitVal, SplitTest:
		return Split(s), nil
	}
	return "", fmt.Errorf("unknown split %q", s)
}

// SplitRatios configures the train/val percentages; test takes the
// remainder. Percentages are integer points of 100.
type SplitRatios struct {
	TrainPct int
	ValPct   int
}

// DefaultSplitRatios is the 70/10/20 partition used by the distribution.
var DefaultSplitRatios = SplitRatios{TrainPct: 70, ValPct: 10}

// Validate checks that the percentages describe a partition. The test
// remainder may be zero but never negative.
func (r SplitRatios) Validate() error {
	if r.TrainPct <= 0 || r.ValPct < 0 {
		return fmt.Errorf("split ratios must be positive: train=%d val=%d", r.TrainPct, r.ValPct)
	}
	if r.TrainPct+r.ValPct > 100 {
		return fmt.Errorf("split ratios exceed 100%%: train=%d val=%d", r.TrainPct, r.ValPct)
	}
	return nil
}

// Assign returns the split for a patient. The assignment hashes the patient
// id into one of 100 buckets, so it is stable across runs, machines and
// enumeration order for fixed ratios.
func (r SplitRatios) Assign(patient string) Split {
	bucket := int(xxh3.HashString(patient) % 100)
	switch {
	case bucket < r.TrainPct:
		return SplitTrain
	case bucket < r.TrainPct+r.ValPct:
		return SplitVal
	default:
		return SplitTest
	}
}
