package manifest

import (
	"fmt"
	"testing"
)

func TestSplitRatios_AssignIsStable(t *testing.T) {
	r := DefaultSplitRatios
	for i := 0; i < 50; i++ {
		patient := fmt.Sprintf("patient-%04d", i)
		first := r.Assign(patient)
		for j := 0; j < 5; j++ {
			if got := r.Assign(patient); got != first {
				t.Fatalf("assignment for %s changed: %s then %s", patient, first, got)
			}
		}
	}
}

func TestSplitRatios_AssignPartitions(t *testing.T) {
	r := SplitRatios{TrainPct: 70, ValPct: 10}
	counts := map[Split]int{}
	const n = 2000
	for i := 0; i < n; i++ {
		counts[r.Assign(fmt.Sprintf("p%d", i))]++
	}
	if counts[SplitTrain]+counts[SplitVal]+counts[SplitTest] != n {
		t.Fatalf("assignments do not partition: %v", counts)
	}
	// Rough proportions: train should dominate, all buckets populated.
	if counts[SplitTrain] < n/2 {
		t.Fatalf("train split unexpectedly small: %v", counts)
	}
	if counts[SplitVal] == 0 || counts[SplitTest] == 0 {
		t.Fatalf("expected all splits populated: %v", counts)
	}
}

func TestSplitRatios_Validate(t *testing.T) {
	if err := (SplitRatios{TrainPct: 70, ValPct: 10}).Validate(); err != nil {
		t.Fatalf("expected default ratios to validate: %v", err)
	}
	if err := (SplitRatios{TrainPct: 0, ValPct: 10}).Validate(); err == nil {
		t.Fatalf("expected zero train ratio to be rejected")
	}
	if err := (SplitRatios{TrainPct: 80, ValPct: 30}).Validate(); err == nil {
		t.Fatalf("expected ratios over 100%% to be rejected")
	}
}

func TestParseSplit(t *testing.T) {
	for _, s := range []string{"", "train", "val", "test"} {
		if _, err := ParseSplit(s); err != nil {
			t.Fatalf("ParseSplit(%q) error: %v", s, err)
		}
	}
	if _, err := ParseSplit("holdout"); err == nil {
		t.Fatalf("expected unknown split to be rejected")
	}
}
