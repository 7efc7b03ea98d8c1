package dicomio

import "testing"

// rampVolume fills a volume with pixel value (d*1000 + r*100 + c) scaled
// down, so positions are identifiable after fitting.
func rampVolume(depth, rows, cols int) *Volume {
	v := NewVolume(depth, rows, cols)
	for d := 0; d < depth; d++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v.Pix[(d*rows+r)*cols+c] = float32(d*1000+r*100+c) / 10000
			}
		}
	}
	return v
}

func TestFitTo_Identity(t *testing.T) {
	v := rampVolume(2, 4, 4)
	if got := FitTo(v, 4, 4); got != v {
		t.Fatalf("expected identity fit to return the same volume")
	}
}

func TestFitTo_CenterCrop(t *testing.T) {
	v := rampVolume(1, 6, 6)
	got := FitTo(v, 2, 2)
	if got.Depth != 1 || got.Rows != 2 || got.Cols != 2 {
		t.Fatalf("unexpected shape %dx%dx%d", got.Depth, got.Rows, got.Cols)
	}
	// Center window of a 6x6 frame starts at (2,2).
	if got.At(0, 0, 0) != v.At(0, 2, 2) || got.At(0, 1, 1) != v.At(0, 3, 3) {
		t.Fatalf("crop window not centered: got %v want %v", got.At(0, 0, 0), v.At(0, 2, 2))
	}
}

func TestFitTo_ZeroPad(t *testing.T) {
	v := rampVolume(1, 2, 2)
	got := FitTo(v, 4, 4)
	if got.Rows != 4 || got.Cols != 4 {
		t.Fatalf("unexpected shape %dx%d", got.Rows, got.Cols)
	}
	// Source lands centered at offset (1,1); corners stay zero.
	if got.At(0, 0, 0) != 0 || got.At(0, 3, 3) != 0 {
		t.Fatalf("expected zero padding at corners")
	}
	if got.At(0, 1, 1) != v.At(0, 0, 0) || got.At(0, 2, 2) != v.At(0, 1, 1) {
		t.Fatalf("source frame not centered in padded output")
	}
}

func TestFitTo_MixedCropAndPad(t *testing.T) {
	v := rampVolume(3, 8, 2)
	got := FitTo(v, 4, 4)
	if got.Depth != 3 || got.Rows != 4 || got.Cols != 4 {
		t.Fatalf("unexpected shape %dx%dx%d", got.Depth, got.Rows, got.Cols)
	}
	// Rows crop from offset 2, cols pad at offset 1. Spot-check each frame.
	for d := 0; d < 3; d++ {
		if got.At(d, 0, 1) != v.At(d, 2, 0) {
			t.Fatalf("frame %d: expected %v at (0,1), got %v", d, v.At(d, 2, 0), got.At(d, 0, 1))
		}
		if got.At(d, 0, 0) != 0 || got.At(d, 0, 3) != 0 {
			t.Fatalf("frame %d: expected zero pad columns", d)
		}
	}
}

func TestExtractFrame(t *testing.T) {
	v := rampVolume(4, 3, 3)
	f, err := v.ExtractFrame(2)
	if err != nil {
		t.Fatalf("ExtractFrame failed: %v", err)
	}
	if f.Depth != 1 || f.Rows != 3 || f.Cols != 3 {
		t.Fatalf("unexpected frame shape %dx%dx%d", f.Depth, f.Rows, f.Cols)
	}
	if f.At(0, 1, 2) != v.At(2, 1, 2) {
		t.Fatalf("frame content mismatch")
	}

	if _, err := v.ExtractFrame(4); err == nil {
		t.Fatalf("expected out-of-range frame to error")
	}
	if _, err := v.ExtractFrame(-1); err == nil {
		t.Fatalf("expected negative frame to error")
	}
}
