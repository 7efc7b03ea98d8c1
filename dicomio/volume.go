package dicomio

import "fmt"

// Volume is a decoded image stack: Depth frames of Rows x Cols float32
// pixels normalized to [0,1]. Planar modalities decode to Depth 1.
type Volume struct {
	Depth, Rows, Cols int
	Pix               []float32
}

// NewVolume allocates a zeroed volume.
func NewVolume(depth, rows, cols int) *Volume {
	return &Volume{
		Depth: depth,
		Rows:  rows,
		Cols:  cols,
		Pix:   make([]float32, depth*rows*cols),
	}
}

// Frame returns the pixels of frame i as a view into the volume buffer.
func (v *Volume) Frame(i int) []float32 {
	n := v.Rows * v.Cols
	return v.Pix[i*n : (i+1)*n]
}

// At returns the pixel at (frame, row, col).
func (v *Volume) At(d, r, c int) float32 {
	return v.Pix[(d*v.Rows+r)*v.Cols+c]
}

// ExtractFrame returns a Depth-1 volume holding a copy of frame i.
func (v *Volume) ExtractFrame(i int) (*Volume, error) {
	if i < 0 || i >= v.Depth {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, v.Depth)
	}
	out := NewVolume(1, v.Rows, v.Cols)
	copy(out.Pix, v.Frame(i))
	return out, nil
}

// FitTo returns a volume whose every frame has exactly rows x cols pixels.
// Larger frames are center-cropped, smaller ones are zero-padded around the
// center. The input is returned unchanged when it already fits.
func FitTo(v *Volume, rows, cols int) *Volume {
	if v.Rows == rows && v.Cols == cols {
		return v
	}
	out := NewVolume(v.Depth, rows, cols)

	// Offsets of the copied window inside source and destination frames.
	srcR, dstR := centered(v.Rows, rows)
	srcC, dstC := centered(v.Cols, cols)
	copyRows := minInt(v.Rows, rows)
	copyCols := minInt(v.Cols, cols)

	for d := 0; d < v.Depth; d++ {
		src := v.Frame(d)
		dst := out.Frame(d)
		for r := 0; r < copyRows; r++ {
			srcOff := (srcR+r)*v.Cols + srcC
			dstOff := (dstR+r)*cols + dstC
			copy(dst[dstOff:dstOff+copyCols], src[srcOff:srcOff+copyCols])
		}
	}
	return out
}

// centered returns (source offset, destination offset) for copying a
// centered window between extents of size have and want.
func centered(have, want int) (srcOff, dstOff int) {
	if have > want {
		return (have - want) / 2, 0
	}
	return 0, (want - have) / 2
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
