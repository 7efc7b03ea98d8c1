package dicomio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
)

// Decoder turns an on-disk image file into a normalized Volume. Datasets
// take a Decoder so tests and preprocessed distributions can substitute the
// DICOM parser.
type Decoder interface {
	Decode(path string) (*Volume, error)
}

// DecodeFunc adapts a plain function to the Decoder interface.
type DecodeFunc func(path string) (*Volume, error)

func (f DecodeFunc) Decode(path string) (*Volume, error) { return f(path) }

// Data element tags this package reads. Kept local; the adapter only needs
// a handful of attributes to materialize pixels.
const (
	tagNumberOfFrames = dicom.DataElementTag(0x00280008)
	tagRows           = dicom.DataElementTag(0x00280010)
	tagColumns        = dicom.DataElementTag(0x00280011)
	tagBitsAllocated  = dicom.DataElementTag(0x00280100)
	tagPixelData      = dicom.DataElementTag(0x7FE00010)
)

// DICOMDecoder decodes image files with the DICOM parser. Pixel values are
// scaled by the bit depth into [0,1].
type DICOMDecoder struct{}

func (DICOMDecoder) Decode(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	ds, err := dicom.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	rows, err := intAttribute(ds, tagRows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cols, err := intAttribute(ds, tagColumns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	depth, err := intAttribute(ds, tagNumberOfFrames)
	if err != nil {
		depth = 1 // NumberOfFrames is optional for single-frame objects
	}
	bits, err := intAttribute(ds, tagBitsAllocated)
	if err != nil {
		bits = 8
	}
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("%s: unsupported bits allocated %d", path, bits)
	}
	if rows <= 0 || cols <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%s: invalid dimensions %dx%dx%d", path, depth, rows, cols)
	}

	raw, err := pixelBytes(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	want := depth * rows * cols * bits / 8
	if len(raw) < want {
		return nil, fmt.Errorf("%s: pixel data too short: have %d bytes, want %d", path, len(raw), want)
	}

	v := NewVolume(depth, rows, cols)
	if bits == 8 {
		for i := range v.Pix {
			v.Pix[i] = float32(raw[i]) / 255
		}
	} else {
		for i := range v.Pix {
			v.Pix[i] = float32(binary.LittleEndian.Uint16(raw[2*i:])) / 65535
		}
	}
	return v, nil
}

// intAttribute extracts a small integer attribute, tolerating the value
// representations the parser produces for US/UL/IS elements.
func intAttribute(ds *dicom.DataSet, tag dicom.DataElementTag) (int, error) {
	elem, ok := ds.Elements[tag]
	if !ok {
		return 0, fmt.Errorf("missing data element %08X", uint32(tag))
	}
	switch v := elem.ValueField.(type) {
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), nil
		}
	case []uint32:
		if len(v) > 0 {
			return int(v[0]), nil
		}
	case []int32:
		if len(v) > 0 {
			return int(v[0]), nil
		}
	case []int64:
		if len(v) > 0 {
			return int(v[0]), nil
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			if err != nil {
				return 0, fmt.Errorf("data element %08X: %w", uint32(tag), err)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("data element %08X has no usable integer value", uint32(tag))
}

// pixelBytes extracts the raw PixelData payload. The parser buffers OW/OB
// value fields either as byte slices or as bulk-data buffers; both are
// flattened here.
func pixelBytes(ds *dicom.DataSet) ([]byte, error) {
	elem, ok := ds.Elements[tagPixelData]
	if !ok {
		return nil, fmt.Errorf("missing pixel data")
	}
	switch v := elem.ValueField.(type) {
	case []byte:
		return v, nil
	case [][]byte:
		return bytes.Join(v, nil), nil
	case interface{ Data() [][]byte }:
		return bytes.Join(v.Data(), nil), nil
	}
	return nil, fmt.Errorf("unsupported pixel data representation %T", elem.ValueField)
}
