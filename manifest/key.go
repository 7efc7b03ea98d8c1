package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// This file defines the sample identity model: every image in the
// distribution is addressed by a Key of
// (patient, visit, device, modality, region, laterality, slab, slice),
// and every Key resolves to exactly one file on disk. The file name IS the
// key, so enumeration never has to open an image to know what it is.

// Device identifies the acquisition instrument.
type Device string

const (
	DeviceSpectralis Device = "spectralis"
	DeviceMaestro2   Device = "maestro2"
	DeviceTriton     Device = "triton"
	DeviceEidon      Device = "eidon"
)

// Modality identifies the imaging technique.
type Modality string

const (
	ModalityOCT  Modality = "oct"  // volumetric structural OCT
	ModalityOCTA Modality = "octa" // en-face angiography
	ModalityCFP  Modality = "cfp"  // color fundus photo
	ModalityIR   Modality = "ir"   // infrared reflectance
	ModalityFAF  Modality = "faf"  // fundus autofluorescence
)

// Region identifies the anatomic region the acquisition is centered on.
type Region string

const (
	RegionMacula    Region = "macula"
	RegionDisc      Region = "disc"
	RegionWidefield Region = "widefield"
)

// Laterality identifies the imaged eye.
type Laterality string

const (
	LateralityOD Laterality = "od" // right eye
	LateralityOS Laterality = "os" // left eye
)

// Slab identifies the en-face projection depth band. Only meaningful for
// OCTA acquisitions.
type Slab string

const (
	SlabSuperficial      Slab = "superficial"
	SlabDeep             Slab = "deep"
	SlabAvascular        Slab = "avascular"
	SlabChoriocapillaris Slab = "choriocapillaris"
)

// NoSlice marks a Key that addresses a whole file (planar image or full
// volume) rather than a single B-scan.
const NoSlice = -1

// deviceModalities lists which imaging techniques each instrument can
// actually produce. Combinations outside this table do not exist in the
// distribution and are rejected during validation.
var deviceModalities = map[Device][]Modality{
	DeviceSpectralis: {ModalityOCT, ModalityIR},
	DeviceMaestro2:   {ModalityOCT, ModalityOCTA, ModalityCFP},
	DeviceTriton:     {ModalityOCT, ModalityOCTA, ModalityCFP},
	DeviceEidon:      {ModalityCFP, ModalityIR, ModalityFAF},
}

// deviceRegions lists the acquisition regions each instrument supports.
var deviceRegions = map[Device][]Region{
	DeviceSpectralis: {RegionMacula, RegionDisc},
	DeviceMaestro2:   {RegionMacula, RegionWidefield},
	DeviceTriton:     {RegionMacula, RegionDisc, RegionWidefield},
	DeviceEidon:      {RegionMacula, RegionWidefield},
}

var slabs = map[Slab]bool{
	SlabSuperficial:      true,
	SlabDeep:             true,
	SlabAvascular:        true,
	SlabChoriocapillaris: true,
}

// ParseDevice validates a device token from a path or config.
func ParseDevice(s string) (Device, error) {
	d := Device(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := deviceModalities[d]; !ok {
		return "", fmt.Errorf("unknown device %q", s)
	}
	return d, nil
}

// ParseModality validates a modality token from a path or config.
func ParseModality(s string) (Modality, error) {
	m := Modality(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModalityOCT, ModalityOCTA, ModalityCFP, ModalityIR, ModalityFAF:
		return m, nil
	}
	return "", fmt.Errorf("unknown modality %q", s)
}

// ParseRegion validates an anatomic region token.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RegionMacula, RegionDisc, RegionWidefield:
		return r, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// ParseLaterality validates a laterality token.
func ParseLaterality(s string) (Laterality, error) {
	l := Laterality(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LateralityOD, LateralityOS:
		return l, nil
	}
	return "", fmt.Errorf("unknown laterality %q", s)
}

// ParseSlab validates an en-face slab token.
func ParseSlab(s string) (Slab, error) {
	sl := Slab(strings.ToLower(strings.TrimSpace(s)))
	if !slabs[sl] {
		return "", fmt.Errorf("unknown slab %q", s)
	}
	return sl, nil
}

// Supports reports whether the device can produce the modality.
func Supports(d Device, m Modality) bool {
	for _, dm := range deviceModalities[d] {
		if dm == m {
			return true
		}
	}
	return false
}

// SupportsRegion reports whether the device acquires the region.
func SupportsRegion(d Device, r Region) bool {
	for _, dr := range deviceRegions[d] {
		if dr == r {
			return true
		}
	}
	return false
}

// Key uniquely identifies one sample of the dataset. Slab is empty except
// for OCTA en-face projections; Slice is NoSlice except for single B-scan
// files of an OCT acquisition.
type Key struct {
	Patient    string
	Visit      string
	Device     Device
	Modality   Modality
	Region     Region
	Laterality Laterality
	Slab       Slab
	Slice      int
}

// Validate checks field syntax and the device/modality/region/slab/slice
// compatibility rules.
func (k Key) Validate() error {
	if k.Patient == "" || strings.ContainsAny(k.Patient, "_/") {
		return fmt.Errorf("invalid patient id %q", k.Patient)
	}
	if k.Visit == "" || strings.ContainsAny(k.Visit, "_/") {
		return fmt.Errorf("invalid visit %q for patient %s", k.Visit, k.Patient)
	}
	if _, err := ParseDevice(string(k.Device)); err != nil {
		return err
	}
	if _, err := ParseModality(string(k.Modality)); err != nil {
		return err
	}
	if _, err := ParseRegion(string(k.Region)); err != nil {
		return err
	}
	if _, err := ParseLaterality(string(k.Laterality)); err != nil {
		return err
	}
	if !Supports(k.Device, k.Modality) {
		return fmt.Errorf("device %s does not produce modality %s", k.Device, k.Modality)
	}
	if !SupportsRegion(k.Device, k.Region) {
		return fmt.Errorf("device %s does not acquire region %s", k.Device, k.Region)
	}
	if k.Slab != "" {
		if k.Modality != ModalityOCTA {
			return fmt.Errorf("slab %s requires modality octa, got %s", k.Slab, k.Modality)
		}
		if _, err := ParseSlab(string(k.Slab)); err != nil {
			return err
		}
	}
	if k.Slice != NoSlice {
		if k.Slice < 0 {
			return fmt.Errorf("negative slice index %d", k.Slice)
		}
		if k.Modality != ModalityOCT {
			return fmt.Errorf("slice index requires modality oct, got %s", k.Modality)
		}
	}
	return nil
}

// FileName renders the canonical file name for the key:
//
//	<patient>_<visit>_<device>_<modality>_<region>_<laterality>[_slab-<slab>][_slice-<NNN>].dcm
func (k Key) FileName() string {
	var b strings.Builder
	b.WriteString(k.Patient)
	b.WriteByte('_')
	b.WriteString(k.Visit)
	b.WriteByte('_')
	b.WriteString(string(k.Device))
	b.WriteByte('_')
	b.WriteString(string(k.Modality))
	b.WriteByte('_')
	b.WriteString(string(k.Region))
	b.WriteByte('_')
	b.WriteString(string(k.Laterality))
	if k.Slab != "" {
		b.WriteString("_slab-")
		b.WriteString(string(k.Slab))
	}
	if k.Slice != NoSlice {
		fmt.Fprintf(&b, "_slice-%03d", k.Slice)
	}
	b.WriteString(".dcm")
	return b.String()
}

// String returns the file name without extension; used as the canonical
// ordering and map key for a sample.
func (k Key) String() string {
	name := k.FileName()
	return strings.TrimSuffix(name, ".dcm")
}

// ParseFileName parses a canonical file name back into a Key. The result is
// validated.
func ParseFileName(name string) (Key, error) {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if !strings.HasSuffix(base, ".dcm") {
		return Key{}, fmt.Errorf("file %q: expected .dcm extension", name)
	}
	base = strings.TrimSuffix(base, ".dcm")

	parts := strings.Split(base, "_")
	if len(parts) < 6 {
		return Key{}, fmt.Errorf("file %q: expected at least 6 underscore-separated fields, got %d", name, len(parts))
	}

	k := Key{
		Patient: parts[0],
		Visit:   parts[1],
		Slice:   NoSlice,
	}
	var err error
	if k.Device, err = ParseDevice(parts[2]); err != nil {
		return Key{}, fmt.Errorf("file %q: %w", name, err)
	}
	if k.Modality, err = ParseModality(parts[3]); err != nil {
		return Key{}, fmt.Errorf("file %q: %w", name, err)
	}
	if k.Region, err = ParseRegion(parts[4]); err != nil {
		return Key{}, fmt.Errorf("file %q: %w", name, err)
	}
	if k.Laterality, err = ParseLaterality(parts[5]); err != nil {
		return Key{}, fmt.Errorf("file %q: %w", name, err)
	}

	for _, part := range parts[6:] {
		switch {
		case strings.HasPrefix(part, "slab-"):
			if k.Slab, err = ParseSlab(strings.TrimPrefix(part, "slab-")); err != nil {
				return Key{}, fmt.Errorf("file %q: %w", name, err)
			}
		case strings.HasPrefix(part, "slice-"):
			idx, convErr := strconv.Atoi(strings.TrimPrefix(part, "slice-"))
			if convErr != nil {
				return Key{}, fmt.Errorf("file %q: bad slice index: %w", name, convErr)
			}
			k.Slice = idx
		default:
			return Key{}, fmt.Errorf("file %q: unrecognized field %q", name, part)
		}
	}

	if err := k.Validate(); err != nil {
		return Key{}, fmt.Errorf("file %q: %w", name, err)
	}
	return k, nil
}
