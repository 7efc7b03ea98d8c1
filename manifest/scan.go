package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImagingDir is the directory under the dataset root that holds image files,
// laid out as imaging/<modality>/<device>/<patient>/<file>.dcm.
const ImagingDir = "imaging"

// Entry pairs a sample key with the file that realizes it.
type Entry struct {
	Key  Key
	Path string
}

// Manifest is the enumerated index of all samples under a dataset root.
// Entries are in deterministic order: directory listings are read sorted,
// so the order is lexicographic over (modality dir, device dir, patient dir,
// file name).
type Manifest struct {
	Root    string
	Entries []Entry
}

// Scan enumerates every sample under root's imaging tree. Each file name is
// parsed into a Key and cross-checked against the directory it sits in;
// two files resolving to the same key is an error, as is any file the
// grammar does not accept.
func Scan(root string) (*Manifest, error) {
	imaging := filepath.Join(root, ImagingDir)
	modalityDirs, err := os.ReadDir(imaging)
	if err != nil {
		return nil, fmt.Errorf("failed to read imaging dir: %w", err)
	}

	m := &Manifest{Root: root}
	seen := make(map[string]string) // key string -> path

	for _, md := range modalityDirs {
		if !md.IsDir() {
			continue
		}
		modality, err := ParseModality(md.Name())
		if err != nil {
			return nil, fmt.Errorf("imaging dir: %w", err)
		}
		deviceDirs, err := os.ReadDir(filepath.Join(imaging, md.Name()))
		if err != nil {
			return nil, err
		}
		for _, dd := range deviceDirs {
			if !dd.IsDir() {
				continue
			}
			device, err := ParseDevice(dd.Name())
			if err != nil {
				return nil, fmt.Errorf("imaging/%s: %w", md.Name(), err)
			}
			patientDirs, err := os.ReadDir(filepath.Join(imaging, md.Name(), dd.Name()))
			if err != nil {
				return nil, err
			}
			for _, pd := range patientDirs {
				if !pd.IsDir() {
					continue
				}
				dir := filepath.Join(imaging, md.Name(), dd.Name(), pd.Name())
				files, err := os.ReadDir(dir)
				if err != nil {
					return nil, err
				}
				for _, f := range files {
					if f.IsDir() || !strings.HasSuffix(f.Name(), ".dcm") {
						continue
					}
					key, err := ParseFileName(f.Name())
					if err != nil {
						return nil, err
					}
					if key.Modality != modality || key.Device != device || key.Patient != pd.Name() {
						return nil, fmt.Errorf("file %s does not match its directory imaging/%s/%s/%s",
							f.Name(), md.Name(), dd.Name(), pd.Name())
					}
					path := filepath.Join(dir, f.Name())
					if prev, dup := seen[key.String()]; dup {
						return nil, fmt.Errorf("duplicate sample key %s: %s and %s", key.String(), prev, path)
					}
					seen[key.String()] = path
					m.Entries = append(m.Entries, Entry{Key: key, Path: path})
				}
			}
		}
	}

	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("no samples found under %s", imaging)
	}
	return m, nil
}

// Len returns the number of enumerated samples.
func (m *Manifest) Len() int { return len(m.Entries) }

// Filter selects samples by device, modality, region and split. Empty
// slices (and SplitAny) match everything.
type Filter struct {
	Devices    []Device
	Modalities []Modality
	Regions    []Region
	Split      Split
	Ratios     SplitRatios
}

// Match reports whether a key satisfies the filter. Split membership is
// computed from the key's patient via the filter's ratios.
func (f Filter) Match(k Key) bool {
	if len(f.Devices) > 0 && !containsDevice(f.Devices, k.Device) {
		return false
	}
	if len(f.Modalities) > 0 && !containsModality(f.Modalities, k.Modality) {
		return false
	}
	if len(f.Regions) > 0 && !containsRegion(f.Regions, k.Region) {
		return false
	}
	if f.Split != SplitAny && f.Ratios.Assign(k.Patient) != f.Split {
		return false
	}
	return true
}

// Select returns the matching entries in manifest order.
func (m *Manifest) Select(f Filter) []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if f.Match(e.Key) {
			out = append(out, e)
		}
	}
	return out
}

func containsDevice(s []Device, d Device) bool {
	for _, v := range s {
		if v == d {
			return true
		}
	}
	return false
}

func containsModality(s []Modality, m Modality) bool {
	for _, v := range s {
		if v == m {
			return true
		}
	}
	return false
}

func containsRegion(s []Region, r Region) bool {
	for _, v := range s {
		if v == r {
			return true
		}
	}
	return false
}
