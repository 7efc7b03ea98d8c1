package clinical

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oculoml/retinaset/manifest"
)

// writeTable writes a CSV file with the given header and rows to path.
func writeTable(t *testing.T, path, header string, rows []string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create table %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

func writeFixtureTables(t *testing.T, root string) {
	t.Helper()
	writeTable(t, filepath.Join(root, ClinicalDir, "participants.csv"),
		"participant_id,study_group,age,visit",
		[]string{
			"1001,healthy,54,y1",
			"1002,prediabetes,61,y1",
			"1003,type2_oral,58,y1",
			"1004,type2_insulin,66,y1",
		})
	writeTable(t, filepath.Join(root, ClinicalDir, "measurements.csv"),
		"participant_id,concept_id,value,unit",
		[]string{
			"1001,hba1c,5.2,%",
			"1002,hba1c,6.1,%",
			"1003,hba1c,7.4,%",
		})
}

func testKey(patient string, lat manifest.Laterality) manifest.Key {
	return manifest.Key{
		Patient:    patient,
		Visit:      "y1",
		Device:     manifest.DeviceSpectralis,
		Modality:   manifest.ModalityOCT,
		Region:     manifest.RegionMacula,
		Laterality: lat,
		Slice:      manifest.NoSlice,
	}
}

func TestLoadTables(t *testing.T) {
	root := t.TempDir()
	writeFixtureTables(t, root)

	tables, err := LoadTables(root)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}
	if tables.NumParticipants() != 4 {
		t.Fatalf("expected 4 participants, got %d", tables.NumParticipants())
	}

	p, err := tables.Participant("1002")
	if err != nil {
		t.Fatalf("Participant failed: %v", err)
	}
	if p.StudyGroup != "prediabetes" || p.Age != 61 {
		t.Fatalf("unexpected participant row: %+v", p)
	}

	v, err := tables.Measurement("1003", "hba1c")
	if err != nil {
		t.Fatalf("Measurement failed: %v", err)
	}
	if v != 7.4 {
		t.Fatalf("expected hba1c 7.4, got %v", v)
	}

	if _, err := tables.Participant("9999"); err == nil {
		t.Fatalf("expected missing participant to error")
	}
	if _, err := tables.Measurement("1004", "hba1c"); err == nil {
		t.Fatalf("expected missing measurement to error")
	}
}

func TestLoadTables_DuplicateParticipant(t *testing.T) {
	root := t.TempDir()
	writeTable(t, filepath.Join(root, ClinicalDir, "participants.csv"),
		"participant_id,study_group,age,visit",
		[]string{"1001,healthy,54,y1", "1001,prediabetes,54,y1"})
	writeTable(t, filepath.Join(root, ClinicalDir, "measurements.csv"),
		"participant_id,concept_id,value,unit", nil)

	if _, err := LoadTables(root); err == nil {
		t.Fatalf("expected duplicate participant to be rejected")
	}
}

func TestLabeler_DiabetesStatus(t *testing.T) {
	root := t.TempDir()
	writeFixtureTables(t, root)
	tables, err := LoadTables(root)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}

	l, err := NewLabeler(LabelDiabetesStatus, "", tables)
	if err != nil {
		t.Fatalf("NewLabeler failed: %v", err)
	}

	want := map[string]float32{
		"1001": ClassHealthy,
		"1002": ClassPrediabetes,
		"1003": ClassType2Oral,
		"1004": ClassType2Insulin,
	}
	for patient, class := range want {
		label, err := l.LabelFor(testKey(patient, manifest.LateralityOD))
		if err != nil {
			t.Fatalf("LabelFor(%s) error: %v", patient, err)
		}
		if len(label) != 1 || label[0] != class {
			t.Fatalf("LabelFor(%s) = %v, want [%v]", patient, label, class)
		}
	}

	if _, err := l.LabelFor(testKey("9999", manifest.LateralityOD)); err == nil {
		t.Fatalf("expected unknown patient to error")
	}
}

func TestLabeler_Laterality(t *testing.T) {
	root := t.TempDir()
	writeFixtureTables(t, root)
	tables, err := LoadTables(root)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}

	l, err := NewLabeler(LabelLaterality, "", tables)
	if err != nil {
		t.Fatalf("NewLabeler failed: %v", err)
	}

	od, err := l.LabelFor(testKey("1001", manifest.LateralityOD))
	if err != nil {
		t.Fatalf("LabelFor od error: %v", err)
	}
	os_, err := l.LabelFor(testKey("1001", manifest.LateralityOS))
	if err != nil {
		t.Fatalf("LabelFor os error: %v", err)
	}
	if od[0] != 1 || os_[0] != 0 {
		t.Fatalf("laterality labels wrong: od=%v os=%v", od, os_)
	}
}

func TestLabeler_Concept(t *testing.T) {
	root := t.TempDir()
	writeFixtureTables(t, root)
	tables, err := LoadTables(root)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}

	l, err := NewLabeler(LabelConcept, "hba1c", tables)
	if err != nil {
		t.Fatalf("NewLabeler failed: %v", err)
	}
	label, err := l.LabelFor(testKey("1002", manifest.LateralityOD))
	if err != nil {
		t.Fatalf("LabelFor error: %v", err)
	}
	if label[0] != 6.1 {
		t.Fatalf("expected hba1c 6.1, got %v", label[0])
	}

	// 1004 has no hba1c row.
	if _, err := l.LabelFor(testKey("1004", manifest.LateralityOD)); err == nil {
		t.Fatalf("expected missing concept row to error")
	}
}

func TestNewLabeler_Validation(t *testing.T) {
	root := t.TempDir()
	writeFixtureTables(t, root)
	tables, err := LoadTables(root)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}

	if _, err := NewLabeler(LabelConcept, "", tables); err == nil {
		t.Fatalf("expected concept labeler without concept id to be rejected")
	}
	if _, err := NewLabeler(LabelLaterality, "hba1c", tables); err == nil {
		t.Fatalf("expected concept id with laterality kind to be rejected")
	}
	if _, err := NewLabeler("bogus", "", tables); err == nil {
		t.Fatalf("expected unknown label kind to be rejected")
	}
	if _, err := NewLabeler(LabelLaterality, "", nil); err == nil {
		t.Fatalf("expected nil tables to be rejected")
	}
}
