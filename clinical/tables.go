package clinical

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
)

// ClinicalDir is the directory under the dataset root holding the metadata
// tables shipped with the distribution.
const ClinicalDir = "clinical"

// Participant is one row of clinical/participants.csv.
type Participant struct {
	ParticipantID string `csv:"participant_id"`
	StudyGroup    string `csv:"study_group"`
	Age           int    `csv:"age"`
	Visit         string `csv:"visit"`
}

// Measurement is one row of clinical/measurements.csv. ConceptID is the
// coded identifier of the clinical measurement (e.g. an HbA1c concept).
type Measurement struct {
	ParticipantID string  `csv:"participant_id"`
	ConceptID     string  `csv:"concept_id"`
	Value         float32 `csv:"value"`
	Unit          string  `csv:"unit"`
}

// Tables holds the loaded clinical metadata, indexed for per-sample lookup.
type Tables struct {
	participants map[string]*Participant
	// measurements indexed by participant id + concept id
	measurements map[string]*Measurement
}

func measurementKey(participant, concept string) string {
	return participant + "\x00" + concept
}

// LoadTables reads participants.csv and measurements.csv from
// <root>/clinical. Duplicate participant rows or duplicate
// (participant, concept) measurement rows are errors.
func LoadTables(root string) (*Tables, error) {
	t := &Tables{
		participants: make(map[string]*Participant),
		measurements: make(map[string]*Measurement),
	}

	var participants []*Participant
	if err := unmarshalCSV(filepath.Join(root, ClinicalDir, "participants.csv"), &participants); err != nil {
		return nil, err
	}
	for _, p := range participants {
		p.ParticipantID = strings.TrimSpace(p.ParticipantID)
		if p.ParticipantID == "" {
			return nil, fmt.Errorf("participants.csv: empty participant_id")
		}
		if _, dup := t.participants[p.ParticipantID]; dup {
			return nil, fmt.Errorf("participants.csv: duplicate participant %s", p.ParticipantID)
		}
		t.participants[p.ParticipantID] = p
	}

	var measurements []*Measurement
	if err := unmarshalCSV(filepath.Join(root, ClinicalDir, "measurements.csv"), &measurements); err != nil {
		return nil, err
	}
	for _, m := range measurements {
		k := measurementKey(strings.TrimSpace(m.ParticipantID), strings.TrimSpace(m.ConceptID))
		if _, dup := t.measurements[k]; dup {
			return nil, fmt.Errorf("measurements.csv: duplicate row for participant %s concept %s",
				m.ParticipantID, m.ConceptID)
		}
		t.measurements[k] = m
	}

	return t, nil
}

func unmarshalCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open clinical table: %w", err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Participant returns the clinical row for a participant id.
func (t *Tables) Participant(id string) (*Participant, error) {
	p, ok := t.participants[id]
	if !ok {
		return nil, fmt.Errorf("participant %s not present in clinical tables", id)
	}
	return p, nil
}

// Measurement returns the measurement value for (participant, concept).
func (t *Tables) Measurement(participant, concept string) (float32, error) {
	m, ok := t.measurements[measurementKey(participant, concept)]
	if !ok {
		return 0, fmt.Errorf("no measurement for participant %s concept %s", participant, concept)
	}
	return m.Value, nil
}

// NumParticipants returns the number of loaded participant rows.
func (t *Tables) NumParticipants() int { return len(t.participants) }
