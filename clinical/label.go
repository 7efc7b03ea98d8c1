package clinical

import (
	"fmt"
	"strings"

	"github.com/oculoml/retinaset/manifest"
)

// LabelKind selects which clinical signal a dataset emits as its label.
type LabelKind string

const (
	// LabelDiabetesStatus is a 4-class category from the participant's
	// study group.
	LabelDiabetesStatus LabelKind = "diabetes_status"
	// LabelLaterality is a binary indicator of the imaged eye, derived from
	// the sample key itself.
	LabelLaterality LabelKind = "laterality"
	// LabelConcept is the float value of a configured clinical concept.
	LabelConcept LabelKind = "concept"
)

// ParseLabelKind validates a label-kind token from config.
func ParseLabelKind(s string) (LabelKind, error) {
	switch LabelKind(s) {
	case LabelDiabetesStatus, LabelLaterality, LabelConcept:
		return LabelKind(s), nil
	}
	return "", fmt.Errorf("unknown label kind %q", s)
}

// Diabetes status classes, in label order 0..3.
const (
	ClassHealthy      = 0
	ClassPrediabetes  = 1
	ClassType2Oral    = 2
	ClassType2Insulin = 3
)

// diabetesClasses maps participants.study_group tokens to class indices.
var diabetesClasses = map[string]int{
	"healthy":       ClassHealthy,
	"prediabetes":   ClassPrediabetes,
	"type2_oral":    ClassType2Oral,
	"type2_insulin": ClassType2Insulin,
}

// DiabetesClass maps a study-group token to its class index.
func DiabetesClass(group string) (int, error) {
	c, ok := diabetesClasses[strings.ToLower(strings.TrimSpace(group))]
	if !ok {
		return 0, fmt.Errorf("unknown study group %q", group)
	}
	return c, nil
}

// Labeler resolves a sample key to its label vector under one configured
// label kind. Class labels are emitted as 1-element class-index vectors,
// matching sparse-label losses; concept labels are 1-element values.
type Labeler struct {
	Kind      LabelKind
	ConceptID string
	tables    *Tables
}

// NewLabeler builds a labeler over loaded tables. ConceptID is required for
// (and only for) LabelConcept.
func NewLabeler(kind LabelKind, conceptID string, tables *Tables) (*Labeler, error) {
	if _, err := ParseLabelKind(string(kind)); err != nil {
		return nil, err
	}
	if kind == LabelConcept && conceptID == "" {
		return nil, fmt.Errorf("label kind %s requires a concept id", kind)
	}
	if kind != LabelConcept && conceptID != "" {
		return nil, fmt.Errorf("concept id %q is only valid with label kind %s", conceptID, LabelConcept)
	}
	if tables == nil {
		return nil, fmt.Errorf("clinical tables are required")
	}
	return &Labeler{Kind: kind, ConceptID: conceptID, tables: tables}, nil
}

// Dim returns the label vector length for this labeler.
func (l *Labeler) Dim() int { return 1 }

// LabelFor resolves the label vector for one sample key.
func (l *Labeler) LabelFor(key manifest.Key) ([]float32, error) {
	switch l.Kind {
	case LabelDiabetesStatus:
		p, err := l.tables.Participant(key.Patient)
		if err != nil {
			return nil, err
		}
		class, err := DiabetesClass(p.StudyGroup)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", key.Patient, err)
		}
		return []float32{float32(class)}, nil

	case LabelLaterality:
		if key.Laterality == manifest.LateralityOD {
			return []float32{1}, nil
		}
		return []float32{0}, nil

	case LabelConcept:
		v, err := l.tables.Measurement(key.Patient, l.ConceptID)
		if err != nil {
			return nil, err
		}
		return []float32{v}, nil
	}
	return nil, fmt.Errorf("unknown label kind %q", l.Kind)
}
