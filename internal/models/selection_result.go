package models

import "encoding/json"

// ShapeKind names the structural form of a selection result.
type ShapeKind string

// Result shapes
const (
	ShapeFlatList    ShapeKind = "flat-list"
	ShapeCueCard     ShapeKind = "cue-card"
	ShapeGroupedList ShapeKind = "grouped-list"
)

// SelectionResult is the transient value returned by a selection call. It is a
// tagged union over the three result shapes; which payload fields are set
// depends on Kind. It is owned by the call that produced it and never persisted.
type SelectionResult struct {
	Kind    ShapeKind
	Section Section

	// Flat-list and grouped-list payload
	Questions []string

	// Cue-card payload; Topic doubles as the group key for grouped lists
	Topic        string
	BulletPoints []string
	SampleAnswer string
}

// MarshalJSON renders the wire shape expected by the test client:
//
//	flat-list:    {"type":"questions","questions":[...],"section":"part1"}
//	cue-card:     {"type":"cue_card","topic":...,"bulletPoints":[...],"sampleAnswer":...,"section":"part2"}
//	grouped-list: {"type":"questions","questions":[...],"section":"part3","topic":<group>}
func (r SelectionResult) MarshalJSON() (result0 []byte, err error) {
	switch r.Kind {
	case ShapeCueCard:
		return json.Marshal(&struct {
			Type         string   `json:"type"`
			Topic        string   `json:"topic"`
			BulletPoints []string `json:"bulletPoints"`
			SampleAnswer *string  `json:"sampleAnswer"`
			Section      Section  `json:"section"`
		}{
			Type:         string(QuestionTypeCueCard),
			Topic:        r.Topic,
			BulletPoints: r.BulletPoints,
			SampleAnswer: emptyToNil(r.SampleAnswer),
			Section:      r.Section,
		})
	case ShapeGroupedList:
		return json.Marshal(&struct {
			Type      string   `json:"type"`
			Questions []string `json:"questions"`
			Section   Section  `json:"section"`
			Topic     string   `json:"topic"`
		}{
			Type:      string(QuestionTypeQuestions),
			Questions: r.Questions,
			Section:   r.Section,
			Topic:     r.Topic,
		})
	default:
		return json.Marshal(&struct {
			Type      string   `json:"type"`
			Questions []string `json:"questions"`
			Section   Section  `json:"section"`
		}{
			Type:      string(QuestionTypeQuestions),
			Questions: r.Questions,
			Section:   r.Section,
		})
	}
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CompleteTest bundles one selection per section. The three selections are
// independent; there is no cross-section coordination.
type CompleteTest struct {
	Part1 *SelectionResult `json:"part1"`
	Part2 *SelectionResult `json:"part2"`
	Part3 *SelectionResult `json:"part3"`
}
