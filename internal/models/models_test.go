package models

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSection(t *testing.T) {
	cases := []struct {
		input   string
		want    Section
		wantErr bool
	}{
		{"part1", SectionPart1, false},
		{"part2", SectionPart2, false},
		{"part3", SectionPart3, false},
		{"PART1", SectionPart1, false},
		{" Part2 ", SectionPart2, false},
		{"part4", "", true},
		{"", "", true},
		{"cue_card", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseSection(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuestionTypeForSection(t *testing.T) {
	assert.Equal(t, QuestionTypeQuestions, QuestionTypeForSection(SectionPart1))
	assert.Equal(t, QuestionTypeCueCard, QuestionTypeForSection(SectionPart2))
	assert.Equal(t, QuestionTypeQuestions, QuestionTypeForSection(SectionPart3))
}

func TestQuestionGroupKeyDefaultsWhenNull(t *testing.T) {
	q := Question{Section: SectionPart3, Text: "x"}
	assert.Equal(t, "default", q.GroupKey())

	q.QuestionGroup = sql.NullString{String: "travel_tourism", Valid: true}
	assert.Equal(t, "travel_tourism", q.GroupKey())
}

func TestBulletPointsRoundTrip(t *testing.T) {
	q := Question{BulletPoints: []string{"Where did you go?", "Why was it memorable?"}}

	raw, err := q.MarshalBulletPointsToJSON()
	require.NoError(t, err)

	var decoded Question
	require.NoError(t, decoded.UnmarshalBulletPointsFromJSON(raw))
	assert.Equal(t, q.BulletPoints, decoded.BulletPoints)
}

func TestSelectionResultFlatListJSON(t *testing.T) {
	result := SelectionResult{
		Kind:      ShapeFlatList,
		Section:   SectionPart1,
		Questions: []string{"q1", "q2", "q3", "q4"},
	}

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "questions", body["type"])
	assert.Equal(t, "part1", body["section"])
	assert.Len(t, body["questions"], 4)
	assert.NotContains(t, body, "topic")
	assert.NotContains(t, body, "bulletPoints")
}

func TestSelectionResultCueCardJSON(t *testing.T) {
	result := SelectionResult{
		Kind:         ShapeCueCard,
		Section:      SectionPart2,
		Topic:        "Describe a memorable trip you have taken",
		BulletPoints: []string{"Where did you go?"},
		SampleAnswer: "Last year I went to...",
	}

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "cue_card", body["type"])
	assert.Equal(t, "part2", body["section"])
	assert.Equal(t, "Describe a memorable trip you have taken", body["topic"])
	assert.Len(t, body["bulletPoints"], 1)
	assert.Equal(t, "Last year I went to...", body["sampleAnswer"])
	assert.NotContains(t, body, "questions")
}

func TestSelectionResultGroupedListJSON(t *testing.T) {
	result := SelectionResult{
		Kind:      ShapeGroupedList,
		Section:   SectionPart3,
		Questions: []string{"q1", "q2", "q3", "q4", "q5"},
		Topic:     "travel_tourism",
	}

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "questions", body["type"])
	assert.Equal(t, "part3", body["section"])
	assert.Equal(t, "travel_tourism", body["topic"])
	assert.Len(t, body["questions"], 5)
}

func TestUserJSONOmitsPasswordHash(t *testing.T) {
	user := User{
		ID:           1,
		Username:     "tester",
		Email:        sql.NullString{String: "tester@example.com", Valid: true},
		PasswordHash: sql.NullString{String: "$2a$10$abcdef", Valid: true},
	}

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "$2a$10$abcdef")
	assert.Contains(t, string(raw), "tester@example.com")
}
