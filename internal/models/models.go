// Package models defines data structures used throughout the speaking-practice backend.
package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	contextutils "speakapp/internal/utils"
)

// Section identifies one of the three phases of a speaking test.
type Section string

// Test sections
const (
	SectionPart1 Section = "part1"
	SectionPart2 Section = "part2"
	SectionPart3 Section = "part3"
)

// String implements fmt.Stringer
func (s Section) String() string {
	return string(s)
}

// Valid reports whether the section is one of the known test sections
func (s Section) Valid() bool {
	switch s {
	case SectionPart1, SectionPart2, SectionPart3:
		return true
	}
	return false
}

// ParseSection converts a string into a Section, case-insensitively
func ParseSection(raw string) (Section, error) {
	switch Section(normalizeLower(raw)) {
	case SectionPart1:
		return SectionPart1, nil
	case SectionPart2:
		return SectionPart2, nil
	case SectionPart3:
		return SectionPart3, nil
	}
	return "", contextutils.WrapErrorf(contextutils.ErrInvalidSection, "unknown section %q", raw)
}

// AllSections returns the sections in test order
func AllSections() []Section {
	return []Section{SectionPart1, SectionPart2, SectionPart3}
}

func normalizeLower(s string) string {
	b := []byte(strings.TrimSpace(s))
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// QuestionType distinguishes flat prompts from part2 cue cards.
type QuestionType string

// Question types
const (
	QuestionTypeQuestions QuestionType = "questions"
	QuestionTypeCueCard   QuestionType = "cue_card"
)

// QuestionTypeForSection returns the question type stored for a section:
// cue cards for part2, flat prompts otherwise.
func QuestionTypeForSection(section Section) QuestionType {
	if section == SectionPart2 {
		return QuestionTypeCueCard
	}
	return QuestionTypeQuestions
}

// Question represents a prompt in the question catalog. A (Text, Section)
// pair is unique; re-inserting identical content returns the existing record.
type Question struct {
	ID            int            `json:"id"`
	Section       Section        `json:"section"`
	Type          QuestionType   `json:"question_type"`
	Text          string         `json:"question_text"`
	Topic         sql.NullString `json:"topic"`
	BulletPoints  []string       `json:"bullet_points,omitempty"`
	SampleAnswer  sql.NullString `json:"sample_answer"`
	QuestionGroup sql.NullString `json:"question_group"`
	QuestionOrder sql.NullInt32  `json:"question_order"`
	UsageCount    int            `json:"usage_count"`
	LastUsedAt    sql.NullTime   `json:"last_used_at"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Question to render sql.Null types as nullable fields
func (q Question) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID            int          `json:"id"`
		Section       Section      `json:"section"`
		Type          QuestionType `json:"question_type"`
		Text          string       `json:"question_text"`
		Topic         *string      `json:"topic"`
		BulletPoints  []string     `json:"bullet_points,omitempty"`
		SampleAnswer  *string      `json:"sample_answer"`
		QuestionGroup *string      `json:"question_group"`
		QuestionOrder *int32       `json:"question_order"`
		UsageCount    int          `json:"usage_count"`
		LastUsedAt    *time.Time   `json:"last_used_at"`
		IsActive      bool         `json:"is_active"`
		CreatedAt     time.Time    `json:"created_at"`
	}{
		ID:            q.ID,
		Section:       q.Section,
		Type:          q.Type,
		Text:          q.Text,
		Topic:         nullStringToPointer(q.Topic),
		BulletPoints:  q.BulletPoints,
		SampleAnswer:  nullStringToPointer(q.SampleAnswer),
		QuestionGroup: nullStringToPointer(q.QuestionGroup),
		QuestionOrder: nullInt32ToPointer(q.QuestionOrder),
		UsageCount:    q.UsageCount,
		LastUsedAt:    nullTimeToPointer(q.LastUsedAt),
		IsActive:      q.IsActive,
		CreatedAt:     q.CreatedAt,
	})
}

// GroupKey returns the part3 discussion group for the question, or "default"
// when the question carries no group.
func (q Question) GroupKey() string {
	if q.QuestionGroup.Valid && q.QuestionGroup.String != "" {
		return q.QuestionGroup.String
	}
	return "default"
}

// OrderKey returns the intra-group sort key; questions without an explicit
// order sort first.
func (q Question) OrderKey() int32 {
	if q.QuestionOrder.Valid {
		return q.QuestionOrder.Int32
	}
	return 0
}

// MarshalBulletPointsToJSON serializes bullet points for storage
func (q Question) MarshalBulletPointsToJSON() (string, error) {
	if len(q.BulletPoints) == 0 {
		return "", nil
	}
	data, err := json.Marshal(q.BulletPoints)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal bullet points")
	}
	return string(data), nil
}

// UnmarshalBulletPointsFromJSON loads bullet points from their stored form
func (q *Question) UnmarshalBulletPointsFromJSON(raw string) error {
	if raw == "" {
		q.BulletPoints = nil
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &q.BulletPoints); err != nil {
		return contextutils.WrapError(err, "failed to unmarshal bullet points")
	}
	return nil
}

// UserQuestionHistory is an append-only record of a confirmed consumption:
// the user answered the question at AnsweredAt. Entries are never mutated or
// deleted.
type UserQuestionHistory struct {
	ID                int            `json:"id"`
	UserID            int            `json:"user_id"`
	QuestionID        int            `json:"question_id"`
	AnsweredAt        time.Time      `json:"answered_at"`
	PracticeSessionID sql.NullString `json:"practice_session_id"`
	TestSection       sql.NullString `json:"test_section"`
}

// User represents a user in the system
type User struct {
	ID           int            `json:"id"`
	Username     string         `json:"username"`
	Email        sql.NullString `json:"email"`
	PasswordHash sql.NullString `json:"-"` // Omit from JSON responses
	LastActive   sql.NullTime   `json:"last_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         int        `json:"id"`
		Username   string     `json:"username"`
		Email      *string    `json:"email"`
		LastActive *time.Time `json:"last_active"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		ID:         u.ID,
		Username:   u.Username,
		Email:      nullStringToPointer(u.Email),
		LastActive: nullTimeToPointer(u.LastActive),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}
