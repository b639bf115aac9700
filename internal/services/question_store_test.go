package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakapp/internal/config"
	"speakapp/internal/models"
	"speakapp/internal/observability"
	contextutils "speakapp/internal/utils"
)

var questionTestColumns = []string{
	"id", "section", "question_type", "question_text", "topic", "bullet_points",
	"sample_answer", "question_group", "question_order", "usage_count", "last_used_at",
	"is_active", "created_at",
}

func newTestQuestionStore(t *testing.T) (*QuestionStore, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.ExpectClose()
		require.NoError(t, db.Close())
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	return NewQuestionStore(db, logger), mock, cleanup
}

func questionRow(id int, section, text string, usageCount int) []driver.Value {
	return []driver.Value{
		id, section, "questions", text, nil, nil, nil, nil, nil, usageCount, nil, true, time.Now(),
	}
}

func TestQuestionStore_EligibleForUserExcludesHistory(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(questionTestColumns).
		AddRow(questionRow(3, "part1", "What do you do for work or study?", 0)...).
		AddRow(questionRow(1, "part1", "Tell me about your hometown.", 2)...)

	mock.ExpectQuery(`SELECT (.+) FROM questions\s+WHERE section = \$1 AND is_active = TRUE\s+AND id NOT IN \(\s+SELECT question_id FROM user_question_history\s+WHERE user_id = \$2 AND answered_at >= \$3`).
		WithArgs("part1", 42, cutoff, 200).
		WillReturnRows(rows)

	questions, err := store.EligibleForUser(context.Background(), 42, models.SectionPart1, cutoff, 200)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, 3, questions[0].ID)
	assert.Equal(t, 0, questions[0].UsageCount)
	assert.Equal(t, models.SectionPart1, questions[1].Section)
}

func TestQuestionStore_EligibleForUserQueryError(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM questions`).
		WillReturnError(errors.New("connection refused"))

	_, err := store.EligibleForUser(context.Background(), 42, models.SectionPart1, time.Now(), 200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query eligible questions")
}

func TestQuestionStore_OrderedByUsage(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	rows := sqlmock.NewRows(questionTestColumns).
		AddRow(questionRow(5, "part2", "Describe a memorable trip you have taken", 1)...)

	mock.ExpectQuery(`SELECT (.+) FROM questions\s+WHERE section = \$1 AND is_active = TRUE\s+ORDER BY usage_count ASC`).
		WithArgs("part2", 200).
		WillReturnRows(rows)

	questions, err := store.OrderedByUsage(context.Background(), models.SectionPart2, 200)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, 5, questions[0].ID)
}

func TestQuestionStore_Part3GroupsGroupByTopic(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	rows := sqlmock.NewRows(questionTestColumns).
		AddRow(1, "part3", "questions", "How has tourism changed in recent years?", "Travel and Tourism", nil, nil, "travel_tourism", 3, 0, nil, true, time.Now()).
		AddRow(2, "part3", "questions", "Why do you think people enjoy traveling?", "Travel and Tourism", nil, nil, "travel_tourism", 1, 0, nil, true, time.Now()).
		AddRow(3, "part3", "questions", "What are the advantages of social media?", "Technology", nil, nil, "technology_communication", 2, 0, nil, true, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM questions\s+WHERE section = 'part3' AND is_active = TRUE\s+ORDER BY question_group`).
		WillReturnRows(rows)

	groups, err := store.Part3Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups["travel_tourism"], 2)
	assert.Len(t, groups["technology_communication"], 1)
}

func TestQuestionStore_Part3GroupsForUserExcludesAnsweredQuestions(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	// Recently answered rows are filtered per question, so a partially
	// answered group comes back with only its remaining questions and a
	// fully answered group disappears from the result.
	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(questionTestColumns).
		AddRow(7, "part3", "questions", "How might technology change communication in the future?", "Technology", nil, nil, "technology_communication", 3, 0, nil, true, time.Now()).
		AddRow(8, "part3", "questions", "Do you think people rely too much on technology?", "Technology", nil, nil, "technology_communication", 4, 0, nil, true, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM questions\s+WHERE section = 'part3' AND is_active = TRUE\s+AND id NOT IN \(\s+SELECT question_id FROM user_question_history\s+WHERE user_id = \$1 AND answered_at >= \$2`).
		WithArgs(7, cutoff).
		WillReturnRows(rows)

	groups, err := store.Part3GroupsForUser(context.Background(), 7, cutoff)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups["technology_communication"], 2)
	assert.Equal(t, 7, groups["technology_communication"][0].ID)
	assert.NotContains(t, groups, "travel_tourism")
}

func TestQuestionStore_Part3GroupsForUserNullGroupDefaults(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	rows := sqlmock.NewRows(questionTestColumns).
		AddRow(11, "part3", "questions", "What makes a discussion productive?", nil, nil, nil, nil, nil, 0, nil, true, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM questions\s+WHERE section = 'part3' AND is_active = TRUE\s+AND id NOT IN`).
		WithArgs(7, sqlmock.AnyArg()).
		WillReturnRows(rows)

	groups, err := store.Part3GroupsForUser(context.Background(), 7, time.Now())
	require.NoError(t, err)
	require.Len(t, groups["default"], 1)
	assert.Equal(t, 11, groups["default"][0].ID)
}

func TestQuestionStore_GetOrCreateReturnsExistingOnConflict(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	// Conflict: insert is a no-op, follow-up select returns the original row
	mock.ExpectExec(`INSERT INTO questions (.+) ON CONFLICT \(question_text, section\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows := sqlmock.NewRows(questionTestColumns).
		AddRow(questionRow(7, "part1", "What do you like to do in your free time?", 4)...)
	mock.ExpectQuery(`SELECT (.+) FROM questions\s+WHERE question_text = \$1 AND section = \$2`).
		WithArgs("What do you like to do in your free time?", "part1").
		WillReturnRows(rows)

	q, err := store.GetOrCreate(context.Background(), models.Question{
		Section: models.SectionPart1,
		Text:    "What do you like to do in your free time?",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, q.ID)
	assert.Equal(t, 4, q.UsageCount)
}

func TestQuestionStore_MarkUsedIncrementsAtomically(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE questions SET usage_count = usage_count \+ 1, last_used_at = CURRENT_TIMESTAMP WHERE id = \$1`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkUsed(context.Background(), 9))
}

func TestQuestionStore_MarkUsedUnknownQuestion(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE questions SET usage_count`).
		WithArgs(999).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkUsed(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
}

func TestQuestionStore_AppendHistory(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO user_question_history`).
		WithArgs(42, 9, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.AppendHistory(context.Background(), models.UserQuestionHistory{
		UserID:     42,
		QuestionID: 9,
	})
	require.NoError(t, err)
}

func TestQuestionStore_CountActiveBySection(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM questions WHERE is_active = TRUE AND section = \$1`).
		WithArgs("part2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	section := models.SectionPart2
	count, err := store.CountActive(context.Background(), &section)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestQuestionStore_DeactivateUnknownQuestion(t *testing.T) {
	store, mock, cleanup := newTestQuestionStore(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE questions SET is_active = FALSE WHERE id = \$1`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Deactivate(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
}
