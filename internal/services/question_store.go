// Package services contains the business logic for question selection,
// rotation tracking, and user management.
package services

import (
	"context"
	"database/sql"
	"time"

	"speakapp/internal/models"
	"speakapp/internal/observability"
	contextutils "speakapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// QuestionStorer is the persistence interface used by the rotation service.
type QuestionStorer interface {
	// EligibleForUser returns active questions in a section that the user has
	// not answered since the cutoff, ordered least-used first.
	EligibleForUser(ctx context.Context, userID int, section models.Section, cutoff time.Time, limit int) ([]models.Question, error)
	// OrderedByUsage returns active questions in a section ordered least-used
	// first, ignoring user history.
	OrderedByUsage(ctx context.Context, section models.Section, limit int) ([]models.Question, error)
	// Part3GroupsForUser returns active part3 questions the user has not
	// answered since the cutoff, grouped by topic. Fully-answered groups are
	// absent from the map.
	Part3GroupsForUser(ctx context.Context, userID int, cutoff time.Time) (map[string][]models.Question, error)
	// Part3Groups returns all active part3 questions grouped by topic.
	Part3Groups(ctx context.Context) (map[string][]models.Question, error)
	// GetOrCreate inserts a question if no row with the same (text, section)
	// exists, and returns the canonical stored row either way.
	GetOrCreate(ctx context.Context, q models.Question) (*models.Question, error)
	// MarkUsed atomically increments usage_count and stamps last_used_at.
	MarkUsed(ctx context.Context, questionID int) error
	// AppendHistory records that a user consumed a question.
	AppendHistory(ctx context.Context, h models.UserQuestionHistory) error
	// CountActive returns the number of active questions, optionally for one section.
	CountActive(ctx context.Context, section *models.Section) (int, error)
	// CountAll returns the total number of questions regardless of active flag.
	CountAll(ctx context.Context) (int, error)
	// Deactivate soft-deletes a question.
	Deactivate(ctx context.Context, questionID int) error
	// GetByID fetches a single question.
	GetByID(ctx context.Context, questionID int) (*models.Question, error)
}

// QuestionStore implements QuestionStorer on PostgreSQL.
type QuestionStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewQuestionStore creates a new question store
func NewQuestionStore(db *sql.DB, logger *observability.Logger) *QuestionStore {
	return &QuestionStore{db: db, logger: logger}
}

const questionColumns = `id, section, question_type, question_text, topic, bullet_points,
		sample_answer, question_group, question_order, usage_count, last_used_at, is_active, created_at`

// EligibleForUser implements the recency-aware candidate query. Questions the
// user answered since cutoff are excluded; the remainder are ordered so the
// least-used, longest-idle questions come first.
func (s *QuestionStore) EligibleForUser(ctx context.Context, userID int, section models.Section, cutoff time.Time, limit int) (result0 []models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "EligibleForUser",
		observability.AttributeUserID(userID),
		observability.AttributeSection(section),
		attribute.Int("store.limit", limit),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE section = $1 AND is_active = TRUE
		  AND id NOT IN (
			SELECT question_id FROM user_question_history
			WHERE user_id = $2 AND answered_at >= $3
		  )
		ORDER BY usage_count ASC, last_used_at ASC NULLS FIRST, id ASC
		LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, section.String(), userID, cutoff, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query eligible questions")
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// OrderedByUsage returns the full active pool for a section in rotation order.
func (s *QuestionStore) OrderedByUsage(ctx context.Context, section models.Section, limit int) (result0 []models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "OrderedByUsage",
		observability.AttributeSection(section),
		attribute.Int("store.limit", limit),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE section = $1 AND is_active = TRUE
		ORDER BY usage_count ASC, last_used_at ASC NULLS FIRST, id ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, section.String(), limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query questions by usage")
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// Part3GroupsForUser returns part3 questions the user has not answered since
// the cutoff, grouped by topic. Groups whose every question is in recent
// history drop out entirely; partially-answered groups carry only their
// remaining fresh questions. Within each group questions are ordered by
// question_order.
func (s *QuestionStore) Part3GroupsForUser(ctx context.Context, userID int, cutoff time.Time) (result0 map[string][]models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "Part3GroupsForUser",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE section = 'part3' AND is_active = TRUE
		  AND id NOT IN (
			SELECT question_id FROM user_question_history
			WHERE user_id = $1 AND answered_at >= $2
		  )
		ORDER BY question_group, question_order ASC NULLS LAST, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, cutoff)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query part3 groups for user")
	}
	defer rows.Close()

	return scanQuestionGroups(rows)
}

// Part3Groups returns every active part3 question grouped by topic.
func (s *QuestionStore) Part3Groups(ctx context.Context) (result0 map[string][]models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "Part3Groups")
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE section = 'part3' AND is_active = TRUE
		ORDER BY question_group, question_order ASC NULLS LAST, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query part3 groups")
	}
	defer rows.Close()

	return scanQuestionGroups(rows)
}

// GetOrCreate inserts the question unless a row with the same (text, section)
// already exists. The unique constraint makes the insert a no-op on conflict;
// the follow-up select returns the canonical row in both cases.
func (s *QuestionStore) GetOrCreate(ctx context.Context, q models.Question) (result0 *models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "GetOrCreate",
		observability.AttributeSection(q.Section),
	)
	defer observability.FinishSpan(span, &err)

	bulletJSON, err := q.MarshalBulletPointsToJSON()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal bullet points")
	}

	insert := `
		INSERT INTO questions (section, question_type, question_text, topic, bullet_points,
			sample_answer, question_group, question_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (question_text, section) DO NOTHING`

	_, err = s.db.ExecContext(ctx, insert,
		q.Section.String(), string(models.QuestionTypeForSection(q.Section)), q.Text,
		q.Topic, bulletJSON, q.SampleAnswer, q.QuestionGroup, q.QuestionOrder)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert question")
	}

	return s.GetByTextAndSection(ctx, q.Text, q.Section)
}

// GetByTextAndSection fetches the question with the given unique content key.
func (s *QuestionStore) GetByTextAndSection(ctx context.Context, text string, section models.Section) (result0 *models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "GetByTextAndSection",
		observability.AttributeSection(section),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE question_text = $1 AND section = $2`

	row := s.db.QueryRowContext(ctx, query, text, section.String())
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "question not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get question by text")
	}
	return q, nil
}

// GetByID fetches a single question by primary key.
func (s *QuestionStore) GetByID(ctx context.Context, questionID int) (result0 *models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "GetByID",
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, questionID)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "question not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get question")
	}
	return q, nil
}

// MarkUsed bumps the usage counter in a single statement so concurrent
// consumers never lose increments.
func (s *QuestionStore) MarkUsed(ctx context.Context, questionID int) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "MarkUsed",
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE questions SET usage_count = usage_count + 1, last_used_at = CURRENT_TIMESTAMP WHERE id = $1`,
		questionID)
	if err != nil {
		return contextutils.WrapError(err, "failed to mark question used")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check mark-used result")
	}
	if rowsAffected == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "question not found")
	}
	return nil
}

// AppendHistory records a consumption event for rotation-window exclusion.
func (s *QuestionStore) AppendHistory(ctx context.Context, h models.UserQuestionHistory) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "AppendHistory",
		observability.AttributeUserID(h.UserID),
		observability.AttributeQuestionID(h.QuestionID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_question_history (user_id, question_id, practice_session_id, test_section)
		 VALUES ($1, $2, $3, $4)`,
		h.UserID, h.QuestionID, h.PracticeSessionID, h.TestSection)
	if err != nil {
		return contextutils.WrapError(err, "failed to append question history")
	}
	return nil
}

// CountActive counts active questions, optionally scoped to a section.
func (s *QuestionStore) CountActive(ctx context.Context, section *models.Section) (result0 int, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "CountActive")
	defer observability.FinishSpan(span, &err)

	var count int
	if section != nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM questions WHERE is_active = TRUE AND section = $1`,
			section.String()).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM questions WHERE is_active = TRUE`).Scan(&count)
	}
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count questions")
	}
	return count, nil
}

// CountAll counts every question in the catalog, active or not.
func (s *QuestionStore) CountAll(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "CountAll")
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count questions")
	}
	return count, nil
}

// Deactivate soft-deletes a question so it no longer appears in selections.
func (s *QuestionStore) Deactivate(ctx context.Context, questionID int) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "Deactivate",
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE questions SET is_active = FALSE WHERE id = $1`, questionID)
	if err != nil {
		return contextutils.WrapError(err, "failed to deactivate question")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check deactivate result")
	}
	if rowsAffected == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "question not found")
	}
	return nil
}

// scanQuestion reads a single question row.
func scanQuestion(row *sql.Row) (*models.Question, error) {
	var q models.Question
	var bulletJSON sql.NullString
	err := row.Scan(&q.ID, &q.Section, &q.Type, &q.Text, &q.Topic, &bulletJSON,
		&q.SampleAnswer, &q.QuestionGroup, &q.QuestionOrder, &q.UsageCount,
		&q.LastUsedAt, &q.IsActive, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if bulletJSON.Valid {
		if err := q.UnmarshalBulletPointsFromJSON(bulletJSON.String); err != nil {
			return nil, err
		}
	}
	return &q, nil
}

// scanQuestions reads all question rows.
func scanQuestions(rows *sql.Rows) ([]models.Question, error) {
	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var bulletJSON sql.NullString
		err := rows.Scan(&q.ID, &q.Section, &q.Type, &q.Text, &q.Topic, &bulletJSON,
			&q.SampleAnswer, &q.QuestionGroup, &q.QuestionOrder, &q.UsageCount,
			&q.LastUsedAt, &q.IsActive, &q.CreatedAt)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan question row")
		}
		if bulletJSON.Valid {
			if err := q.UnmarshalBulletPointsFromJSON(bulletJSON.String); err != nil {
				return nil, contextutils.WrapError(err, "failed to decode bullet points")
			}
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating question rows")
	}
	return questions, nil
}

// scanQuestionGroups reads question rows into a map keyed by topic group.
func scanQuestionGroups(rows *sql.Rows) (map[string][]models.Question, error) {
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]models.Question)
	for _, q := range questions {
		key := q.GroupKey()
		groups[key] = append(groups[key], q)
	}
	return groups, nil
}
