package services

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"
	"sync"
	"time"

	"speakapp/internal/config"
	"speakapp/internal/models"
	"speakapp/internal/observability"
	contextutils "speakapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// candidatePoolLimit bounds the candidate queries. Well above any shape's
// maximum count so ordering, not the limit, decides what gets served.
const candidatePoolLimit = 200

// QuestionGenerator produces new questions for a section when the catalog
// runs dry. The default deployment has no generator wired; the hook exists so
// an LLM-backed source can be plugged in without touching selection logic.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, section models.Section) (*models.Question, error)
}

// Rotator selects questions for practice sessions with per-user rotation.
type Rotator interface {
	// SelectForSection returns a shaped selection for one section. A nil
	// userID (anonymous caller) is served from the static fallback.
	SelectForSection(ctx context.Context, userID *int, section models.Section) (*models.SelectionResult, error)
	// SelectCompleteTest returns selections for all three sections.
	SelectCompleteTest(ctx context.Context, userID *int) (*models.CompleteTest, error)
	// RecordConsumption marks a served question as consumed by the user.
	RecordConsumption(ctx context.Context, userID int, questionText string, section models.Section, practiceSessionID, testSection string) error
}

// RotationService implements Rotator on top of the question store with a
// three-tier degradation ladder: fresh questions for the user, then the full
// pool by usage, then the static fallback catalog.
type RotationService struct {
	store     QuestionStorer
	policy    *SelectionPolicy
	fallback  *FallbackCatalog
	generator QuestionGenerator
	cfg       config.RotationConfig
	logger    *observability.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewRotationService creates the rotation service. The generator may be nil.
func NewRotationService(store QuestionStorer, cfg config.RotationConfig, logger *observability.Logger, generator QuestionGenerator) *RotationService {
	return &RotationService{
		store:     store,
		policy:    NewSelectionPolicy(cfg),
		fallback:  NewFallbackCatalog(),
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// SetRand replaces the randomness source. Intended for tests.
func (s *RotationService) SetRand(rng *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rng
}

// SetClock replaces the time source. Intended for tests.
func (s *RotationService) SetClock(now func() time.Time) {
	s.now = now
}

// SelectForSection picks questions for one section. Anonymous callers and any
// store failure degrade to the fallback catalog, so a valid section always
// yields a result.
func (s *RotationService) SelectForSection(ctx context.Context, userID *int, section models.Section) (result0 *models.SelectionResult, err error) {
	ctx, span := observability.TraceRotationFunction(ctx, "SelectForSection",
		observability.AttributeSection(section),
	)
	defer observability.FinishSpan(span, &err)

	if !section.Valid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidSection, "unknown section %q", string(section))
	}

	if userID == nil {
		span.SetAttributes(observability.AttributeTier("fallback"), attribute.Bool("rotation.anonymous", true))
		return s.selectFallback(ctx, section)
	}
	span.SetAttributes(observability.AttributeUserID(*userID))

	result, tier, err := s.selectFromStore(ctx, *userID, section)
	if err != nil {
		s.logger.Warn(ctx, "Store selection failed, serving fallback", map[string]interface{}{
			"section": section.String(),
			"user_id": *userID,
			"error":   err.Error(),
		})
		span.SetAttributes(observability.AttributeTier("fallback"))
		return s.selectFallback(ctx, section)
	}

	span.SetAttributes(observability.AttributeTier(tier))
	return result, nil
}

// selectFromStore runs the tiered selection against the database. The
// returned tier names which rung served the result.
func (s *RotationService) selectFromStore(ctx context.Context, userID int, section models.Section) (*models.SelectionResult, string, error) {
	cutoff := s.now().Add(-time.Duration(s.cfg.WindowDays) * 24 * time.Hour)

	if section == models.SectionPart3 {
		return s.selectPart3(ctx, userID, cutoff)
	}

	pool, err := s.withTimeout(ctx, func(ctx context.Context) ([]models.Question, error) {
		return s.store.EligibleForUser(ctx, userID, section, cutoff, candidatePoolLimit)
	})
	tier := "fresh"
	if err == nil && len(pool) == 0 {
		pool, err = s.withTimeout(ctx, func(ctx context.Context) ([]models.Question, error) {
			return s.store.OrderedByUsage(ctx, section, candidatePoolLimit)
		})
		tier = "reuse"
	}
	if err != nil {
		return nil, "", err
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(observability.AttributeCandidateCount(len(pool)))

	result, err := s.shapeSection(section, pool)
	if err != nil {
		return nil, "", err
	}
	if ids := SelectedIDs(result, pool); len(ids) > 0 {
		span.SetAttributes(attribute.IntSlice("selection.question_ids", ids))
	}
	return result, tier, nil
}

// selectPart3 runs the tiered selection for grouped part3 questions.
func (s *RotationService) selectPart3(ctx context.Context, userID int, cutoff time.Time) (*models.SelectionResult, string, error) {
	groups, err := s.withTimeoutGroups(ctx, func(ctx context.Context) (map[string][]models.Question, error) {
		return s.store.Part3GroupsForUser(ctx, userID, cutoff)
	})
	tier := "fresh"
	if err == nil && len(groups) == 0 {
		groups, err = s.withTimeoutGroups(ctx, func(ctx context.Context) (map[string][]models.Question, error) {
			return s.store.Part3Groups(ctx)
		})
		tier = "reuse"
	}
	if err != nil {
		return nil, "", err
	}

	candidates := 0
	for _, group := range groups {
		candidates += len(group)
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(observability.AttributeCandidateCount(candidates))

	s.mu.Lock()
	result, err := s.policy.ShapeGroupedList(groups, s.rng)
	s.mu.Unlock()
	if err != nil {
		return nil, "", err
	}
	if ids := SelectedIDs(result, groups[result.Topic]); len(ids) > 0 {
		span.SetAttributes(attribute.IntSlice("selection.question_ids", ids))
	}
	return result, tier, nil
}

// shapeSection applies the per-section shape to an ordered pool.
func (s *RotationService) shapeSection(section models.Section, pool []models.Question) (*models.SelectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch section {
	case models.SectionPart1:
		return s.policy.ShapeFlatList(pool, s.rng)
	case models.SectionPart2:
		return s.policy.ShapeCueCard(pool)
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidSection, "unknown section %q", string(section))
	}
}

// selectFallback serves the static catalog; it cannot fail for a valid section.
func (s *RotationService) selectFallback(_ context.Context, section models.Section) (*models.SelectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback.Select(section, s.rng)
}

// SelectCompleteTest assembles all three sections. Each section degrades
// independently; a part1 store hiccup does not force part2 onto the fallback.
func (s *RotationService) SelectCompleteTest(ctx context.Context, userID *int) (result0 *models.CompleteTest, err error) {
	ctx, span := observability.TraceRotationFunction(ctx, "SelectCompleteTest")
	defer observability.FinishSpan(span, &err)

	test := &models.CompleteTest{}
	for _, section := range models.AllSections() {
		result, err := s.SelectForSection(ctx, userID, section)
		if err != nil {
			return nil, err
		}
		switch section {
		case models.SectionPart1:
			test.Part1 = result
		case models.SectionPart2:
			test.Part2 = result
		case models.SectionPart3:
			test.Part3 = result
		}
	}
	return test, nil
}

// RecordConsumption registers that the user consumed a question: the question
// is created if the client served generated content the catalog has never
// seen, a history row is appended, and the usage counter is bumped. Failures
// here are reported but selection correctness never depends on them.
func (s *RotationService) RecordConsumption(ctx context.Context, userID int, questionText string, section models.Section, practiceSessionID, testSection string) (err error) {
	ctx, span := observability.TraceRotationFunction(ctx, "RecordConsumption",
		observability.AttributeUserID(userID),
		observability.AttributeSection(section),
	)
	defer observability.FinishSpan(span, &err)

	if !section.Valid() {
		return contextutils.WrapErrorf(contextutils.ErrInvalidSection, "unknown section %q", string(section))
	}
	if strings.TrimSpace(questionText) == "" {
		return contextutils.NewAppError(contextutils.ErrorCodeMissingRequired, contextutils.SeverityWarn, "question text is required", "questionText must be non-empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout())
	defer cancel()

	question, err := s.store.GetOrCreate(ctx, models.Question{
		Section: section,
		Text:    questionText,
	})
	if err != nil {
		return contextutils.WrapError(err, "failed to resolve question for usage recording")
	}
	span.SetAttributes(observability.AttributeQuestionID(question.ID))

	history := models.UserQuestionHistory{
		UserID:     userID,
		QuestionID: question.ID,
	}
	if practiceSessionID != "" {
		history.PracticeSessionID = sql.NullString{String: practiceSessionID, Valid: true}
	}
	if testSection != "" {
		history.TestSection = sql.NullString{String: testSection, Valid: true}
	}
	if err := s.store.AppendHistory(ctx, history); err != nil {
		return contextutils.WrapError(err, "failed to record question history")
	}

	if err := s.store.MarkUsed(ctx, question.ID); err != nil {
		return contextutils.WrapError(err, "failed to update question usage")
	}

	s.logger.Debug(ctx, "Recorded question usage", map[string]interface{}{
		"user_id":     userID,
		"question_id": question.ID,
		"section":     section.String(),
	})
	return nil
}

// withTimeout wraps a pool query in the configured store timeout.
func (s *RotationService) withTimeout(ctx context.Context, fn func(context.Context) ([]models.Question, error)) ([]models.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout())
	defer cancel()
	return fn(ctx)
}

// withTimeoutGroups wraps a grouped query in the configured store timeout.
func (s *RotationService) withTimeoutGroups(ctx context.Context, fn func(context.Context) (map[string][]models.Question, error)) (map[string][]models.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout())
	defer cancel()
	return fn(ctx)
}
