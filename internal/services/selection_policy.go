package services

import (
	"math/rand"
	"sort"

	"speakapp/internal/config"
	"speakapp/internal/models"
	contextutils "speakapp/internal/utils"
)

// SelectionPolicy shapes a pool of candidate questions into the result form
// for each section. It is pure: all randomness comes from the injected
// *rand.Rand, so tests can fix a seed and assert exact output.
type SelectionPolicy struct {
	cfg config.RotationConfig
}

// NewSelectionPolicy creates a selection policy with the given rotation config
func NewSelectionPolicy(cfg config.RotationConfig) *SelectionPolicy {
	return &SelectionPolicy{cfg: cfg}
}

// ShapeFlatList picks a random count in [Part1Min, Part1Max] and takes that
// many questions from the head of the ordered pool. Pools smaller than the
// chosen count yield the whole pool; results are never padded.
func (p *SelectionPolicy) ShapeFlatList(pool []models.Question, rng *rand.Rand) (*models.SelectionResult, error) {
	if len(pool) == 0 {
		return nil, contextutils.ErrNoQuestionsAvailable
	}

	k := randomCount(rng, p.cfg.Part1MinQuestions, p.cfg.Part1MaxQuestions)
	if k > len(pool) {
		k = len(pool)
	}

	texts := make([]string, 0, k)
	for _, q := range pool[:k] {
		texts = append(texts, q.Text)
	}

	return &models.SelectionResult{
		Kind:      models.ShapeFlatList,
		Section:   models.SectionPart1,
		Questions: texts,
	}, nil
}

// ShapeCueCard takes the single best candidate from the ordered pool and
// returns its topic, bullet points, and sample answer.
func (p *SelectionPolicy) ShapeCueCard(pool []models.Question) (*models.SelectionResult, error) {
	if len(pool) == 0 {
		return nil, contextutils.ErrNoQuestionsAvailable
	}

	q := pool[0]
	return &models.SelectionResult{
		Kind:         models.ShapeCueCard,
		Section:      models.SectionPart2,
		Topic:        q.Topic.String,
		BulletPoints: q.BulletPoints,
		SampleAnswer: q.SampleAnswer.String,
	}, nil
}

// ShapeGroupedList picks one topic group uniformly at random, orders its
// questions by question_order, and takes a random count in
// [Part3Min, Part3Max] from it. Group keys are sorted before the random pick
// so a fixed seed always selects the same group regardless of map iteration
// order.
func (p *SelectionPolicy) ShapeGroupedList(groups map[string][]models.Question, rng *rand.Rand) (*models.SelectionResult, error) {
	if len(groups) == 0 {
		return nil, contextutils.ErrNoQuestionsAvailable
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groupKey := keys[rng.Intn(len(keys))]
	questions := append([]models.Question(nil), groups[groupKey]...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderKey() < questions[j].OrderKey()
	})

	k := randomCount(rng, p.cfg.Part3MinQuestions, p.cfg.Part3MaxQuestions)
	if k > len(questions) {
		k = len(questions)
	}

	texts := make([]string, 0, k)
	for _, q := range questions[:k] {
		texts = append(texts, q.Text)
	}

	return &models.SelectionResult{
		Kind:      models.ShapeGroupedList,
		Section:   models.SectionPart3,
		Questions: texts,
		Topic:     groupKey,
	}, nil
}

// SelectedIDs returns the question IDs behind a shaped result, matching the
// rendered texts back to the pool they were drawn from.
func SelectedIDs(result *models.SelectionResult, pool []models.Question) []int {
	if result == nil {
		return nil
	}
	byText := make(map[string]int, len(pool))
	for _, q := range pool {
		byText[q.Text] = q.ID
	}
	ids := make([]int, 0, len(result.Questions))
	for _, text := range result.Questions {
		if id, ok := byText[text]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// randomCount returns a uniform value in [min, max]; degenerate ranges
// collapse to min.
func randomCount(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
