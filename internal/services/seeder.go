package services

import (
	"context"
	"database/sql"
	"strings"

	"speakapp/internal/models"
	"speakapp/internal/observability"
	contextutils "speakapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// seedGroup bundles a part3 topic group for seeding.
type seedGroup struct {
	group     string
	topic     string
	questions []string
}

// seedCueCard bundles a part2 cue card for seeding.
type seedCueCard struct {
	topic        string
	bulletPoints []string
}

// Seeder populates the question catalog with the default question set the
// first time the service runs against an empty database.
type Seeder struct {
	store  QuestionStorer
	logger *observability.Logger
}

// NewSeeder creates a new catalog seeder
func NewSeeder(store QuestionStorer, logger *observability.Logger) *Seeder {
	return &Seeder{store: store, logger: logger}
}

// EnsureSeeded loads the default catalog when the questions table is empty.
// It is idempotent: a non-empty catalog is left untouched, and the content
// dedup in the store makes a concurrent double-run harmless. Individual bad
// entries are logged and skipped rather than aborting the run.
func (s *Seeder) EnsureSeeded(ctx context.Context) (err error) {
	ctx, span := observability.TraceSeederFunction(ctx, "EnsureSeeded")
	defer observability.FinishSpan(span, &err)

	count, err := s.store.CountAll(ctx)
	if err != nil {
		return contextutils.WrapError(err, "failed to check question count before seeding")
	}
	if count > 0 {
		s.logger.Debug(ctx, "Question catalog already populated, skipping seed", map[string]interface{}{
			"question_count": count,
		})
		return nil
	}

	s.logger.Info(ctx, "Seeding question catalog with default questions", nil)

	seeded := 0
	skipped := 0

	for _, text := range defaultPart1Questions() {
		if s.seedOne(ctx, models.Question{
			Section: models.SectionPart1,
			Text:    text,
		}) {
			seeded++
		} else {
			skipped++
		}
	}

	for _, card := range defaultPart2CueCards() {
		if s.seedOne(ctx, models.Question{
			Section:      models.SectionPart2,
			Text:         card.topic,
			Topic:        sql.NullString{String: card.topic, Valid: true},
			BulletPoints: card.bulletPoints,
		}) {
			seeded++
		} else {
			skipped++
		}
	}

	for _, group := range defaultPart3Groups() {
		for i, text := range group.questions {
			if s.seedOne(ctx, models.Question{
				Section:       models.SectionPart3,
				Text:          text,
				Topic:         sql.NullString{String: group.topic, Valid: true},
				QuestionGroup: sql.NullString{String: group.group, Valid: true},
				QuestionOrder: sql.NullInt32{Int32: int32(i + 1), Valid: true},
			}) {
				seeded++
			} else {
				skipped++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("seed.inserted", seeded),
		attribute.Int("seed.skipped", skipped),
	)
	s.logger.Info(ctx, "Question catalog seeding finished", map[string]interface{}{
		"seeded":  seeded,
		"skipped": skipped,
	})
	return nil
}

// seedOne validates and stores a single seed question. Returns false when the
// entry was rejected or the store failed; the caller keeps going either way.
func (s *Seeder) seedOne(ctx context.Context, q models.Question) bool {
	if err := validateSeedQuestion(q); err != nil {
		s.logger.Warn(ctx, "Skipping malformed seed question", map[string]interface{}{
			"section": q.Section.String(),
			"text":    q.Text,
			"error":   err.Error(),
		})
		return false
	}
	if _, err := s.store.GetOrCreate(ctx, q); err != nil {
		s.logger.Error(ctx, "Failed to seed question", err, map[string]interface{}{
			"section": q.Section.String(),
			"text":    q.Text,
		})
		return false
	}
	return true
}

// validateSeedQuestion enforces the structural requirements per section:
// non-blank text everywhere, bullet points on cue cards, group and order on
// part3 questions.
func validateSeedQuestion(q models.Question) error {
	if !q.Section.Valid() {
		return contextutils.WrapErrorf(contextutils.ErrSeedDataInvalid, "invalid section %q", string(q.Section))
	}
	if strings.TrimSpace(q.Text) == "" {
		return contextutils.WrapError(contextutils.ErrSeedDataInvalid, "blank question text")
	}
	switch q.Section {
	case models.SectionPart2:
		if len(q.BulletPoints) == 0 {
			return contextutils.WrapError(contextutils.ErrSeedDataInvalid, "cue card without bullet points")
		}
	case models.SectionPart3:
		if !q.QuestionGroup.Valid || strings.TrimSpace(q.QuestionGroup.String) == "" {
			return contextutils.WrapError(contextutils.ErrSeedDataInvalid, "part3 question without group")
		}
		if !q.QuestionOrder.Valid || q.QuestionOrder.Int32 < 1 {
			return contextutils.WrapError(contextutils.ErrSeedDataInvalid, "part3 question without order")
		}
	}
	return nil
}

func defaultPart1Questions() []string {
	return []string{
		"Tell me about your hometown. Where is your hometown?",
		"What do you do for work or study?",
		"Do you enjoy reading books? What kind of books do you prefer?",
		"How do you usually spend your weekends?",
		"Describe your family. How many people are in your family?",
		"What do you like to do in your free time?",
		"Do you prefer living in a city or countryside?",
		"What kind of music do you enjoy listening to?",
	}
}

func defaultPart2CueCards() []seedCueCard {
	return []seedCueCard{
		{
			topic: "Describe a memorable trip you have taken",
			bulletPoints: []string{
				"Where did you go?",
				"Who did you travel with?",
				"What did you do there?",
				"Why was it memorable?",
			},
		},
		{
			topic: "Describe a book you enjoyed reading",
			bulletPoints: []string{
				"What book was it?",
				"Why did you like it?",
				"When did you read it?",
				"Would you recommend it to others?",
			},
		},
		{
			topic: "Describe a person who has influenced you",
			bulletPoints: []string{
				"Who is this person?",
				"How do you know them?",
				"How have they influenced you?",
				"Why are they important to you?",
			},
		},
		{
			topic: "Describe a place you would like to visit",
			bulletPoints: []string{
				"Where is this place?",
				"Why do you want to visit it?",
				"What would you do there?",
				"How would you feel about visiting this place?",
			},
		},
	}
}

func defaultPart3Groups() []seedGroup {
	return []seedGroup{
		{
			group: "travel_tourism",
			topic: "Travel and Tourism",
			questions: []string{
				"Why do you think people enjoy traveling to different countries?",
				"What are the advantages and disadvantages of traveling alone?",
				"How has tourism changed in recent years?",
				"What impact does tourism have on local communities?",
			},
		},
		{
			group: "technology_communication",
			topic: "Technology and Communication",
			questions: []string{
				"How has technology changed the way people communicate?",
				"What are the advantages and disadvantages of social media?",
				"Do you think technology has made people more or less social?",
				"How do you think communication will change in the future?",
			},
		},
		{
			group: "education_learning",
			topic: "Education and Learning",
			questions: []string{
				"What are the benefits of learning a foreign language?",
				"How do you think education will change in the future?",
				"What are the advantages and disadvantages of online learning?",
				"Do you think traditional classroom learning is still important?",
			},
		},
		{
			group: "urban_living",
			topic: "Urban Living and Cities",
			questions: []string{
				"What are the advantages and disadvantages of living in a big city?",
				"How do you think cities will change in the future?",
				"What makes a city a good place to live?",
				"Do you think people should be encouraged to live in cities or rural areas?",
			},
		},
		{
			group: "environment_sustainability",
			topic: "Environment and Sustainability",
			questions: []string{
				"What environmental issues concern you the most?",
				"How can individuals contribute to environmental protection?",
				"Do you think governments should do more to protect the environment?",
				"What changes would you like to see in how we use natural resources?",
			},
		},
	}
}
