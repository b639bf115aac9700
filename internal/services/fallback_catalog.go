package services

import (
	"math/rand"

	"speakapp/internal/models"
	contextutils "speakapp/internal/utils"
)

// FallbackCatalog serves selections from a static in-memory pool. It backs
// anonymous callers and every store failure path, and by construction never
// fails for a valid section.
type FallbackCatalog struct {
	part1Questions []string
	part2Topic     string
	part2Bullets   []string
	part3Questions []string
	part3Topic     string
}

// NewFallbackCatalog creates the static fallback catalog
func NewFallbackCatalog() *FallbackCatalog {
	return &FallbackCatalog{
		part1Questions: []string{
			"Tell me about your hometown. Where is your hometown?",
			"What do you do for work or study?",
			"Do you enjoy reading books? What kind of books do you prefer?",
			"How do you usually spend your weekends?",
			"Describe your family. How many people are in your family?",
			"What do you like to do in your free time?",
		},
		part2Topic: "Describe a memorable trip you have taken",
		part2Bullets: []string{
			"Where did you go?",
			"Who did you travel with?",
			"What did you do there?",
			"Why was it memorable?",
		},
		part3Questions: []string{
			"Why do you think people enjoy traveling to different countries?",
			"What are the advantages and disadvantages of traveling alone?",
			"How has tourism changed in recent years?",
			"What impact does tourism have on local communities?",
			"What are the benefits of learning a foreign language?",
			"How has technology changed the way people communicate?",
			"What are the advantages and disadvantages of living in a big city?",
		},
		part3Topic: "Travel and Tourism",
	}
}

// Select returns a fallback result for the given section. Part1 and part3
// shuffle their pools and take a random count; part2 always returns the same
// cue card. Only an invalid section produces an error.
func (c *FallbackCatalog) Select(section models.Section, rng *rand.Rand) (*models.SelectionResult, error) {
	switch section {
	case models.SectionPart1:
		return &models.SelectionResult{
			Kind:      models.ShapeFlatList,
			Section:   models.SectionPart1,
			Questions: shuffledSubset(c.part1Questions, rng, 4, 6),
		}, nil
	case models.SectionPart2:
		return &models.SelectionResult{
			Kind:         models.ShapeCueCard,
			Section:      models.SectionPart2,
			Topic:        c.part2Topic,
			BulletPoints: append([]string(nil), c.part2Bullets...),
		}, nil
	case models.SectionPart3:
		return &models.SelectionResult{
			Kind:      models.ShapeGroupedList,
			Section:   models.SectionPart3,
			Questions: shuffledSubset(c.part3Questions, rng, 5, 7),
			Topic:     c.part3Topic,
		}, nil
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidSection, "unknown section %q", string(section))
	}
}

// shuffledSubset copies the pool, shuffles it, and takes a random count in
// [min, max], capped at the pool size.
func shuffledSubset(pool []string, rng *rand.Rand, min, max int) []string {
	out := append([]string(nil), pool...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	k := randomCount(rng, min, max)
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}
