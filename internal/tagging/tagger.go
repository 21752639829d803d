package tagging

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	patternWeight   = 0.4
	amountWeight    = 0.2
	frequencyWeight = 0.1

	minConfidence        = 0.3
	classifierConfidence = 0.5
)

// Classifier names the category of a merchant the rules could not place.
// It must answer with one of the given categories.
type Classifier interface {
	Classify(ctx context.Context, merchant string, categories []string) (string, error)
}

// Tagger suggests better categories for merchants.
type Tagger struct {
	classifier Classifier
	log        zerolog.Logger
}

// NewTagger returns a Tagger. classifier may be nil.
func NewTagger(classifier Classifier, log zerolog.Logger) *Tagger {
	return &Tagger{classifier: classifier, log: log}
}

type merchantGroup struct {
	key  string
	txns []domain.Transaction
	at   []time.Time
}

// AutoTag groups transactions by lowercase merchant name and returns a
// suggestion for every merchant whose likely category differs from the one it
// is usually filed under.
func (t *Tagger) AutoTag(ctx context.Context, txns []domain.Transaction) ([]domain.MerchantTagSuggestion, error) {
	var groups []*merchantGroup
	byKey := make(map[string]*merchantGroup)
	for _, txn := range txns {
		ts, err := insights.ParseTimestamp(txn.PostedAt)
		if err != nil {
			return nil, fmt.Errorf("AutoTag: %w", &domain.DataError{
				TransactionID: txn.ID,
				Field:         "posted_at",
				Value:         txn.PostedAt,
				Err:           err,
			})
		}

		key := insights.MerchantKey(txn.MerchantName)
		g, ok := byKey[key]
		if !ok {
			g = &merchantGroup{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.txns = append(g.txns, txn)
		g.at = append(g.at, ts)
	}

	suggestions := []domain.MerchantTagSuggestion{}
	for _, g := range groups {
		suggestion, ok := t.analyzeMerchant(ctx, g)
		if ok {
			suggestions = append(suggestions, suggestion)
		}
	}

	t.log.Debug().
		Int("merchants", len(groups)).
		Int("suggestions", len(suggestions)).
		Msg("Merchant tagging finished")

	return suggestions, nil
}

// scoreboard accumulates category scores, remembering first-seen order so
// ties resolve deterministically.
type scoreboard struct {
	order  []string
	scores map[string]float64
}

func (s *scoreboard) add(category string, score float64) {
	if s.scores == nil {
		s.scores = make(map[string]float64)
	}
	if _, ok := s.scores[category]; !ok {
		s.order = append(s.order, category)
	}
	s.scores[category] += score
}

func (s *scoreboard) best() (string, float64) {
	var best string
	bestScore := math.Inf(-1)
	for _, category := range s.order {
		if s.scores[category] > bestScore {
			best, bestScore = category, s.scores[category]
		}
	}
	return best, bestScore
}

func (t *Tagger) analyzeMerchant(ctx context.Context, g *merchantGroup) (domain.MerchantTagSuggestion, bool) {
	original := mostCommonCategory(g.txns)

	var board scoreboard
	var reasons []string

	patternCategory, patternHit := matchPattern(g.key)
	if patternHit {
		board.add(patternCategory, patternWeight)
	}
	keywords := matchKeywords(g.key)
	for _, k := range keywords {
		board.add(k.category, k.score)
	}
	amountCategory, amountHit := amountHeuristic(g.txns)
	if amountHit {
		board.add(amountCategory, amountWeight)
	}
	frequencyCategory, frequencyHit := frequencyHeuristic(g.txns, g.at)
	if frequencyHit {
		board.add(frequencyCategory, frequencyWeight)
	}

	if len(board.order) == 0 {
		return t.classify(ctx, g, original)
	}

	suggested, bestScore := board.best()
	confidence := insights.Round(math.Min(1, bestScore), 3)
	if confidence <= minConfidence || suggested == original {
		return domain.MerchantTagSuggestion{}, false
	}

	if patternHit && patternCategory == suggested {
		reasons = append(reasons, "matches known merchant pattern")
	}
	for _, k := range keywords {
		if k.category == suggested {
			reasons = append(reasons, "contains relevant keywords")
		}
	}
	if amountHit && amountCategory == suggested {
		reasons = append(reasons, "has typical transaction amounts")
	}
	if frequencyHit && frequencyCategory == suggested {
		reasons = append(reasons, "recurs on a regular schedule")
	}

	probabilities := make(map[string]float64, len(board.order))
	for _, category := range board.order {
		probabilities[category] = insights.Round(board.scores[category]/bestScore, 3)
	}

	return domain.MerchantTagSuggestion{
		MerchantName:          titleCase(g.key),
		OriginalCategory:      original,
		SuggestedCategory:     suggested,
		Confidence:            confidence,
		Reasoning:             reasoning(suggested, confidence, reasons),
		SimilarMerchants:      similarMerchants(g.key),
		CategoryProbabilities: probabilities,
	}, true
}

// classify falls back to the Classifier for merchants no rule scored.
func (t *Tagger) classify(ctx context.Context, g *merchantGroup, original string) (domain.MerchantTagSuggestion, bool) {
	if t.classifier == nil {
		return domain.MerchantTagSuggestion{}, false
	}

	category, err := t.classifier.Classify(ctx, g.key, Categories())
	if err != nil {
		t.log.Warn().Err(err).Str("merchant", g.key).Msg("Merchant classification failed")
		return domain.MerchantTagSuggestion{}, false
	}
	if category == "" || category == original {
		return domain.MerchantTagSuggestion{}, false
	}

	return domain.MerchantTagSuggestion{
		MerchantName:          titleCase(g.key),
		OriginalCategory:      original,
		SuggestedCategory:     category,
		Confidence:            classifierConfidence,
		Reasoning:             reasoning(category, classifierConfidence, []string{"was classified by a language model"}),
		SimilarMerchants:      similarMerchants(g.key),
		CategoryProbabilities: map[string]float64{category: 1},
	}, true
}

func reasoning(category string, confidence float64, reasons []string) string {
	certainty := "somewhat confident"
	switch {
	case confidence > 0.7:
		certainty = "highly confident"
	case confidence > 0.5:
		certainty = "moderately confident"
	}
	return fmt.Sprintf("I'm %s this is %s because it %s", certainty, category, strings.Join(reasons, " and "))
}

// mostCommonCategory breaks ties by first appearance.
func mostCommonCategory(txns []domain.Transaction) string {
	counts := make(map[string]int)
	for _, txn := range txns {
		counts[txn.Category]++
	}
	var best string
	bestCount := 0
	for _, txn := range txns {
		if counts[txn.Category] > bestCount {
			best, bestCount = txn.Category, counts[txn.Category]
		}
	}
	return best
}

// titleCase builds a Caser per call since Casers are not safe for
// concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func absAmounts(txns []domain.Transaction) []float64 {
	amounts := make([]float64, len(txns))
	for i, txn := range txns {
		amounts[i] = txn.Amount.Abs().InexactFloat64()
	}
	return amounts
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// amountHeuristic: small tickets look like food, large ones like bills and
// mid-sized ones like shopping.
func amountHeuristic(txns []domain.Transaction) (string, bool) {
	avg := meanOf(absAmounts(txns))
	switch {
	case avg < 10:
		return CategoryFood, true
	case avg > 500:
		return CategoryBills, true
	case avg > 50 && avg < 200:
		return CategoryShopping, true
	default:
		return "", false
	}
}

// frequencyHeuristic spots steady amounts on a monthly or weekly rhythm.
func frequencyHeuristic(txns []domain.Transaction, at []time.Time) (string, bool) {
	if len(txns) < 2 {
		return "", false
	}

	amounts := absAmounts(txns)
	if insights.SampleStdDev(amounts) >= meanOf(amounts)*0.1 {
		return "", false
	}

	sorted := append([]time.Time(nil), at...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	total := 0.0
	for i := 1; i < len(sorted); i++ {
		total += math.Floor(sorted[i].Sub(sorted[i-1]).Hours() / 24)
	}
	avgInterval := total / float64(len(sorted)-1)

	switch {
	case avgInterval >= 25 && avgInterval <= 35:
		return CategoryBills, true
	case avgInterval >= 6 && avgInterval <= 8:
		return CategoryFood, true
	default:
		return "", false
	}
}
