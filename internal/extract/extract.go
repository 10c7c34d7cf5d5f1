// Package extract mines research answers for priced and capability facts
// and scores how much the result can be trusted.
package extract

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/supplyscope/supply-cli/internal/model"
	"github.com/supplyscope/supply-cli/pkg/deepresearch"
)

// priceRe matches a monetary amount: either a $-prefixed number, or a bare
// number followed by per/"/" + 1M/million + optional input/output + tokens.
// Group 1 or 2 carries the digits depending on which alternative hit.
var priceRe = regexp.MustCompile(`(?i)(?:\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,6})?|\d+(?:\.\d{1,6})?)|(\d{1,3}(?:,\d{3})*(?:\.\d{1,6})?|\d+(?:\.\d{1,6})?)\s*(?:per|/)\s*(?:1\s*m\b|million)\s*(?:(?:input|output)\s+)?tokens?)`)

// contextRe matches a context-window mention: digits, optional k, then
// token/context wording.
var contextRe = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*|\d+)\s*k?\s*(?:tokens?\s+(?:of\s+)?context|context(?:\s+window)?|tokens?)`)

// sourceQualityWords mark citations that boost confidence.
var sourceQualityWords = []string{"official", "documentation", "pricing"}

// Extract mines one result bundle for supply candidates and computes the
// aggregate confidence score. Each question/answer pair is scanned
// independently; pairs matching neither pattern emit nothing.
func Extract(bundle *deepresearch.ResultBundle, intent model.ResearchIntent) ([]model.SupplyCandidate, float64) {
	provider := intent.Provider
	if provider == "" {
		provider = "unknown"
	}
	modelName := intent.ModelName
	if modelName == "" {
		modelName = "unspecified"
	}
	sourceLabel := "research"
	if len(bundle.Citations) > 0 {
		sourceLabel = bundle.Citations[0].Source
	}

	now := time.Now().UTC()
	var candidates []model.SupplyCandidate

	for _, qa := range bundle.QuestionsAnswered {
		prices := minePrices(qa.Answer)
		ctx := mineContextWindow(qa.Answer)
		if len(prices) == 0 && ctx == nil {
			continue
		}

		cand := model.SupplyCandidate{
			Provider:      provider,
			ModelName:     modelName,
			ContextWindow: ctx,
			SourceLabel:   sourceLabel,
			ObservedAt:    now,
		}
		// First monetary match is the input cost, second the output cost.
		if len(prices) >= 1 {
			cand.PricingInput = &prices[0]
		}
		if len(prices) >= 2 {
			cand.PricingOutput = &prices[1]
		}
		candidates = append(candidates, cand)
	}

	confidence := Confidence(candidates, bundle.Citations)
	for i := range candidates {
		candidates[i].Confidence = confidence
	}

	zap.L().Debug("extract: bundle mined",
		zap.Int("answers", len(bundle.QuestionsAnswered)),
		zap.Int("candidates", len(candidates)),
		zap.Float64("confidence", confidence),
	)

	return candidates, confidence
}

// minePrices returns every monetary amount in the answer, in text order,
// parsed as exact fixed-point values. Unparseable matches are skipped.
func minePrices(answer string) []model.Decimal {
	var prices []model.Decimal
	for _, m := range priceRe.FindAllStringSubmatch(answer, -1) {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		digits = strings.ReplaceAll(digits, ",", "")
		d, err := model.ParseDecimal(digits)
		if err != nil {
			continue
		}
		prices = append(prices, d)
	}
	return prices
}

// mineContextWindow returns the first context-window mention in the answer,
// normalized, or nil when none is found.
func mineContextWindow(answer string) *int {
	m := contextRe.FindStringSubmatch(answer)
	if m == nil {
		return nil
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	n = NormalizeContextWindow(n)
	return &n
}

// NormalizeContextWindow scales values under 1000 by 1000 on the assumption
// they were written in "k" shorthand ("128k" → 128000). This cannot tell
// "500 tokens" from an already-abbreviated "500k" and always scales, so
// literal sub-1000 token counts come out inflated. Kept intact for
// compatibility; the boundary is pinned by tests.
func NormalizeContextWindow(n int) int {
	if n < 1000 {
		return n * 1000
	}
	return n
}

// Confidence scores a batch of candidates against its citations:
// 0.5 base, +0.05 per citation capped at +0.2, +0.1 per citation whose
// source mentions official/documentation/pricing, +0.1 per candidate with
// both prices set, +0.05 per candidate with a context window. Clamped to 1.0;
// the additive terms mean it can never fall below the 0.5 base.
func Confidence(candidates []model.SupplyCandidate, citations []deepresearch.Citation) float64 {
	score := 0.5

	citationBonus := 0.05 * float64(len(citations))
	if citationBonus > 0.2 {
		citationBonus = 0.2
	}
	score += citationBonus

	for _, c := range citations {
		lower := strings.ToLower(c.Source)
		for _, w := range sourceQualityWords {
			if strings.Contains(lower, w) {
				score += 0.1
				break
			}
		}
	}

	for _, cand := range candidates {
		if cand.PricingInput != nil && cand.PricingOutput != nil {
			score += 0.1
		}
		if cand.ContextWindow != nil {
			score += 0.05
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
