// Package classify turns free-text research requests into structured intents.
package classify

import (
	"regexp"
	"strings"

	"github.com/supplyscope/supply-cli/internal/model"
)

// kindKeywords maps each intent kind to its trigger words. The scan is
// first-match-wins in kindPriority order, case-insensitive substring
// containment (not tokenized).
var kindKeywords = map[model.IntentKind][]string{
	model.IntentPricing:      {"price", "pricing", "cost", "rate", "dollar", "per token", "per million", "$"},
	model.IntentCapabilities: {"capabilit", "feature", "context window", "benchmark", "multimodal", "support"},
	model.IntentAvailability: {"availab", "region", "access", "rollout", "waitlist"},
	model.IntentNewModel:     {"new model", "release", "launch", "announce"},
	model.IntentDeprecation:  {"deprecat", "sunset", "retire", "end of life", "shutdown"},
}

// kindPriority is the strict match order; MARKET_OVERVIEW is the default.
var kindPriority = []model.IntentKind{
	model.IntentPricing,
	model.IntentCapabilities,
	model.IntentAvailability,
	model.IntentNewModel,
	model.IntentDeprecation,
}

// providerEntry pairs a canonical provider name with its trigger keywords.
// Entries are scanned in table order; the first keyword found selects the
// provider, so more specific names come before generic ones.
type providerEntry struct {
	name     string
	keywords []string
}

var providerTable = []providerEntry{
	{"anthropic", []string{"anthropic", "claude"}},
	{"openai", []string{"openai", "chatgpt", "gpt"}},
	{"google", []string{"google", "gemini", "bard"}},
	{"meta", []string{"meta", "llama"}},
	{"mistral", []string{"mistral", "mixtral"}},
	{"cohere", []string{"cohere", "command-r"}},
	{"xai", []string{"xai", "grok"}},
	{"deepseek", []string{"deepseek"}},
	{"amazon", []string{"amazon", "bedrock", "nova"}},
}

// timeframe precedence: "latest" > "month" > "week" > default "current".
var timeframeOrder = []struct {
	keyword string
	value   model.Timeframe
}{
	{"latest", model.TimeframeLatest},
	{"month", model.TimeframeMonthly},
	{"week", model.TimeframeWeekly},
}

// Classify interprets a free-text research request. It never fails: input
// matching nothing yields a maximally generic MARKET_OVERVIEW intent.
func Classify(text string) model.ResearchIntent {
	lower := strings.ToLower(text)

	intent := model.ResearchIntent{
		Kind:      classifyKind(lower),
		Timeframe: classifyTimeframe(lower),
		RawText:   text,
	}

	provider, keyword := matchProvider(lower)
	if provider == "" {
		return intent
	}
	intent.Provider = provider
	intent.ModelName = extractModelName(text, keyword)

	return intent
}

func classifyKind(lower string) model.IntentKind {
	for _, kind := range kindPriority {
		for _, kw := range kindKeywords[kind] {
			if strings.Contains(lower, kw) {
				return kind
			}
		}
	}
	return model.IntentMarketOverview
}

func classifyTimeframe(lower string) model.Timeframe {
	for _, tf := range timeframeOrder {
		if strings.Contains(lower, tf.keyword) {
			return tf.value
		}
	}
	return model.TimeframeCurrent
}

// matchProvider scans the provider table in order and returns the first
// provider whose keyword appears in the lower-cased text, along with the
// keyword that matched.
func matchProvider(lower string) (string, string) {
	for _, entry := range providerTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.name, kw
			}
		}
	}
	return "", ""
}

// extractModelName pulls a versioned model name out of the original-cased
// text: the matched provider keyword, an optional separator, and a version
// fragment starting with a digit ("gpt-4.1", "claude 3.5-sonnet"). Returns
// "" when the text names the provider but no specific version.
func extractModelName(text, keyword string) string {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(keyword) + `[-_ ]?v?\d[\d.]*[\w-]*`)
	if err != nil {
		return ""
	}
	return re.FindString(text)
}
