// Package query renders research backend instructions from intents.
package query

import (
	"fmt"

	"github.com/supplyscope/supply-cli/internal/model"
)

// templates holds one instruction template per intent kind. Placeholders are
// filled positionally: timeframe, provider, model name (in template order).
var templates = map[model.IntentKind]string{
	model.IntentPricing: "Research the %s per-token pricing for %s %s. " +
		"Report input and output costs per 1M tokens in USD, citing official pricing pages where possible.",
	model.IntentCapabilities: "Research the %s capabilities of %s %s. " +
		"Report context window size, supported modalities, and notable features, citing documentation.",
	model.IntentAvailability: "Research the %s availability of %s %s. " +
		"Report regions, access tiers, and any waitlists or usage limits.",
	model.IntentNewModel: "Research %s newly released models from %s (%s). " +
		"Report names, pricing, and context windows for anything announced recently.",
	model.IntentDeprecation: "Research %s deprecation notices from %s affecting %s. " +
		"Report shutdown dates and recommended replacements.",
	model.IntentMarketOverview: "Research the %s AI model market across %s (%s). " +
		"Summarize pricing, capabilities, and availability changes worth tracking.",
}

// Build renders the backend query for an intent. Unknown kinds fall back to
// the market overview template; no validation is applied to the output.
func Build(intent model.ResearchIntent) string {
	tmpl, ok := templates[intent.Kind]
	if !ok {
		tmpl = templates[model.IntentMarketOverview]
	}

	provider := intent.Provider
	if provider == "" {
		provider = "all major providers"
	}
	modelName := intent.ModelName
	if modelName == "" {
		modelName = "models"
	}

	return fmt.Sprintf(tmpl, intent.Timeframe, provider, modelName)
}
