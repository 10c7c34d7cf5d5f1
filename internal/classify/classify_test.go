package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supplyscope/supply-cli/internal/model"
)

func TestClassify_Kind(t *testing.T) {
	tests := []struct {
		text string
		want model.IntentKind
	}{
		{"what is the pricing for claude", model.IntentPricing},
		{"how much does gpt-4 cost", model.IntentPricing},
		{"$ per million tokens for gemini", model.IntentPricing},
		{"what features does llama support", model.IntentCapabilities},
		{"context window of mistral large", model.IntentCapabilities},
		{"is grok available in europe", model.IntentAvailability},
		{"when was the new model announced", model.IntentNewModel},
		{"which models are being deprecated", model.IntentDeprecation},
		{"sunset timeline for legacy endpoints", model.IntentDeprecation},
		{"tell me about the AI model landscape", model.IntentMarketOverview},
		{"", model.IntentMarketOverview},
	}
	for _, tc := range tests {
		intent := Classify(tc.text)
		assert.Equal(t, tc.want, intent.Kind, tc.text)
	}
}

func TestClassify_KindPriorityIsFirstMatchWins(t *testing.T) {
	// Mentions both pricing and deprecation; pricing is scanned first.
	intent := Classify("pricing changes for deprecated models")
	assert.Equal(t, model.IntentPricing, intent.Kind)
}

func TestClassify_Provider(t *testing.T) {
	tests := []struct {
		text     string
		provider string
	}{
		{"claude pricing", "anthropic"},
		{"Anthropic model lineup", "anthropic"},
		{"chatgpt cost", "openai"},
		{"gemini context window", "google"},
		{"llama 3 availability", "meta"},
		{"mixtral benchmark", "mistral"},
		{"command-r pricing", "cohere"},
		{"grok capabilities", "xai"},
		{"deepseek pricing", "deepseek"},
		{"bedrock availability", "amazon"},
		{"general market question", ""},
	}
	for _, tc := range tests {
		intent := Classify(tc.text)
		assert.Equal(t, tc.provider, intent.Provider, tc.text)
	}
}

func TestClassify_ModelName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"pricing for gpt-4.1 please", "gpt-4.1"},
		{"what does claude 3.5-sonnet cost", "claude 3.5-sonnet"},
		{"gemini pricing", ""}, // provider without a version
	}
	for _, tc := range tests {
		intent := Classify(tc.text)
		assert.Equal(t, tc.want, intent.ModelName, tc.text)
	}
}

func TestClassify_Timeframe(t *testing.T) {
	tests := []struct {
		text string
		want model.Timeframe
	}{
		{"latest pricing for claude", model.TimeframeLatest},
		{"pricing changes this month", model.TimeframeMonthly},
		{"what changed this week", model.TimeframeWeekly},
		{"claude pricing", model.TimeframeCurrent},
		// "latest" outranks "month" when both appear.
		{"latest pricing this month", model.TimeframeLatest},
	}
	for _, tc := range tests {
		intent := Classify(tc.text)
		assert.Equal(t, tc.want, intent.Timeframe, tc.text)
	}
}

func TestClassify_PreservesRawText(t *testing.T) {
	intent := Classify("Latest Pricing For Claude")
	assert.Equal(t, "Latest Pricing For Claude", intent.RawText)
}
