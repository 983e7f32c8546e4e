// Package budget estimates what a run cost.
//
// All prices are per 1 million tokens, prompt and completion separately.
// The gpt-4o rates are the ones the briefing summary has always reported
// against; they are deliberately not the current list price.
package budget

import (
	"log/slog"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
)

// Rate is the price per 1M tokens.
type Rate struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Cost is the estimated spend for some token usage.
type Cost struct {
	Model  string
	Input  float64
	Output float64
}

// Total returns input plus output cost.
func (c Cost) Total() float64 {
	return c.Input + c.Output
}

// ModelPricing holds per-model rates.
//
// Example:
//
//	pricing := budget.NewModelPricing(nil)
//	cost := pricing.Estimate("gpt-4o", llm.Usage{PromptTokens: 100000, CompletionTokens: 20000})
//	fmt.Printf("$%.2f\n", cost.Total()) // $1.60
type ModelPricing struct {
	pricing map[string]Rate
	logger  *slog.Logger
}

// DefaultModel is the rate used for models missing from the table.
const DefaultModel = "default"

// NewModelPricing creates a pricing table with the built-in rates.
func NewModelPricing(logger *slog.Logger) *ModelPricing {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelPricing{
		pricing: map[string]Rate{
			"gpt-4o":        {Input: 10.00, Output: 30.00},
			"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
			"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
			"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
			DefaultModel:    {Input: 10.00, Output: 30.00},
		},
		logger: logger,
	}
}

// Estimate prices a usage total.
func (m *ModelPricing) Estimate(model string, usage llm.Usage) Cost {
	rate := m.rate(model)
	return Cost{
		Model:  model,
		Input:  float64(usage.PromptTokens) / 1_000_000 * rate.Input,
		Output: float64(usage.CompletionTokens) / 1_000_000 * rate.Output,
	}
}

func (m *ModelPricing) rate(model string) Rate {
	if r, ok := m.pricing[model]; ok {
		return r
	}
	m.logger.Warn("unknown model, using default pricing", "model", model)
	return m.pricing[DefaultModel]
}
