package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/models"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

const (
	samplingTemperature = 0.3

	systemPrompt = `You are an expert financial advisor specializing in portfolio rebalancing.

Your responsibilities:
1. Analyze portfolio drift from target allocations
2. Assess market volatility and risk factors
3. Recommend specific trades to optimize risk-adjusted returns
4. Provide clear, auditable explanations for every decision
5. Calculate confidence scores based on data quality and market conditions

Core Principles:
- Prioritize risk management over aggressive returns
- Explain reasoning in plain language for non-experts
- Be conservative with high-volatility assets (crypto)
- Always provide quantitative justification

Respond with a single JSON object of this shape:
{
  "action_needed": true,
  "primary_concern": "string",
  "risk_level": "low|medium|high",
  "trades": [{"action": "BUY|SELL", "symbol": "string", "quantity": 0.0, "value": 0.0, "reasoning": "string"}],
  "reasoning": "string",
  "confidence": 0.0
}`
)

// LLMConfig selects the model provider for the LLM advisor.
type LLMConfig struct {
	Provider string // "openai" or "anthropic"
	Model    string
	APIKey   string
}

// llmDecision mirrors the JSON structure the model is asked to produce.
type llmDecision struct {
	ActionNeeded   bool       `json:"action_needed"`
	PrimaryConcern string     `json:"primary_concern"`
	RiskLevel      string     `json:"risk_level"`
	Trades         []llmTrade `json:"trades"`
	Reasoning      string     `json:"reasoning"`
	Confidence     float64    `json:"confidence"`
}

type llmTrade struct {
	Action    string  `json:"action"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	Value     float64 `json:"value"`
	Reasoning string  `json:"reasoning"`
}

// LLMAdvisor asks a language model for a rebalancing decision. When the
// model call or response parsing fails it falls back to the rule-based
// rebalancer so a portfolio check always yields a usable answer.
type LLMAdvisor struct {
	cfg      LLMConfig
	market   market.Data
	fallback *Rebalancer
	logger   *slog.Logger
	now      func() time.Time
}

// NewLLMAdvisor creates an advisor backed by the configured model provider.
func NewLLMAdvisor(cfg LLMConfig, data market.Data, logger *slog.Logger) *LLMAdvisor {
	return &LLMAdvisor{
		cfg:      cfg,
		market:   data,
		fallback: NewRebalancer(data, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Propose asks the model to analyze the portfolio. A (nil, nil) return
// means no rebalancing is needed.
func (a *LLMAdvisor) Propose(ctx context.Context, portfolio models.Portfolio) (*models.Recommendation, error) {
	current := CalculateAllocations(portfolio)
	drifts := DetectDrift(current, portfolio.TargetAllocations)
	if len(drifts) == 0 {
		return nil, nil
	}

	volatilities := make(map[string]float64, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		vol, err := a.market.Volatility(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch volatility for %s: %w", h.Symbol, err)
		}
		volatilities[h.Symbol] = vol
	}

	prompt := buildPrompt(portfolio, current, drifts, volatilities)

	responseText, err := a.callModel(ctx, prompt)
	if err != nil {
		a.logger.Warn("model call failed, using rule-based fallback",
			"user_id", portfolio.UserID,
			"provider", a.cfg.Provider,
			"error", err)
		return a.fallback.Propose(ctx, portfolio)
	}

	decision, err := parseDecision(responseText)
	if err != nil {
		a.logger.Warn("failed to parse model response, using rule-based fallback",
			"user_id", portfolio.UserID,
			"error", err)
		return a.fallback.Propose(ctx, portfolio)
	}

	if !decision.ActionNeeded {
		a.logger.Info("model advises no action", "user_id", portfolio.UserID)
		return nil, nil
	}

	trades := make([]models.Trade, 0, len(decision.Trades))
	for _, t := range decision.Trades {
		trades = append(trades, models.Trade{
			Action:    models.TradeAction(strings.ToUpper(t.Action)),
			Symbol:    t.Symbol,
			Quantity:  decimal.NewFromFloat(t.Quantity).Round(4),
			Value:     decimal.NewFromFloat(t.Value).Round(2),
			Reasoning: t.Reasoning,
		})
	}

	confidence := decision.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	rec := &models.Recommendation{
		ID:             uuid.New().String(),
		UserID:         portfolio.UserID,
		CreatedAt:      a.now().UTC(),
		Status:         models.RecommendationPending,
		PrimaryConcern: decision.PrimaryConcern,
		RiskLevel:      decision.RiskLevel,
		Trades:         trades,
		Reasoning:      decision.Reasoning,
		Confidence:     confidence,
		ExpectedImpact: estimateImpact(trades, volatilities),
	}

	a.logger.Info("model generated recommendation",
		"user_id", portfolio.UserID,
		"recommendation_id", rec.ID,
		"provider", a.cfg.Provider,
		"trade_count", len(trades),
		"confidence", confidence)

	return rec, nil
}

func (a *LLMAdvisor) callModel(ctx context.Context, prompt string) (string, error) {
	switch a.cfg.Provider {
	case "openai":
		return a.callOpenAI(ctx, prompt)
	case "anthropic":
		return a.callAnthropic(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported provider: %s", a.cfg.Provider)
	}
}

func (a *LLMAdvisor) callOpenAI(ctx context.Context, prompt string) (string, error) {
	client := openai.NewClient(a.cfg.APIKey)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: float32(samplingTemperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *LLMAdvisor) callAnthropic(ctx context.Context, prompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(a.cfg.APIKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   2000,
		Temperature: anthropic.Float(samplingTemperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return message.Content[0].Text, nil
}

func buildPrompt(portfolio models.Portfolio, current map[models.AssetCategory]float64, drifts []Drift, volatilities map[string]float64) string {
	var b strings.Builder

	b.WriteString("Analyze this portfolio and provide rebalancing recommendations:\n\n")
	fmt.Fprintf(&b, "PORTFOLIO DETAILS:\nTotal Value: $%s\nNumber of Holdings: %d\n\n",
		portfolio.TotalValue.StringFixed(2), len(portfolio.Holdings))

	b.WriteString("CURRENT ALLOCATION:\n")
	writeAllocations(&b, current)

	b.WriteString("\nTARGET ALLOCATION:\n")
	writeAllocations(&b, portfolio.TargetAllocations)

	b.WriteString("\nCATEGORIES WITH DRIFT:\n")
	for _, d := range drifts {
		fmt.Fprintf(&b, "  %s: Current %s | Target %s | Drift: %+.1f%% (%s)\n",
			d.Category, formatPct(d.Current), formatPct(d.Target), d.Drift, d.Severity)
	}

	b.WriteString("\nVOLATILITY DATA:\n")
	symbols := make([]string, 0, len(volatilities))
	for s := range volatilities {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		fmt.Fprintf(&b, "  %s: %s (30-day)\n", s, formatPct(volatilities[s]*100))
	}

	b.WriteString("\nProvide your analysis and recommendations:")
	return b.String()
}

func writeAllocations(b *strings.Builder, allocations map[models.AssetCategory]float64) {
	categories := make([]string, 0, len(allocations))
	for c := range allocations {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(b, "  %s: %s\n", c, formatPct(allocations[models.AssetCategory(c)]))
	}
}

func parseDecision(responseText string) (*llmDecision, error) {
	jsonMatch := extractJSON(responseText)
	if jsonMatch == "" {
		return nil, fmt.Errorf("no valid JSON object found in response")
	}

	var decision llmDecision
	if err := json.Unmarshal([]byte(jsonMatch), &decision); err != nil {
		return nil, fmt.Errorf("failed to parse decision JSON: %w", err)
	}

	for _, t := range decision.Trades {
		action := strings.ToUpper(t.Action)
		if action != string(models.TradeBuy) && action != string(models.TradeSell) {
			return nil, fmt.Errorf("invalid trade action: %q", t.Action)
		}
	}
	return &decision, nil
}

// extractJSON finds the first balanced JSON object in text using brace
// matching, skipping braces inside string literals.
func extractJSON(text string) string {
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return ""
	}

	braceCount := 0
	inString := false
	escaped := false

	for i := startIdx; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString {
			if ch == '{' {
				braceCount++
			} else if ch == '}' {
				braceCount--
				if braceCount == 0 {
					return text[startIdx : i+1]
				}
			}
		}
	}
	return ""
}

var _ DecisionSource = (*LLMAdvisor)(nil)
