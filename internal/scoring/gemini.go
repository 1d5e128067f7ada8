package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiPipeline scores a history with a single Gemini JSON-mode call
type GeminiPipeline struct {
	generate      generateFunc
	model         string
	maxInputChars int
	inputCost     float64
	outputCost    float64
	tokens        *telemetry.Counter
	logger        *zap.Logger
}

// modelReport is the JSON document the model is asked to produce
type modelReport struct {
	Summary        string           `json:"summary"`
	SentimentTrend string           `json:"sentimentTrend"`
	Contradictions []models.Finding `json:"contradictions"`
	Timeline       []models.Event   `json:"timeline"`
}

// NewGeminiPipeline creates a pipeline backed by the Gemini API
func NewGeminiPipeline(ctx context.Context, cfg *config.ScoringConfig) (*GeminiPipeline, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini_api_key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p := newGeminiPipeline(cfg, client.Models.GenerateContent)
	p.logger.Info("Gemini scoring pipeline initialized", zap.String("model", cfg.Model))
	return p, nil
}

func newGeminiPipeline(cfg *config.ScoringConfig, generate generateFunc) *GeminiPipeline {
	return &GeminiPipeline{
		generate:      generate,
		model:         cfg.Model,
		maxInputChars: cfg.MaxInputChars,
		inputCost:     cfg.InputCostPerMillion,
		outputCost:    cfg.OutputCostPerMillion,
		tokens:        telemetry.NewCounter("scoring.tokens", "Model tokens consumed by the scoring pipeline"),
		logger:        logging.WithComponent("scoring"),
	}
}

// Analyze implements Pipeline
func (p *GeminiPipeline) Analyze(ctx context.Context, in Input) (*models.Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "scoring.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("scoring.model", p.model),
		attribute.Int("scoring.comments", len(in.Comments)),
		attribute.Int("scoring.posts", len(in.Posts)),
	)

	stats := ComputeStats(in)
	if in.Empty() {
		// Nothing to send; an empty history has no contradictions
		return &models.Report{
			Summary:        fmt.Sprintf("u/%s has no public history recent enough to analyse.", in.Username),
			Contradictions: []models.Finding{},
			Timeline:       []models.Event{},
			Stats:          stats,
		}, nil
	}

	prompt, included := buildPrompt(in, p.maxInputChars)
	if total := len(in.Comments) + len(in.Posts); included < total {
		p.logger.Warn("History truncated to fit the model input",
			zap.String("username", in.Username),
			zap.Int("included", included),
			zap.Int("total", total))
	}

	resp, err := p.generate(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var raw modelReport
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	stats.SentimentTrend = raw.SentimentTrend
	report := &models.Report{
		Summary:        raw.Summary,
		Contradictions: normalizeFindings(raw.Contradictions),
		Timeline:       raw.Timeline,
		Stats:          stats,
		Usage:          p.usage(resp),
	}
	if report.Timeline == nil {
		report.Timeline = []models.Event{}
	}

	p.tokens.Add(ctx, int64(report.Usage.InputTokens), "kind", "input")
	p.tokens.Add(ctx, int64(report.Usage.OutputTokens), "kind", "output")

	p.logger.Info("Scored user history",
		zap.String("username", in.Username),
		zap.Int("findings", len(report.Contradictions)),
		zap.Int("input_tokens", report.Usage.InputTokens),
		zap.Int("output_tokens", report.Usage.OutputTokens),
		zap.Float64("cost", report.Usage.Cost))

	return report, nil
}

func (p *GeminiPipeline) usage(resp *genai.GenerateContentResponse) models.Usage {
	if resp.UsageMetadata == nil {
		return models.Usage{}
	}
	in := int(resp.UsageMetadata.PromptTokenCount)
	out := int(resp.UsageMetadata.CandidatesTokenCount)
	return models.Usage{
		InputTokens:  in,
		OutputTokens: out,
		Cost:         float64(in)*p.inputCost/1e6 + float64(out)*p.outputCost/1e6,
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// normalizeFindings assigns missing ids and derives statement dates
func normalizeFindings(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, 0, len(findings))
	for i, f := range findings {
		if f.ID == "" {
			f.ID = fmt.Sprintf("c%d", i+1)
		}
		if f.Dates == nil && len(f.Statements) >= 2 {
			first, second := f.Statements[0].CreatedUTC, f.Statements[1].CreatedUTC
			if first > 0 && second > 0 {
				f.Dates = &models.DatePair{First: first, Second: second}
			}
		}
		out = append(out, f)
	}
	return out
}
