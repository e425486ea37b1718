package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-1.5-flash"
	defaultTimeout  = 30 * time.Second
)

var ErrNotConfigured = errors.New("insight: generator API key not configured")

// GeminiConfig configures GeminiGenerator. Empty fields take defaults.
type GeminiConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// GeminiGenerator asks the Generative Language API for an industry overview
// and decodes the JSON document embedded in the reply.
type GeminiGenerator struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func NewGeminiGenerator(cfg GeminiConfig, logger *slog.Logger) *GeminiGenerator {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &GeminiGenerator{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

const promptTemplate = `Analyze the current state of the %s industry and provide insights in ONLY the following JSON format without any additional notes or explanations:
{
  "averageSalary": number,
  "inDemandSkills": ["skill1", "skill2"],
  "industryGrowth": number,
  "demandLevel": "High" | "Medium" | "Low",
  "marketOutlook": "Positive" | "Neutral" | "Negative",
  "keyTrends": ["trend1", "trend2"]
}
IMPORTANT: Return ONLY the JSON. No additional text, notes, or markdown formatting.
averageSalary is the yearly average in USD. industryGrowth is a percentage.
Include at least 5 skills and 5 trends.`

func (g *GeminiGenerator) Generate(ctx context.Context, industry string) (*Insights, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, industry)}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("insight: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("insight: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("insight: calling generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("insight: generator returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("insight: decoding response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrInvalidInsights)
	}

	insights, err := Parse(out.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}

	g.logger.Info("industry insights generated",
		slog.String("industry", industry),
		slog.Duration("took", time.Since(start)),
	)
	return insights, nil
}

// Parse decodes a model reply that may be wrapped in a ```json fence.
func Parse(text string) (*Insights, error) {
	text = stripFences(text)

	var in Insights
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInsights, err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the language tag on the opening fence line.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}
