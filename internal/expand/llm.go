package expand

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seekly/seekly/internal/errors"
)

// LLM expansion confidence. Generated variants read well but can drift from
// the original intent, so they score below exact synonym substitution.
const llmConfidence = 0.7

const expansionPrompt = `Rewrite the search query below into up to %MAX% alternative phrasings that mean the same thing. Keep the language of the original query. Reply with one phrasing per line and nothing else.

Query: `

// LLMConfig configures the LLM-backed expander.
type LLMConfig struct {
	Endpoint string        // Ollama-compatible base URL
	Model    string        // generation model name
	Timeout  time.Duration // per-call deadline
	MaxLines int           // variants requested from the model
}

// LLMExpander generates query variants via an Ollama-compatible
// /api/generate endpoint.
type LLMExpander struct {
	client *http.Client
	cfg    LLMConfig
}

// NewLLMExpander creates an LLM expander.
func NewLLMExpander(cfg LLMConfig) *LLMExpander {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = 3
	}
	return &LLMExpander{
		client: &http.Client{},
		cfg:    cfg,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Expand asks the model for alternative phrasings. Failures return an error
// so the caller can fall back to rules.
func (l *LLMExpander) Expand(ctx context.Context, query string) ([]Variant, error) {
	prompt := strings.Replace(expansionPrompt, "%MAX%", strconv.Itoa(l.cfg.MaxLines), 1) + query

	body, err := json.Marshal(generateRequest{Model: l.cfg.Model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExpansionFailed, "encode generate request")
	}

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, l.cfg.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExpansionFailed, "create generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrCodeBackendTimeout, "expansion timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "expansion backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf(errors.ErrCodeGenerationFailed, "generate returned %d: %s", resp.StatusCode, raw)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExpansionFailed, "decode generate response")
	}

	return parseVariantLines(decoded.Response, query, l.cfg.MaxLines), nil
}

// parseVariantLines extracts variants from the model output, dropping
// list markers, empties, and echoes of the original query.
func parseVariantLines(text, original string, max int) []Variant {
	var variants []Variant
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		line = strings.Trim(line, `"`)
		if line == "" || strings.EqualFold(line, original) {
			continue
		}
		variants = append(variants, Variant{
			Text:       line,
			Confidence: llmConfidence,
			Source:     SourceLLM,
		})
		if len(variants) == max {
			break
		}
	}
	return variants
}
