// Package openai is a trimmed adaptation of the teacher's hand-rolled HTTP
// client: only Embed (text embeddings) and GenerateJSON (structured vision
// extraction via the Responses API's json_schema mode) survive, since those
// are the only two capabilities EmbeddingCoordinator and VisionAnalyzer's
// remote path need. Retry/backoff and temperature-learning are kept intact.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	maxRetries int
	log        *logger.Logger

	noTempMu  sync.Mutex
	noTempSet map[string]time.Time
}

func New(baseURL, apiKey, model, embedModel string, timeout time.Duration, maxRetries int, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log.With("component", "OpenAIClient"),
		noTempSet:  make(map[string]time.Time),
	}
}

// Embed posts a batch of texts to /embeddings and returns one vector per
// input text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, indexerrors.ApiKeyNotFound
	}
	body := map[string]interface{}{
		"model": c.embedModel,
		"input": texts,
	}
	raw, err := c.doWithRetry(ctx, "POST", "/embeddings", body)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, indexerrors.InvalidResponse
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding at index %d", indexerrors.InvalidResponse, i)
		}
	}
	return out, nil
}

// GenerateJSON calls the Responses API with a strict json_schema format and
// unmarshals the structured output into target.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, imageDataURLs []string, schemaName string, schema map[string]interface{}, target interface{}) error {
	if c.apiKey == "" {
		return indexerrors.ApiKeyNotFound
	}

	contentParts := []map[string]interface{}{
		{"type": "input_text", "text": userPrompt},
	}
	for _, url := range imageDataURLs {
		contentParts = append(contentParts, map[string]interface{}{
			"type":      "input_image",
			"image_url": url,
		})
	}

	body := map[string]interface{}{
		"model": c.modelFor(schemaName),
		"input": []map[string]interface{}{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": contentParts},
		},
		"text": map[string]interface{}{
			"format": map[string]interface{}{
				"type":   "json_schema",
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		},
	}
	if !c.isNoTempModel(c.model) {
		body["temperature"] = 0.2
	}

	raw, err := c.doWithRetry(ctx, "POST", "/responses", body)
	if err != nil {
		if isUnsupportedTemperatureError(err) {
			c.noteNoTempModel(c.model)
			delete(body, "temperature")
			raw, err = c.doWithRetry(ctx, "POST", "/responses", body)
		}
		if err != nil {
			return err
		}
	}

	text, err := extractOutputText(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), target); err != nil {
		return fmt.Errorf("%w: %v", indexerrors.InvalidResponse, err)
	}
	return nil
}

func (c *Client) modelFor(schemaName string) string {
	return c.model
}

func (c *Client) isNoTempModel(model string) bool {
	c.noTempMu.Lock()
	defer c.noTempMu.Unlock()
	const ttl = 24 * time.Hour
	t, ok := c.noTempSet[model]
	return ok && time.Since(t) < ttl
}

func (c *Client) noteNoTempModel(model string) {
	c.noTempMu.Lock()
	defer c.noTempMu.Unlock()
	c.noTempSet[model] = time.Now()
}

func isUnsupportedTemperatureError(err error) bool {
	apiErr, ok := err.(*indexerrors.ApiError)
	return ok && strings.Contains(strings.ToLower(apiErr.Message), "temperature")
}

func extractOutputText(raw []byte) (string, error) {
	var parsed struct {
		Output []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", indexerrors.InvalidResponse
	}
	for _, o := range parsed.Output {
		for _, c := range o.Content {
			if c.Text != "" {
				return c.Text, nil
			}
		}
	}
	return "", indexerrors.InvalidResponse
}

// doWithRetry implements the teacher's retry/backoff loop over retryable
// HTTP codes {429, 500, 503} with jittered exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDuration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &indexerrors.NetworkError{Err: err}
			continue
		}
		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &indexerrors.NetworkError{Err: readErr}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return raw, nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = indexerrors.RateLimitExceeded
			continue
		}
		if isRetryableStatus(resp.StatusCode) {
			lastErr = &indexerrors.ApiError{Status: resp.StatusCode, Message: string(raw)}
			continue
		}
		return nil, &indexerrors.ApiError{Status: resp.StatusCode, Message: string(raw)}
	}
	return nil, lastErr
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

func backoffDuration(attempt int) time.Duration {
	base := math.Pow(2, float64(attempt))
	jitter := 0.5 + 0.5*pseudoRandom(attempt)
	return time.Duration(base*jitter*float64(time.Second)) / 2
}

// pseudoRandom avoids importing math/rand for a single jitter factor;
// deterministic enough for backoff spreading without a seed dependency.
func pseudoRandom(seed int) float64 {
	v := (seed*2654435761 + 1) % 1000
	if v < 0 {
		v = -v
	}
	return float64(v) / 1000.0
}
