package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/dativo-io/veil/internal/entity"
)

// DefaultRemoteThreshold is the minimum score accepted from the remote
// analyzer. Probabilistic recognition produces more false positives than the
// pattern catalogue, so remote candidates below this are dropped.
const DefaultRemoteThreshold = 0.65

// aliasCategories maps analyzer-native entity names onto the resume
// enumeration. Entities with no mapping and no direct category match are
// ignored.
var aliasCategories = map[string]entity.Category{
	"PERSON": entity.PersonName,
	"NRP":    entity.PersonName,
}

// RemoteStrategy sends text to an external NLP analyzer service and adapts
// its results to the Candidate contract. The service receives the document
// text and the selected categories, and must return entities with character
// offsets into the same text.
type RemoteStrategy struct {
	url        string
	client     *http.Client
	limiter    *rate.Limiter
	threshold  float64
	categories []entity.Category
}

// RemoteOption configures a RemoteStrategy.
type RemoteOption func(*RemoteStrategy)

// WithThreshold overrides the remote score threshold.
func WithThreshold(t float64) RemoteOption {
	return func(r *RemoteStrategy) { r.threshold = t }
}

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteStrategy) { r.client = c }
}

// WithRateLimit bounds requests per second to the analyzer.
func WithRateLimit(rps float64) RemoteOption {
	return func(r *RemoteStrategy) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewRemoteStrategy creates a remote analyzer strategy for the given endpoint
// and selected categories.
func NewRemoteStrategy(url string, selected []entity.Category, opts ...RemoteOption) *RemoteStrategy {
	r := &RemoteStrategy{
		url:        url,
		client:     &http.Client{Timeout: 30 * time.Second},
		threshold:  DefaultRemoteThreshold,
		categories: selected,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type analyzeRequest struct {
	Text       string   `json:"text"`
	Language   string   `json:"language"`
	Categories []string `json:"categories,omitempty"`
}

type analyzeEntity struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

type analyzeResponse struct {
	Entities []analyzeEntity `json:"entities"`
}

// Scan posts text to the analyzer and converts its entities to candidates.
// Entities below the threshold, outside the text bounds, or of categories the
// engine does not know are dropped.
func (r *RemoteStrategy) Scan(ctx context.Context, text string) ([]entity.Candidate, error) {
	ctx, span := tracer.Start(ctx, "scanner.remote")
	defer span.End()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for analyzer rate limit: %w", err)
		}
	}

	req := analyzeRequest{Text: text, Language: "en"}
	for _, c := range r.categories {
		req.Categories = append(req.Categories, string(c))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding analyzer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building analyzer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, msg)
	}

	var ar analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decoding analyzer response: %w", err)
	}

	var out []entity.Candidate
	for _, e := range ar.Entities {
		if e.Score < r.threshold {
			continue
		}
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			continue
		}
		cat, ok := aliasCategories[e.EntityType]
		if !ok {
			cat = entity.Category(e.EntityType)
			if !cat.Valid() {
				continue
			}
		}
		c := entity.Candidate{
			Category: cat,
			Start:    e.Start,
			End:      e.End,
			Score:    e.Score,
			Text:     text[e.Start:e.End],
		}
		if alreadyRedacted(c) {
			continue
		}
		out = append(out, c)
	}

	span.SetAttributes(
		attribute.Int("scan.remote_entities", len(ar.Entities)),
		attribute.Int("scan.candidates", len(out)),
	)
	return out, nil
}
