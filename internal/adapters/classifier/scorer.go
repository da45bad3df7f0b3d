package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/target/modpipe/internal/domain/moderation"
)

// ErrScorerUnavailable marks classifier failures that exhausted retries. The
// pipeline treats it as transient and fails the job for redelivery instead of
// writing a verdict.
var ErrScorerUnavailable = errors.New("scorer unavailable")

// ScorerConfig captures the connection settings for the scoring service.
type ScorerConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	UserAgent  string
	Client     *http.Client
}

// ScorerClient calls the ML scoring service over HTTP.
type ScorerClient struct {
	baseURL    string
	retryLimit int
	userAgent  string
	client     *http.Client
}

// NewScorerClient builds a scorer client. Callers should pass a validated
// config.
func NewScorerClient(cfg ScorerConfig) (*ScorerClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scorer base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "modpipe/1.0"
	}

	return &ScorerClient{
		baseURL:    baseURL,
		retryLimit: retries,
		userAgent:  userAgent,
		client:     hc,
	}, nil
}

type scoreRequest struct {
	Text           string `json:"text"`
	NormalizedText string `json:"normalized_text"`
}

type scoreResponse struct {
	Labels []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"labels"`
	Severity   int     `json:"severity"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Score submits both text versions to the scoring service and maps the
// response onto the taxonomy. Transient transport failures and 5xx answers
// are retried with fibonacci backoff; whatever survives the retries comes
// back wrapped in ErrScorerUnavailable.
func (s *ScorerClient) Score(ctx context.Context, raw, normalized string) (moderation.Classification, error) {
	body, err := json.Marshal(scoreRequest{Text: raw, NormalizedText: normalized})
	if err != nil {
		return moderation.Classification{}, fmt.Errorf("encode score request: %w", err)
	}

	var resp scoreResponse
	backoff := retry.NewFibonacci(200 * time.Millisecond)
	err = retry.Do(ctx, retry.WithMaxRetries(uint64(s.retryLimit), backoff), func(ctx context.Context) error {
		return s.post(ctx, body, &resp)
	})
	if err != nil {
		return moderation.Classification{}, fmt.Errorf("%w: %w", ErrScorerUnavailable, err)
	}

	return mapScoreResponse(resp)
}

func (s *ScorerClient) post(ctx context.Context, body []byte, out *scoreResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("score request failed: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("scorer %s", resp.Status))
	default:
		return fmt.Errorf("scorer %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode score response: %w", err)
	}
	return nil
}

// mapScoreResponse validates the upstream payload against the fixed taxonomy
// so a misbehaving scorer can never push an unknown label into a verdict.
func mapScoreResponse(resp scoreResponse) (moderation.Classification, error) {
	c := moderation.Classification{
		Confidences:   make(map[moderation.Label]float64, len(resp.Labels)),
		Severity:      moderation.Severity(resp.Severity),
		Sentiment:     moderation.Sentiment(resp.Sentiment),
		RawConfidence: resp.Confidence,
	}

	for _, l := range resp.Labels {
		label, err := moderation.ParseLabel(l.Label)
		if err != nil {
			return moderation.Classification{}, fmt.Errorf("scorer response: %w", err)
		}
		if l.Confidence < 0 || l.Confidence > 1 {
			return moderation.Classification{}, fmt.Errorf("scorer response: confidence out of range for %s: %v", label, l.Confidence)
		}
		c.Labels = append(c.Labels, label)
		c.Confidences[label] = l.Confidence
	}

	if c.Sentiment == "" {
		c.Sentiment = moderation.DeriveSentiment(c.Labels)
	}

	if err := c.Validate(); err != nil {
		return moderation.Classification{}, fmt.Errorf("scorer response: %w", err)
	}
	return c, nil
}
