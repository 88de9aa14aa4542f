package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/envutil"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// Client calls an OpenAI-compatible /v1/embeddings endpoint. A nil *Client
// is the supported "no provider configured" state; callers detect it with
// Available and fall back as they see fit.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// NewFromEnv returns (nil, nil) when no provider is configured, which is a
// valid mode rather than an error.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("embedder: logger required")
	}
	baseURL := envutil.String("EMBEDDING_BASE_URL", "")
	if baseURL == "" {
		return nil, nil
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := envutil.Int("EMBEDDING_TIMEOUT_SECONDS", 30)

	return &Client{
		log:        log.With("client", "Embedder"),
		baseURL:    baseURL,
		apiKey:     envutil.String("EMBEDDING_API_KEY", ""),
		model:      envutil.String("EMBEDDING_MODEL", "text-embedding-3-small"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: envutil.Int("EMBEDDING_MAX_RETRIES", 2),
	}, nil
}

func (c *Client) Available() bool { return c != nil }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns one vector per input, in input order. Blank inputs are
// normalized to a single space so the upstream accepts them.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c == nil {
		return nil, fmt.Errorf("embedder: provider not configured")
	}
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, embeddingsRequest{Model: c.model, Input: clean}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(clean) {
		return nil, fmt.Errorf("embedder: requested %d embeddings, got %d", len(clean), len(resp.Data))
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = vec
		}
	}
	for i, vec := range out {
		if vec == nil {
			return nil, fmt.Errorf("embedder: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, reqBody embeddingsRequest, out *embeddingsResponse) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				err = readErr
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return json.Unmarshal(body, out)
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				err = fmt.Errorf("embedder: upstream status %d", resp.StatusCode)
			default:
				return fmt.Errorf("embedder: upstream status %d: %s", resp.StatusCode, truncate(string(body), 200))
			}
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		sleepFor := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		c.log.Warn("embedding request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
