package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wallet-monitor/internal/config"
	"wallet-monitor/internal/metrics"
	"wallet-monitor/internal/retry"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client speaks GraphQL to the upstream streaming indexer with rate
// limiting, retries, and structured logging.
type Client struct {
	Endpoint    string
	MinAmount   float64
	QueryLimit  int
	RateLimiter *rate.Limiter
	Policy      retry.Policy
	Logger      *zerolog.Logger
	Metrics     *metrics.MonitorMetrics
	HTTPClient  *http.Client
}

// CustomTransport adds bearer-token authentication to HTTP requests
type CustomTransport struct {
	Base   http.RoundTripper
	ApiKey string
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if t.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ApiKey)
	}
	return t.Base.RoundTrip(req)
}

// NewClient creates an indexer client from configuration.
func NewClient(cfg config.IndexerConfig, httpTimeout time.Duration, logger *zerolog.Logger) *Client {
	limit := cfg.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return &Client{
		Endpoint:    cfg.Endpoint,
		MinAmount:   cfg.MinAmount,
		QueryLimit:  limit,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		Policy:      retry.Default(),
		Logger:      logger,
		HTTPClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &CustomTransport{
				Base:   http.DefaultTransport,
				ApiKey: cfg.APIKey,
			},
		},
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// query executes one GraphQL request and decodes the data payload into out.
// A non-2xx status or an errors payload is an explicit failure, never a
// partial success.
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	c.Logger.Debug().
		Str("endpoint", c.Endpoint).
		Interface("variables", variables).
		Msg("Making indexer query")

	if err := c.RateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %v", err)
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %v", err)
	}

	var response graphQLResponse
	err = retry.Do(ctx, c.Policy, func(ctx context.Context) error {
		// Decoding leaves absent fields untouched, so a stale errors payload
		// from a previous attempt would mask a clean retry.
		response = graphQLResponse{}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := c.HTTPClient.Do(req)
		if c.Metrics != nil {
			c.Metrics.UpstreamLatency.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return err
		}
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, resp.Status)
		}

		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}

		if len(response.Errors) > 0 {
			msgs := make([]string, 0, len(response.Errors))
			for _, e := range response.Errors {
				msgs = append(msgs, e.Message)
			}
			return fmt.Errorf("indexer error: %s", strings.Join(msgs, "; "))
		}
		return nil
	})
	if err != nil {
		c.Logger.Error().
			Err(err).
			Str("endpoint", c.Endpoint).
			Msg("Indexer query failed")
		return err
	}

	if err := json.Unmarshal(response.Data, out); err != nil {
		return fmt.Errorf("failed to decode data payload: %v", err)
	}
	return nil
}

// Close closes idle HTTP connections.
func (c *Client) Close() {
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}
