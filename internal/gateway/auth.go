package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wallet-monitor/internal/database"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// rateWindow is the fixed rate-limit accounting window.
const rateWindow = time.Minute

// Usage is the per-key quota state echoed in every response envelope.
type Usage struct {
	RequestsRemaining int   `json:"requests_remaining"`
	RateLimitReset    int64 `json:"rate_limit_reset"`
}

// Authenticator validates the x-api-key header against the key store and
// enforces per-key rate limits with a fixed-window counter in redis.
type Authenticator struct {
	Redis  *redis.Client
	Logger *zerolog.Logger

	// Store seams, overridable in tests.
	LookupKey func(hash string) (*database.APIKey, error)
	LogUsage  func(apiKeyID, endpoint string, statusCode int) error
}

func NewAuthenticator(rdb *redis.Client, logger *zerolog.Logger) *Authenticator {
	return &Authenticator{
		Redis:     rdb,
		Logger:    logger,
		LookupKey: database.GetAPIKeyByHash,
		LogUsage:  database.LogAPIUsage,
	}
}

func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves the request's API key and charges one request
// against its window. On failure it returns the HTTP status to respond with
// (401 or 429) and a client-safe message.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*database.APIKey, *Usage, int, string) {
	raw := r.Header.Get("x-api-key")
	if raw == "" {
		return nil, nil, http.StatusUnauthorized, "missing API key"
	}

	key, err := a.LookupKey(HashKey(raw))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, http.StatusUnauthorized, "invalid API key"
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("API key lookup failed")
		return nil, nil, http.StatusInternalServerError, "internal error"
	}

	usage, limited := a.charge(ctx, key)
	if limited {
		return key, usage, http.StatusTooManyRequests, "rate limit exceeded"
	}
	return key, usage, http.StatusOK, ""
}

// charge increments the key's window counter. If redis is unavailable the
// request is allowed; quota accounting degrades rather than blocking the
// API.
func (a *Authenticator) charge(ctx context.Context, key *database.APIKey) (*Usage, bool) {
	window := time.Now().UTC().Truncate(rateWindow)
	reset := window.Add(rateWindow).Unix()

	if a.Redis == nil {
		return &Usage{RequestsRemaining: key.RateLimit, RateLimitReset: reset}, false
	}

	redisKey := fmt.Sprintf("apikey:%s:%d", key.ID, window.Unix())
	count, err := a.Redis.Incr(ctx, redisKey).Result()
	if err != nil {
		a.Logger.Error().Err(err).Msg("Rate limit counter unavailable, allowing request")
		return &Usage{RequestsRemaining: key.RateLimit, RateLimitReset: reset}, false
	}
	if count == 1 {
		a.Redis.Expire(ctx, redisKey, rateWindow)
	}

	remaining := key.RateLimit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	usage := &Usage{RequestsRemaining: remaining, RateLimitReset: reset}
	return usage, int(count) > key.RateLimit
}
