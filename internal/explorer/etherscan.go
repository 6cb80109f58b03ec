package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wallet-monitor/internal/config"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/retry"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// noTransactionsFound is the explorer's way of reporting a wallet with zero
// activity; it arrives as status "0" but is a valid empty success.
const noTransactionsFound = "No transactions found"

// etherscanClient talks to Etherscan-compatible explorer APIs. The API key
// travels in the querystring, and rate-limit signals can arrive in the
// response body with a 200 status, so both are classified as retryable.
type etherscanClient struct {
	network     models.Network
	baseURL     string
	apiKey      string
	rateLimiter *rate.Limiter
	policy      retry.Policy
	logger      *zerolog.Logger
	httpClient  *http.Client
}

func newEtherscanClient(network models.Network, cfg config.ExplorerConfig, httpTimeout time.Duration, logger *zerolog.Logger) *etherscanClient {
	return &etherscanClient{
		network:     network,
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		policy:      retry.Default(),
		logger:      logger,
		httpClient:  &http.Client{Timeout: httpTimeout},
	}
}

func (c *etherscanClient) Network() models.Network {
	return c.network
}

type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanTx struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	IsError     string `json:"isError"`
}

func isRateLimitMessage(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") || strings.Contains(s, "max calls")
}

// call performs one GET under the retry policy and returns the decoded
// envelope. Rate-limit text embedded in a 200 body is retried the same as an
// HTTP failure.
func (c *etherscanClient) call(ctx context.Context, params url.Values) (*etherscanEnvelope, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %v", err)
	}

	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	endpoint := c.baseURL + "?" + params.Encode()

	var envelope etherscanEnvelope
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, resp.Status)
		}

		envelope = etherscanEnvelope{}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}

		if envelope.Status == "0" && envelope.Message != noTransactionsFound {
			var resultText string
			_ = json.Unmarshal(envelope.Result, &resultText)
			if isRateLimitMessage(envelope.Message) || isRateLimitMessage(resultText) {
				return fmt.Errorf("explorer rate limited: %s", envelope.Message)
			}
			return fmt.Errorf("explorer error: %s", envelope.Message)
		}
		return nil
	})
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("network", c.network.String()).
			Str("action", params.Get("action")).
			Msg("Explorer call failed")
		return nil, err
	}

	return &envelope, nil
}

func (c *etherscanClient) ListTransactions(ctx context.Context, address string, opts ListOptions) ([]models.WalletTransaction, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("sort", "desc")
	if opts.EndBlock > 0 {
		params.Set("startblock", strconv.FormatUint(opts.StartBlock, 10))
		params.Set("endblock", strconv.FormatUint(opts.EndBlock, 10))
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
		params.Set("offset", strconv.Itoa(opts.PageSize))
	}

	envelope, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	if envelope.Status == "0" && envelope.Message == noTransactionsFound {
		return []models.WalletTransaction{}, nil
	}

	var raw []etherscanTx
	if err := json.Unmarshal(envelope.Result, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode transaction list: %v", err)
	}

	txs := make([]models.WalletTransaction, 0, len(raw))
	for _, tx := range raw {
		if tx.Hash == "" {
			c.logger.Warn().
				Str("network", c.network.String()).
				Msg("Skipping transaction with missing hash")
			continue
		}

		unix, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
		if err != nil {
			c.logger.Warn().
				Str("hash", tx.Hash).
				Str("timeStamp", tx.TimeStamp).
				Msg("Skipping transaction with malformed timestamp")
			continue
		}

		wei, err := decimal.NewFromString(tx.Value)
		if err != nil {
			wei = decimal.Zero
		}
		blockNumber, _ := strconv.ParseUint(tx.BlockNumber, 10, 64)

		txs = append(txs, models.WalletTransaction{
			Hash:        tx.Hash,
			Timestamp:   time.Unix(unix, 0).UTC(),
			BlockNumber: blockNumber,
			From:        strings.ToLower(tx.From),
			To:          strings.ToLower(tx.To),
			Value:       wei.Shift(-18),
			Failed:      tx.IsError == "1",
			Network:     c.network,
		})
	}
	return txs, nil
}

func (c *etherscanClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", address)
	params.Set("tag", "latest")

	envelope, err := c.call(ctx, params)
	if err != nil {
		return decimal.Zero, err
	}

	var weiStr string
	if err := json.Unmarshal(envelope.Result, &weiStr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode balance: %v", err)
	}

	wei, err := decimal.NewFromString(weiStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed balance %q: %v", weiStr, err)
	}
	return wei.Shift(-18), nil
}
