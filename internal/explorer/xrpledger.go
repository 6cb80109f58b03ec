package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"wallet-monitor/internal/config"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/retry"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// dropsPerXRP is the ledger's base-unit scale: 1 XRP = 1e6 drops.
const dropsPerXRP = 1_000_000

// txResultSuccess is the only meta result that counts as a successful
// transaction on the XRP ledger.
const txResultSuccess = "tesSUCCESS"

// xrpClient talks to the XRP ledger explorer API, which has a completely
// different shape from the Etherscan-style envelope.
type xrpClient struct {
	network     models.Network
	baseURL     string
	apiKey      string
	rateLimiter *rate.Limiter
	policy      retry.Policy
	logger      *zerolog.Logger
	httpClient  *http.Client
}

func newXRPClient(network models.Network, cfg config.ExplorerConfig, httpTimeout time.Duration, logger *zerolog.Logger) *xrpClient {
	return &xrpClient{
		network:     network,
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		policy:      retry.Default(),
		logger:      logger,
		httpClient:  &http.Client{Timeout: httpTimeout},
	}
}

func (c *xrpClient) Network() models.Network {
	return c.network
}

type xrpAccountInfo struct {
	Account string `json:"account"`
	// Balance is reported in drops.
	Balance string `json:"balance"`
}

type xrpTransaction struct {
	Hash        string `json:"hash"`
	Date        string `json:"date"`
	LedgerIndex uint64 `json:"ledger_index"`
	Tx          struct {
		Account     string `json:"Account"`
		Destination string `json:"Destination"`
		// Amount is a drops string for XRP payments; issued-currency
		// payments arrive as an object and are skipped.
		Amount json.RawMessage `json:"Amount"`
	} `json:"tx"`
	Meta struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}

type xrpTransactionList struct {
	Transactions []xrpTransaction `json:"transactions"`
}

func (c *xrpClient) get(ctx context.Context, path string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %v", err)
	}

	endpoint := c.baseURL + path

	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
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

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("path", path).
			Msg("XRP ledger call failed")
	}
	return err
}

func (c *xrpClient) ListTransactions(ctx context.Context, address string, opts ListOptions) ([]models.WalletTransaction, error) {
	var list xrpTransactionList
	if err := c.get(ctx, "/account/"+address+"/transactions", &list); err != nil {
		return nil, err
	}

	txs := make([]models.WalletTransaction, 0, len(list.Transactions))
	for _, raw := range list.Transactions {
		if raw.Hash == "" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, raw.Date)
		if err != nil {
			c.logger.Warn().
				Str("hash", raw.Hash).
				Str("date", raw.Date).
				Msg("Skipping transaction with malformed date")
			continue
		}

		var dropsStr string
		amount := decimal.Zero
		if err := json.Unmarshal(raw.Tx.Amount, &dropsStr); err == nil {
			drops, err := strconv.ParseInt(dropsStr, 10, 64)
			if err != nil {
				c.logger.Warn().
					Str("hash", raw.Hash).
					Str("amount", dropsStr).
					Msg("Skipping transaction with malformed drops amount")
				continue
			}
			amount = DropsToXRP(drops)
		}

		txs = append(txs, models.WalletTransaction{
			Hash:        raw.Hash,
			Timestamp:   ts,
			BlockNumber: raw.LedgerIndex,
			From:        raw.Tx.Account,
			To:          raw.Tx.Destination,
			Value:       amount,
			Failed:      raw.Meta.TransactionResult != txResultSuccess,
			Network:     c.network,
		})
	}
	return txs, nil
}

func (c *xrpClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var info xrpAccountInfo
	if err := c.get(ctx, "/account/"+address, &info); err != nil {
		return decimal.Zero, err
	}

	drops, err := strconv.ParseInt(info.Balance, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed drops balance %q: %v", info.Balance, err)
	}

	balance := DropsToXRP(drops)
	c.logger.Debug().
		Str("address", address).
		Str("balance", FormatXRP(balance)).
		Msg("Fetched XRP balance")
	return balance, nil
}

// DropsToXRP converts a drops amount to whole XRP.
func DropsToXRP(drops int64) decimal.Decimal {
	return decimal.NewFromInt(drops).Shift(-6)
}

// xrpToDrops converts a whole-XRP amount string to drops.
func xrpToDrops(xrp string) (int64, error) {
	d, err := decimal.NewFromString(xrp)
	if err != nil {
		return 0, fmt.Errorf("malformed XRP amount %q: %v", xrp, err)
	}
	return d.Shift(6).IntPart(), nil
}

// FormatXRP renders an XRP amount with the ledger's six decimal places.
func FormatXRP(xrp decimal.Decimal) string {
	return xrp.StringFixed(6)
}
