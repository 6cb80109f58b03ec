package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-monitor/internal/config"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/retry"

	"github.com/rs/zerolog"
)

func newTestXRP(t *testing.T, handler http.HandlerFunc) *xrpClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	lg := zerolog.New(nil)
	c := newXRPClient(models.XRP, config.ExplorerConfig{
		BaseURL:   server.URL,
		RateLimit: 1000,
	}, 5*time.Second, &lg)
	c.policy = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return c
}

func TestXRPGetBalance(t *testing.T) {
	c := newTestXRP(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"account": "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH", "balance": "50000000"}`))
	})

	balance, err := c.GetBalance(context.Background(), "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.String() != "50" {
		t.Errorf("expected 50 XRP from 50000000 drops, got %s", balance)
	}
}

func TestXRPListTransactions(t *testing.T) {
	c := newTestXRP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"transactions": [
				{
					"hash": "ABC123",
					"date": "2026-01-15T12:00:00Z",
					"ledger_index": 85000000,
					"tx": {"Account": "rSender", "Destination": "rReceiver", "Amount": "25000000"},
					"meta": {"TransactionResult": "tesSUCCESS"}
				},
				{
					"hash": "DEF456",
					"date": "2026-01-15T11:00:00Z",
					"ledger_index": 84999990,
					"tx": {"Account": "rSender", "Destination": "rOther", "Amount": "1000000"},
					"meta": {"TransactionResult": "tecUNFUNDED_PAYMENT"}
				},
				{
					"hash": "GHI789",
					"date": "2026-01-15T10:00:00Z",
					"ledger_index": 84999980,
					"tx": {"Account": "rSender", "Destination": "rOther", "Amount": {"currency": "USD", "issuer": "rIssuer", "value": "10"}},
					"meta": {"TransactionResult": "tesSUCCESS"}
				}
			]
		}`))
	})

	txs, err := c.ListTransactions(context.Background(), "rSender", ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[0].Value.String() != "25" {
		t.Errorf("expected 25 XRP, got %s", txs[0].Value)
	}
	if txs[0].Failed {
		t.Errorf("tesSUCCESS must not be failed")
	}
	if !txs[1].Failed {
		t.Errorf("tecUNFUNDED_PAYMENT must be failed")
	}
	if !txs[2].Value.IsZero() {
		t.Errorf("issued-currency amount should carry zero XRP value, got %s", txs[2].Value)
	}
	if txs[0].BlockNumber != 85000000 {
		t.Errorf("expected ledger index 85000000, got %d", txs[0].BlockNumber)
	}
}

func TestXRPMalformedDateSkipped(t *testing.T) {
	c := newTestXRP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"transactions": [
				{"hash": "BAD", "date": "yesterday", "ledger_index": 1, "tx": {"Account": "a", "Destination": "b", "Amount": "1"}, "meta": {"TransactionResult": "tesSUCCESS"}},
				{"hash": "GOOD", "date": "2026-01-15T12:00:00Z", "ledger_index": 2, "tx": {"Account": "a", "Destination": "b", "Amount": "1"}, "meta": {"TransactionResult": "tesSUCCESS"}}
			]
		}`))
	})

	txs, err := c.ListTransactions(context.Background(), "rSender", ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 || txs[0].Hash != "GOOD" {
		t.Fatalf("expected only the well-formed transaction, got %+v", txs)
	}
}

func TestDropsConversions(t *testing.T) {
	if got := DropsToXRP(1_500_000).String(); got != "1.5" {
		t.Errorf("DropsToXRP(1500000) = %s, want 1.5", got)
	}
	if got := DropsToXRP(1).String(); got != "0.000001" {
		t.Errorf("DropsToXRP(1) = %s, want 0.000001", got)
	}

	drops, err := xrpToDrops("50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drops != 50_000_000 {
		t.Errorf("xrpToDrops(50) = %d, want 50000000", drops)
	}
	if _, err := xrpToDrops("not-xrp"); err == nil {
		t.Error("expected error for malformed amount")
	}

	if got := FormatXRP(DropsToXRP(50_000_000)); got != "50.000000" {
		t.Errorf("FormatXRP = %s, want 50.000000", got)
	}
}

func TestNewClientDispatch(t *testing.T) {
	lg := zerolog.New(nil)
	cfg := config.ExplorerConfig{BaseURL: "http://localhost", RateLimit: 1}

	evm, err := NewClient(models.Ethereum, cfg, time.Second, &lg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := evm.(*etherscanClient); !ok {
		t.Errorf("expected etherscan client for eth, got %T", evm)
	}

	xrp, err := NewClient(models.XRP, cfg, time.Second, &lg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := xrp.(*xrpClient); !ok {
		t.Errorf("expected xrp client, got %T", xrp)
	}

	if _, err := NewClient(models.Network("unknown"), cfg, time.Second, &lg); err == nil {
		t.Error("expected error for unknown network")
	}
}
