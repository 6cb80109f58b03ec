package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-monitor/internal/balances"
	"wallet-monitor/internal/database"
	"wallet-monitor/internal/events"
	"wallet-monitor/internal/explorer"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/risk"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const testAPIKey = "test-secret"

type staticBalances struct{}

func (staticBalances) Balances(_ context.Context, _ models.Network, addresses []string) (map[string]models.BalanceSnapshot, error) {
	out := make(map[string]models.BalanceSnapshot)
	for _, a := range addresses {
		out[a] = models.BalanceSnapshot{
			Address:   a,
			Native:    models.Balance{Amount: decimal.NewFromInt(1), Currency: "ETH"},
			UpdatedAt: time.Now().UTC(),
		}
	}
	return out, nil
}

type usageRecord struct {
	endpoint string
	status   int
}

func newTestServer() (*Server, *[]usageRecord) {
	lg := zerolog.New(nil)

	var usageLog []usageRecord
	auth := &Authenticator{
		Logger: &lg,
		LookupKey: func(hash string) (*database.APIKey, error) {
			if hash == HashKey(testAPIKey) {
				return &database.APIKey{ID: "key-1", Name: "test", RateLimit: 100, Active: true}, nil
			}
			return nil, database.ErrNotFound
		},
		LogUsage: func(_, endpoint string, status int) error {
			usageLog = append(usageLog, usageRecord{endpoint, status})
			return nil
		},
	}

	analyzer := &risk.Analyzer{
		Explorers:    map[models.Network]explorer.Client{},
		Logger:       &lg,
		Now:          time.Now,
		IsSanctioned: func(string) (bool, error) { return false, nil },
		SaveRating:   func(models.RiskRating) error { return nil },
		CachedRating: func(address string) (*models.RiskRating, error) {
			return &models.RiskRating{WalletAddress: address, RiskScore: 2, RiskLevel: models.RiskLow}, nil
		},
	}

	tracker := balances.NewTracker(staticBalances{}, time.Minute, &lg, nil)

	s := &Server{
		Auth:     auth,
		Analyzer: analyzer,
		Tracker:  tracker,
		Logger:   &lg,
		ListTracked: func(models.Network) ([]models.TrackedWallet, error) {
			return []models.TrackedWallet{{Address: "0xabcdef0123456789abcdef0123456789abcdef01", Network: models.Ethereum}}, nil
		},
		RecentStablecoin: func(limit int) ([]models.StablecoinTransfer, error) {
			out := make([]models.StablecoinTransfer, 0, limit)
			for i := 0; i < limit && i < 5; i++ {
				out = append(out, models.StablecoinTransfer{TokenSymbol: "USDT", Network: models.Ethereum})
			}
			return out, nil
		},
		TrackWallet: func(address, name string, network models.Network) (*models.TrackedWallet, error) {
			return &models.TrackedWallet{Address: address, Name: name, Network: network}, nil
		},
		UntrackWallet: func(string, models.Network) error { return nil },
		RecentTransfers: func(limit int, whaleOnly bool) ([]models.Transfer, error) {
			t := models.Transfer{TxHash: "0xaaa", IsWhale: true, Network: models.Ethereum}
			if whaleOnly {
				return []models.Transfer{t}, nil
			}
			return []models.Transfer{t, {TxHash: "0xbbb", Network: models.Ethereum}}, nil
		},
	}
	return s, &usageLog
}

func doRequest(s *Server, method, path, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("malformed response body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestGatewayMissingKey(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/analyze-wallet", "", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Success || resp.Error == "" {
		t.Errorf("expected error envelope, got %+v", resp)
	}
}

func TestGatewayInvalidKey(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/analyze-wallet", "wrong-key", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGatewayMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodGet, "/api/analyze-wallet", testAPIKey, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAnalyzeWalletHappyPath(t *testing.T) {
	s, usageLog := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/analyze-wallet", testAPIKey,
		`{"address": "0xabcdef0123456789abcdef0123456789abcdef01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("expected success envelope")
	}
	if resp.Usage == nil {
		t.Errorf("expected usage block in response")
	}
	if len(*usageLog) != 1 || (*usageLog)[0].status != http.StatusOK {
		t.Errorf("expected one usage record with status 200, got %+v", *usageLog)
	}
}

func TestAnalyzeWalletBadAddress(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/analyze-wallet", testAPIKey, `{"address": "not-an-address"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeWalletUnknownNetwork(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/analyze-wallet", testAPIKey,
		`{"address": "0xabcdef0123456789abcdef0123456789abcdef01", "network": "dogecoin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown network, got %d", rec.Code)
	}
}

func TestAnalyzeWalletDefaultsToEthereum(t *testing.T) {
	network, ok := resolveNetwork("")
	if !ok || network != models.Ethereum {
		t.Errorf("absent network must resolve to eth, got %s/%v", network, ok)
	}
	if _, ok := resolveNetwork("dogecoin"); ok {
		t.Error("unknown network must not resolve")
	}
}

func TestWalletBalancesExplicitAddresses(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/wallet-balances", testAPIKey,
		`{"addresses": ["0xABCDEF0123456789abcdef0123456789ABCDEF01"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	data, _ := json.Marshal(resp.Data)
	var snaps map[string]models.BalanceSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		t.Fatalf("unexpected data shape: %v", err)
	}
	if _, ok := snaps["0xabcdef0123456789abcdef0123456789abcdef01"]; !ok {
		t.Errorf("expected snapshot keyed by normalized address, got %v", snaps)
	}
}

func TestWalletBalancesFallsBackToTracked(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/wallet-balances", testAPIKey, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWalletBalancesListTrackedFailure(t *testing.T) {
	s, _ := newTestServer()
	s.ListTracked = func(models.Network) ([]models.TrackedWallet, error) {
		return nil, errors.New("db down")
	}
	rec := doRequest(s, http.MethodPost, "/api/wallet-balances", testAPIKey, `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestStablecoinTransfersLimitClamped(t *testing.T) {
	s, _ := newTestServer()

	var gotLimit int
	s.RecentStablecoin = func(limit int) ([]models.StablecoinTransfer, error) {
		gotLimit = limit
		return nil, nil
	}

	rec := doRequest(s, http.MethodPost, "/api/stablecoin-transfers", testAPIKey, `{"limit": 5000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 100 {
		t.Errorf("expected limit clamped to 100, got %d", gotLimit)
	}

	doRequest(s, http.MethodPost, "/api/stablecoin-transfers", testAPIKey, `{"limit": 10}`)
	if gotLimit != 10 {
		t.Errorf("expected limit 10 passed through, got %d", gotLimit)
	}
}

func TestTrackWalletNormalizesAddress(t *testing.T) {
	s, _ := newTestServer()

	var tracked string
	s.TrackWallet = func(address, _ string, _ models.Network) (*models.TrackedWallet, error) {
		tracked = address
		return &models.TrackedWallet{Address: address}, nil
	}

	rec := doRequest(s, http.MethodPost, "/api/track-wallet", testAPIKey,
		`{"address": "0xABCDEF0123456789abcdef0123456789ABCDEF01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if tracked != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("address not normalized before store: %s", tracked)
	}
}

func TestTrackWalletBadAddress(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/track-wallet", testAPIKey, `{"address": "nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUntrackWallet(t *testing.T) {
	s, _ := newTestServer()

	var removed string
	s.UntrackWallet = func(address string, _ models.Network) error {
		removed = address
		return nil
	}

	rec := doRequest(s, http.MethodPost, "/api/untrack-wallet", testAPIKey,
		`{"address": "0xabcdef0123456789abcdef0123456789abcdef01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if removed != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("unexpected removed address %s", removed)
	}
}

func TestTransfersWhaleFilter(t *testing.T) {
	s, _ := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/transfers", testAPIKey, `{"whale_only": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data, _ := json.Marshal(resp.Data)
	var transfers []models.Transfer
	if err := json.Unmarshal(data, &transfers); err != nil {
		t.Fatalf("unexpected data shape: %v", err)
	}
	if len(transfers) != 1 || !transfers[0].IsWhale {
		t.Errorf("expected only whale transfers, got %+v", transfers)
	}

	rec = doRequest(s, http.MethodPost, "/api/transfers", testAPIKey, `{}`)
	resp = decodeResponse(t, rec)
	data, _ = json.Marshal(resp.Data)
	transfers = nil
	if err := json.Unmarshal(data, &transfers); err != nil {
		t.Fatalf("unexpected data shape: %v", err)
	}
	if len(transfers) != 2 {
		t.Errorf("expected unfiltered feed, got %+v", transfers)
	}
}

func TestGatewayInvalidJSONBody(t *testing.T) {
	s, _ := newTestServer()
	rec := doRequest(s, http.MethodPost, "/api/stablecoin-transfers", testAPIKey, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWhaleFeedStreamsEvents(t *testing.T) {
	s, _ := newTestServer()
	bus := events.NewBus()
	defer bus.Close()
	s.Bus = bus

	server := httptest.NewServer(s.Routes())
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/whale-feed", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("x-api-key", testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", got)
	}

	// Subscription registration races the response headers; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(models.Transfer{TxHash: "0xwhale", IsWhale: true, Network: models.Ethereum})

	reader := bufio.NewReader(resp.Body)
	lineCh := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lineCh <- line
				return
			}
		}
	}()

	select {
	case line := <-lineCh:
		if !strings.Contains(line, "0xwhale") {
			t.Errorf("unexpected event payload %q", line)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("whale event never arrived on the feed")
	}
}

func TestWhaleFeedRequiresKey(t *testing.T) {
	s, _ := newTestServer()
	s.Bus = events.NewBus()
	defer s.Bus.Close()

	rec := doRequest(s, http.MethodGet, "/api/whale-feed", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestChargeWithoutRedisFailsOpen(t *testing.T) {
	lg := zerolog.New(nil)
	a := &Authenticator{Logger: &lg}

	key := &database.APIKey{ID: "key-1", RateLimit: 42}
	usage, limited := a.charge(context.Background(), key)
	if limited {
		t.Fatal("missing counter backend must not block requests")
	}
	if usage.RequestsRemaining != 42 {
		t.Errorf("expected full quota, got %d", usage.RequestsRemaining)
	}
	if usage.RateLimitReset <= 0 {
		t.Errorf("expected a reset timestamp, got %d", usage.RateLimitReset)
	}
}

func TestHashKeyStable(t *testing.T) {
	if HashKey("abc") != HashKey("abc") {
		t.Error("hash must be deterministic")
	}
	if HashKey("abc") == HashKey("abd") {
		t.Error("different keys must not collide trivially")
	}
	if len(HashKey("abc")) != 64 {
		t.Errorf("expected sha256 hex length 64, got %d", len(HashKey("abc")))
	}
}
