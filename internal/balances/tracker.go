package balances

import (
	"context"
	"errors"
	"sync"
	"time"

	"wallet-monitor/internal/health"
	"wallet-monitor/internal/metrics"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceSource is the slice of the indexer client the tracker needs.
type BalanceSource interface {
	Balances(ctx context.Context, network models.Network, addresses []string) (map[string]models.BalanceSnapshot, error)
}

// Listener is invoked with the full balance set after every completed
// refresh.
type Listener func(map[string]models.BalanceSnapshot)

// Tracker periodically refreshes balances for a set of tracked wallets and
// notifies subscribed listeners. A failed fetch retains last-known-good
// balances; a wallet only reads as zero when it has never been fetched.
type Tracker struct {
	Source   BalanceSource
	Interval time.Duration
	Logger   *zerolog.Logger
	Metrics  *metrics.MonitorMetrics

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	known     map[string]models.BalanceSnapshot
	wallets   []string
	network   models.Network
	cancel    context.CancelFunc
	running   bool
}

func NewTracker(source BalanceSource, interval time.Duration, logger *zerolog.Logger, m *metrics.MonitorMetrics) *Tracker {
	return &Tracker{
		Source:    source,
		Interval:  interval,
		Logger:    logger,
		Metrics:   m,
		listeners: make(map[int]Listener),
		known:     make(map[string]models.BalanceSnapshot),
	}
}

// Subscribe registers a listener; the returned function removes it.
func (t *Tracker) Subscribe(fn Listener) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.listeners[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Start fetches once immediately, then refreshes every interval until Stop
// or ctx cancellation.
func (t *Tracker) Start(ctx context.Context, wallets []string, network models.Network) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return errors.New("balance tracker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.wallets = append([]string(nil), wallets...)
	t.network = network
	t.mu.Unlock()

	if t.Metrics != nil {
		t.Metrics.TrackedWalletsGauge.Set(float64(len(wallets)))
	}
	t.Logger.Info().
		Str("network", network.String()).
		Int("wallets", len(wallets)).
		Dur("interval", t.Interval).
		Msg("Starting balance tracking")

	t.refresh(runCtx)

	go func() {
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				t.Logger.Info().Msg("Balance tracker shutting down")
				return
			case <-ticker.C:
				if t.Metrics != nil {
					t.Metrics.PollTicks.WithLabelValues("balances").Inc()
				}
				t.refresh(runCtx)
				health.ReportTick("balances", true)
			}
		}
	}()

	return nil
}

// Stop cancels the refresh loop and drops all listener registrations.
// Results of requests in flight at this moment are discarded, not applied.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	t.cancel()
	t.listeners = make(map[int]Listener)
}

// refresh fetches the tracked set and notifies listeners. Stale results
// (loop cancelled while the request was in flight) are dropped.
func (t *Tracker) refresh(ctx context.Context) {
	t.mu.RLock()
	wallets := t.wallets
	network := t.network
	t.mu.RUnlock()

	if len(wallets) == 0 {
		return
	}

	result := t.Fetch(ctx, wallets, network)
	if ctx.Err() != nil {
		return
	}

	if t.Metrics != nil {
		t.Metrics.BalanceRefreshes.Inc()
	}
	t.notify(result)
}

// Fetch returns a snapshot per wallet. On fetch failure each wallet degrades
// to its last-known-good snapshot, or a zero snapshot when there is no prior
// data; the result never carries an error state in place of a balance.
func (t *Tracker) Fetch(ctx context.Context, wallets []string, network models.Network) map[string]models.BalanceSnapshot {
	fetched, err := t.Source.Balances(ctx, network, wallets)
	if err != nil {
		if t.Metrics != nil {
			t.Metrics.BalanceFailures.Inc()
		}
		t.Logger.Error().
			Err(err).
			Str("network", network.String()).
			Msg("Balance fetch failed, serving last known balances")
		fetched = nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// A fetch that raced Stop or cancellation must not reach the
	// last-known-good cache; serve what was known before it started.
	if ctx.Err() != nil {
		fetched = nil
	}

	result := make(map[string]models.BalanceSnapshot, len(wallets))
	for _, w := range wallets {
		if snap, ok := fetched[w]; ok {
			t.known[w] = snap
			result[w] = snap
			continue
		}
		if snap, ok := t.known[w]; ok {
			result[w] = snap
			continue
		}
		result[w] = zeroSnapshot(w, network)
	}
	return result
}

func (t *Tracker) notify(snapshots map[string]models.BalanceSnapshot) {
	t.mu.RLock()
	listeners := make([]Listener, 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshots)
	}
}

func zeroSnapshot(address string, network models.Network) models.BalanceSnapshot {
	currency := ""
	if cfg, ok := networks.Lookup(network); ok {
		currency = cfg.NativeCurrency
	}
	return models.BalanceSnapshot{
		Address:   address,
		Native:    models.Balance{Amount: decimal.Zero, Currency: currency},
		UpdatedAt: time.Now().UTC(),
	}
}
