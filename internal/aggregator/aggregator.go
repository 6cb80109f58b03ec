package aggregator

import (
	"context"
	"sort"
	"time"

	"wallet-monitor/internal/database"
	"wallet-monitor/internal/health"
	"wallet-monitor/internal/indexer"
	"wallet-monitor/internal/metrics"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// mergeLimit caps the merged result set to the most recent rows.
const mergeLimit = 100

// Source is the slice of the indexer client the aggregator needs.
type Source interface {
	RecentTransfers(ctx context.Context, network models.Network, contracts []string, limit int) ([]indexer.RawTransfer, error)
}

// Aggregator fans one stablecoin transfer query out per EVM network, merges
// the results newest-first, and persists new rows. Per-network failures are
// contained: a failed network contributes nothing, it never fails the merge.
type Aggregator struct {
	Source   Source
	Networks []models.Network
	Interval time.Duration
	Limit    int
	Logger   *zerolog.Logger
	Metrics  *metrics.MonitorMetrics

	// InsertTransfer is overridable in tests.
	InsertTransfer func(t models.StablecoinTransfer) (bool, error)
}

func NewAggregator(source Source, nets []models.Network, interval time.Duration, limit int, logger *zerolog.Logger, m *metrics.MonitorMetrics) *Aggregator {
	return &Aggregator{
		Source:         source,
		Networks:       nets,
		Interval:       interval,
		Limit:          limit,
		Logger:         logger,
		Metrics:        m,
		InsertTransfer: database.InsertStablecoinTransfer,
	}
}

// Run aggregates on a fixed interval until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	a.Logger.Info().
		Int("networks", len(a.Networks)).
		Dur("interval", a.Interval).
		Msg("Starting stablecoin transfer aggregator")

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Stablecoin aggregator shutting down")
			return
		case <-ticker.C:
			if a.Metrics != nil {
				a.Metrics.PollTicks.WithLabelValues("aggregator").Inc()
			}
			_, err := a.Aggregate(ctx)
			if err != nil {
				if a.Metrics != nil {
					a.Metrics.PollFailures.WithLabelValues("aggregator").Inc()
				}
				a.Logger.Error().Err(err).Msg("Aggregation cycle failed")
			}
			health.ReportTick("aggregator", err == nil)
		}
	}
}

// Aggregate runs one fan-out cycle and returns the merged, sorted, truncated
// result. The only returned error is ctx cancellation; upstream failures are
// captured per network.
func (a *Aggregator) Aggregate(ctx context.Context) ([]models.StablecoinTransfer, error) {
	results := make([][]models.StablecoinTransfer, len(a.Networks))

	var g errgroup.Group
	for i, network := range a.Networks {
		i, network := i, network
		g.Go(func() error {
			contracts := networks.StablecoinContracts(network)
			raws, err := a.Source.RecentTransfers(ctx, network, contracts, a.Limit)
			if err != nil {
				a.Logger.Warn().
					Err(err).
					Str("network", network.String()).
					Msg("Network fetch failed, contributing empty result")
				return nil
			}
			results[i] = a.normalize(raws, network)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []models.StablecoinTransfer
	for _, part := range results {
		merged = append(merged, part...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].BlockTime.After(merged[j].BlockTime)
	})
	if len(merged) > mergeLimit {
		merged = merged[:mergeLimit]
	}

	for _, t := range merged {
		if _, err := a.InsertTransfer(t); err != nil {
			a.Logger.Error().
				Err(err).
				Str("network", t.Network.String()).
				Str("symbol", t.TokenSymbol).
				Msg("Failed to persist stablecoin transfer")
		}
	}

	return merged, nil
}

func (a *Aggregator) normalize(raws []indexer.RawTransfer, network models.Network) []models.StablecoinTransfer {
	out := make([]models.StablecoinTransfer, 0, len(raws))
	for _, raw := range raws {
		blockTime, err := time.Parse(time.RFC3339, raw.Block.Time)
		if err != nil {
			a.Logger.Warn().
				Str("network", network.String()).
				Str("time", raw.Block.Time).
				Msg("Skipping transfer with malformed block time")
			continue
		}
		amount, err := decimal.NewFromString(raw.Transfer.Amount)
		if err != nil {
			a.Logger.Warn().
				Str("network", network.String()).
				Str("amount", raw.Transfer.Amount).
				Msg("Skipping transfer with malformed amount")
			continue
		}
		out = append(out, models.StablecoinTransfer{
			BlockTime:       blockTime,
			TokenSymbol:     raw.Transfer.Currency.Symbol,
			TokenName:       raw.Transfer.Currency.Name,
			Amount:          amount,
			SenderAddress:   raw.Transfer.Sender,
			ReceiverAddress: raw.Transfer.Receiver,
			Network:         network,
		})
	}
	return out
}
