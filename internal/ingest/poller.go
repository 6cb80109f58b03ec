package ingest

import (
	"context"
	"time"

	"wallet-monitor/internal/database"
	"wallet-monitor/internal/events"
	"wallet-monitor/internal/health"
	"wallet-monitor/internal/indexer"
	"wallet-monitor/internal/interfaces"
	"wallet-monitor/internal/metrics"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/validation"

	"github.com/rs/zerolog"
)

// TransferSource is the slice of the indexer client the poller needs.
type TransferSource interface {
	RecentTransfers(ctx context.Context, network models.Network, contracts []string, limit int) ([]indexer.RawTransfer, error)
}

// Poller is the transfer ingestion loop: every interval it pulls the latest
// transfers for a contract allow-list, deduplicates against storage,
// classifies whales, persists new rows, and republishes whale events to live
// subscribers and the external emitter.
//
// Run one Poller per process; the storage uniqueness constraint is the
// authoritative dedup guard if that invariant is ever violated.
type Poller struct {
	Source    TransferSource
	Network   models.Network
	Contracts []string
	Interval  time.Duration
	Limit     int
	Bus       *events.Bus
	Emitter   interfaces.EventEmitter
	Logger    *zerolog.Logger
	Metrics   *metrics.MonitorMetrics

	// InsertTransfer reports whether the row landed; false means the
	// constraint caught a duplicate. Overridable in tests.
	InsertTransfer func(t models.Transfer) (bool, error)
}

func NewPoller(source TransferSource, network models.Network, contracts []string, interval time.Duration, limit int, bus *events.Bus, emitter interfaces.EventEmitter, logger *zerolog.Logger, m *metrics.MonitorMetrics) *Poller {
	return &Poller{
		Source:         source,
		Network:        network,
		Contracts:      contracts,
		Interval:       interval,
		Limit:          limit,
		Bus:            bus,
		Emitter:        emitter,
		Logger:         logger,
		Metrics:        m,
		InsertTransfer: database.InsertTransfer,
	}
}

// Run ticks until ctx is cancelled. A failed tick is logged and swallowed;
// the next successful tick catches up within the query window.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.Logger.Info().
		Str("network", p.Network.String()).
		Int("contracts", len(p.Contracts)).
		Dur("interval", p.Interval).
		Msg("Starting transfer ingestion poller")

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info().Msg("Transfer ingestion poller shutting down")
			return
		case <-ticker.C:
			if p.Metrics != nil {
				p.Metrics.PollTicks.WithLabelValues("ingest").Inc()
			}
			err := p.Tick(ctx)
			if err != nil {
				if p.Metrics != nil {
					p.Metrics.PollFailures.WithLabelValues("ingest").Inc()
				}
				p.Logger.Error().Err(err).Msg("Ingestion tick failed")
			}
			health.ReportTick("ingest", err == nil)
		}
	}
}

// Tick runs one poll cycle. One bad record or one failed insert never aborts
// the batch.
func (p *Poller) Tick(ctx context.Context) error {
	raws, err := p.Source.RecentTransfers(ctx, p.Network, p.Contracts, p.Limit)
	if err != nil {
		return err
	}

	for _, raw := range raws {
		transfer, err := indexer.NormalizeTransfer(raw, p.Network)
		if err != nil {
			p.Logger.Warn().Err(err).Msg("Skipping malformed transfer record")
			continue
		}
		if err := validation.ValidateTxHash(transfer.TxHash, p.Network); err != nil {
			p.Logger.Warn().
				Err(err).
				Str("txHash", transfer.TxHash).
				Msg("Skipping transfer with malformed hash")
			continue
		}

		// Stablecoins are assumed to hold their 1:1 peg, so USD value
		// equals face amount. Extending this to volatile assets needs a
		// price feed.
		transfer.USDValue = transfer.Amount
		transfer.IsWhale = transfer.USDValue.GreaterThanOrEqual(models.WhaleThresholdUSD)

		inserted, err := p.InsertTransfer(transfer)
		if err != nil {
			p.Logger.Error().
				Err(err).
				Str("txHash", transfer.TxHash).
				Msg("Failed to persist transfer")
			continue
		}
		if !inserted {
			if p.Metrics != nil {
				p.Metrics.DuplicatesSkipped.Inc()
			}
			p.Logger.Debug().
				Str("txHash", transfer.TxHash).
				Msg("Skipping duplicate transfer")
			continue
		}

		if p.Metrics != nil {
			p.Metrics.TransfersIngested.Inc()
		}

		if transfer.IsWhale {
			if p.Metrics != nil {
				p.Metrics.WhalesDetected.Inc()
			}
			if p.Bus != nil {
				p.Bus.Publish(transfer)
			}
			if p.Emitter != nil {
				if err := p.Emitter.EmitTransfer(transfer); err != nil {
					p.Logger.Error().
						Err(err).
						Str("txHash", transfer.TxHash).
						Msg("Failed to emit whale transfer")
				}
			}
		}
	}

	return nil
}
