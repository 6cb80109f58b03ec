package risk

import (
	"context"
	"fmt"
	"time"

	"wallet-monitor/internal/database"
	"wallet-monitor/internal/explorer"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/validation"

	"github.com/rs/zerolog"
)

// Analyzer runs wallet risk analysis: it pulls a wallet's transaction
// history from the network's explorer, screens the address against the
// sanctioned list, scores it, and upserts the snapshot.
type Analyzer struct {
	Explorers map[models.Network]explorer.Client
	Logger    *zerolog.Logger
	Now       func() time.Time

	// Fallback transaction source (the indexer's combined dataset), consulted
	// when the network's explorer is unavailable.
	Fallback func(ctx context.Context, network models.Network, address string) ([]models.WalletTransaction, error)

	// Store seams, overridable in tests.
	IsSanctioned func(address string) (bool, error)
	SaveRating   func(r models.RiskRating) error
	CachedRating func(address string) (*models.RiskRating, error)
}

func NewAnalyzer(explorers map[models.Network]explorer.Client, logger *zerolog.Logger) *Analyzer {
	return &Analyzer{
		Explorers:    explorers,
		Logger:       logger,
		Now:          time.Now,
		IsSanctioned: database.IsSanctioned,
		SaveRating:   database.UpsertRiskRating,
		CachedRating: database.GetRiskRating,
	}
}

// Analyze scores one wallet. With refresh=false a cached snapshot is served
// when present, avoiding an explorer round trip.
func (a *Analyzer) Analyze(ctx context.Context, address string, network models.Network, refresh bool) (*models.RiskRating, error) {
	address = validation.NormalizeAddress(address, network)

	if !refresh {
		if cached, err := a.CachedRating(address); err == nil {
			return cached, nil
		}
	}

	client, ok := a.Explorers[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}

	txs, err := client.ListTransactions(ctx, address, explorer.ListOptions{})
	if err != nil {
		if a.Fallback == nil {
			return nil, fmt.Errorf("failed to fetch transactions: %w", err)
		}
		a.Logger.Warn().
			Err(err).
			Str("address", address).
			Str("network", network.String()).
			Msg("Explorer unavailable, falling back to indexer transactions")
		txs, err = a.Fallback(ctx, network, address)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transactions: %w", err)
		}
	}

	sanctioned, err := a.IsSanctioned(address)
	if err != nil {
		// Fail closed: an unavailable sanctions list blocks, never waves
		// through.
		a.Logger.Error().Err(err).Str("address", address).Msg("Sanctions check failed, treating as match")
		sanctioned = true
	}

	rating := Score(txs, a.Now().UTC())
	rating.WalletAddress = address
	rating.Network = network
	if sanctioned {
		rating.Sanctioned = true
		rating.RiskScore = 10
		rating.RiskLevel = models.RiskHigh
	}

	if err := a.SaveRating(rating); err != nil {
		a.Logger.Error().Err(err).Str("address", address).Msg("Failed to persist risk rating")
	}

	a.Logger.Info().
		Str("address", rating.WalletAddress).
		Int("score", rating.RiskScore).
		Str("level", string(rating.RiskLevel)).
		Int("transactions", rating.TotalTransactions).
		Msg("Wallet risk analysis complete")

	return &rating, nil
}
