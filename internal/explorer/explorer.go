package explorer

import (
	"context"
	"fmt"
	"time"

	"wallet-monitor/internal/config"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ListOptions bounds a transaction-list query.
type ListOptions struct {
	StartBlock uint64
	EndBlock   uint64
	Page       int
	PageSize   int
}

// Client is the per-network explorer capability. EVM chains and ledger-style
// chains (XRP) have structurally different APIs, so each network kind gets
// its own implementation behind this interface.
type Client interface {
	// ListTransactions returns a wallet's transaction history. A wallet with
	// zero activity is an empty success, not an error.
	ListTransactions(ctx context.Context, address string, opts ListOptions) ([]models.WalletTransaction, error)

	// GetBalance returns the native balance in whole currency units.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	Network() models.Network
}

// NewClient builds the explorer client matching the network's kind.
func NewClient(network models.Network, cfg config.ExplorerConfig, httpTimeout time.Duration, logger *zerolog.Logger) (Client, error) {
	netCfg, ok := networks.Lookup(network)
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}

	switch netCfg.Kind {
	case models.KindLedger:
		return newXRPClient(network, cfg, httpTimeout, logger), nil
	default:
		return newEtherscanClient(network, cfg, httpTimeout, logger), nil
	}
}
