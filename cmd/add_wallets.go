package main

import (
	"context"

	"wallet-monitor/internal/balances"
	"wallet-monitor/internal/database"
	"wallet-monitor/internal/logger"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"
	"wallet-monitor/internal/validation"
)

// seedWallets are well-known high-activity wallets tracked out of the box so
// a fresh deployment has data to show.
var seedWallets = map[models.Network][]string{
	models.Ethereum: {
		"0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5",
		"0xDA9dfA130Df4dE4673b89022EE50ff26f6EA73Cf",
	},
}

func seedTrackedWallets() {
	for network, addresses := range seedWallets {
		for _, addr := range addresses {
			normalized := validation.NormalizeAddress(addr, network)
			if _, err := database.AddTrackedWallet(normalized, "", network); err != nil {
				logger.GetLogger().Error().
					Err(err).
					Str("network", network.String()).
					Str("address", addr).
					Msg("Failed to seed tracked wallet")
			}
		}
	}
}

// startBalanceTracking loads the tracked wallet list for the default network
// and starts the balance tracker over it. Wallets tracked after startup are
// picked up on restart.
func startBalanceTracking(ctx context.Context, tracker *balances.Tracker) {
	network := networks.Default()

	wallets, err := database.ListTrackedWallets(network)
	if err != nil {
		logger.GetLogger().Error().
			Err(err).
			Str("network", network.String()).
			Msg("Failed to load tracked wallets")
		return
	}

	addresses := make([]string, 0, len(wallets))
	for _, w := range wallets {
		addresses = append(addresses, w.Address)
	}

	if err := tracker.Start(ctx, addresses, network); err != nil {
		logger.GetLogger().Error().
			Err(err).
			Str("network", network.String()).
			Msg("Failed to start balance tracking")
	}
}
