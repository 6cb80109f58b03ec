package validation

import (
	"errors"
	"regexp"
	"strings"

	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"

	"github.com/ethereum/go-ethereum/common"
)

var (
	xrpAddressRegex = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)
	evmTxHashRegex  = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	xrpTxHashRegex  = regexp.MustCompile(`^[A-F0-9]{64}$`)
)

// ValidateAddress validates a wallet address for a given network.
func ValidateAddress(address string, network models.Network) error {
	if address == "" {
		return errors.New("address cannot be empty")
	}

	cfg, ok := networks.Lookup(network)
	if !ok {
		return errors.New("unsupported network")
	}

	switch cfg.Kind {
	case models.KindEVM:
		if !common.IsHexAddress(address) {
			return errors.New("invalid EVM address format")
		}
	case models.KindLedger:
		if !xrpAddressRegex.MatchString(address) {
			return errors.New("invalid XRP address format")
		}
	}

	return nil
}

// NormalizeAddress lowercases EVM addresses; ledger addresses are
// case-sensitive and returned unchanged.
func NormalizeAddress(address string, network models.Network) string {
	cfg, ok := networks.Lookup(network)
	if ok && cfg.Kind == models.KindLedger {
		return address
	}
	return strings.ToLower(address)
}

// ValidateTxHash validates a transaction hash for a given network.
func ValidateTxHash(txHash string, network models.Network) error {
	if txHash == "" {
		return errors.New("transaction hash cannot be empty")
	}

	cfg, ok := networks.Lookup(network)
	if !ok {
		return errors.New("unsupported network")
	}

	switch cfg.Kind {
	case models.KindEVM:
		if !evmTxHashRegex.MatchString(txHash) {
			return errors.New("invalid EVM transaction hash")
		}
	case models.KindLedger:
		if !xrpTxHashRegex.MatchString(txHash) {
			return errors.New("invalid XRP transaction hash")
		}
	}

	return nil
}
