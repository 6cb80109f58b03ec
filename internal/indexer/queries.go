package indexer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"

	"github.com/shopspring/decimal"
)

const recentTransfersQuery = `
query ($network: evm_network!, $contracts: [String!], $minAmount: String, $limit: Int) {
  EVM(network: $network, dataset: combined) {
    Transfers(
      where: {Transfer: {Currency: {SmartContract: {in: $contracts}}, Amount: {ge: $minAmount}}}
      orderBy: {descending: Block_Time}
      limit: {count: $limit}
    ) {
      Block { Time Number }
      Transaction { Hash }
      Transfer {
        Amount
        Sender
        Receiver
        Currency { Symbol Name SmartContract }
      }
    }
  }
}`

const balancesQuery = `
query ($network: evm_network!, $addresses: [String!]) {
  EVM(network: $network, dataset: combined) {
    BalanceUpdates(where: {BalanceUpdate: {Address: {in: $addresses}}}) {
      BalanceUpdate { Address }
      Currency { Symbol SmartContract }
      balance: sum(of: BalanceUpdate_Amount)
    }
  }
}`

const walletTransactionsQuery = `
query ($network: evm_network!, $address: String!, $limit: Int) {
  EVM(network: $network, dataset: combined) {
    Transactions(
      where: {any: [{Transaction: {From: {is: $address}}}, {Transaction: {To: {is: $address}}}]}
      orderBy: {descending: Block_Time}
      limit: {count: $limit}
    ) {
      Block { Time Number }
      Transaction { Hash From To Value }
      TransactionStatus { Success }
    }
  }
}`

// RawTransfer is the wire shape of one transfer row.
type RawTransfer struct {
	Block struct {
		Time   string `json:"Time"`
		Number string `json:"Number"`
	} `json:"Block"`
	Transaction struct {
		Hash string `json:"Hash"`
	} `json:"Transaction"`
	Transfer struct {
		Amount   string `json:"Amount"`
		Sender   string `json:"Sender"`
		Receiver string `json:"Receiver"`
		Currency struct {
			Symbol        string `json:"Symbol"`
			Name          string `json:"Name"`
			SmartContract string `json:"SmartContract"`
		} `json:"Currency"`
	} `json:"Transfer"`
}

type rawBalanceRow struct {
	BalanceUpdate struct {
		Address string `json:"Address"`
	} `json:"BalanceUpdate"`
	Currency struct {
		Symbol        string `json:"Symbol"`
		SmartContract string `json:"SmartContract"`
	} `json:"Currency"`
	Balance string `json:"balance"`
}

type rawTransaction struct {
	Block struct {
		Time   string `json:"Time"`
		Number string `json:"Number"`
	} `json:"Block"`
	Transaction struct {
		Hash  string `json:"Hash"`
		From  string `json:"From"`
		To    string `json:"To"`
		Value string `json:"Value"`
	} `json:"Transaction"`
	TransactionStatus struct {
		Success bool `json:"Success"`
	} `json:"TransactionStatus"`
}

type evmTransfersData struct {
	EVM struct {
		Transfers []RawTransfer `json:"Transfers"`
	} `json:"EVM"`
}

type evmBalancesData struct {
	EVM struct {
		BalanceUpdates []rawBalanceRow `json:"BalanceUpdates"`
	} `json:"EVM"`
}

type evmTransactionsData struct {
	EVM struct {
		Transactions []rawTransaction `json:"Transactions"`
	} `json:"EVM"`
}

// RecentTransfers fetches the latest transfers touching the given contract
// allow-list, descending by block time. The limit is capped at the client's
// configured maximum to respect upstream rate limits.
func (c *Client) RecentTransfers(ctx context.Context, network models.Network, contracts []string, limit int) ([]RawTransfer, error) {
	cfg, ok := networks.Lookup(network)
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	if limit <= 0 || limit > c.QueryLimit {
		limit = c.QueryLimit
	}

	var data evmTransfersData
	err := c.query(ctx, recentTransfersQuery, map[string]interface{}{
		"network":   cfg.IndexerID,
		"contracts": contracts,
		"minAmount": strconv.FormatFloat(c.MinAmount, 'f', -1, 64),
		"limit":     limit,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.EVM.Transfers, nil
}

// Balances aggregates native and token balances for a set of addresses.
// Native balance rows are distinguished by an empty token contract address.
func (c *Client) Balances(ctx context.Context, network models.Network, addresses []string) (map[string]models.BalanceSnapshot, error) {
	cfg, ok := networks.Lookup(network)
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}

	var data evmBalancesData
	err := c.query(ctx, balancesQuery, map[string]interface{}{
		"network":   cfg.IndexerID,
		"addresses": addresses,
	}, &data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make(map[string]models.BalanceSnapshot, len(addresses))
	for _, row := range data.EVM.BalanceUpdates {
		addr := row.BalanceUpdate.Address
		amount, err := decimal.NewFromString(row.Balance)
		if err != nil {
			c.Logger.Warn().
				Str("address", addr).
				Str("balance", row.Balance).
				Msg("Skipping malformed balance row")
			continue
		}

		snap, ok := out[addr]
		if !ok {
			snap = models.BalanceSnapshot{
				Address:   addr,
				Native:    models.Balance{Amount: decimal.Zero, Currency: cfg.NativeCurrency},
				Tokens:    make(map[string]models.Balance),
				UpdatedAt: now,
			}
		}

		if row.Currency.SmartContract == "" {
			snap.Native = models.Balance{Amount: amount, Currency: cfg.NativeCurrency}
		} else {
			snap.Tokens[row.Currency.Symbol] = models.Balance{Amount: amount, Currency: row.Currency.Symbol}
		}
		out[addr] = snap
	}
	return out, nil
}

// WalletTransactions fetches the transaction list of one wallet, used by the
// combined-dataset analysis path.
func (c *Client) WalletTransactions(ctx context.Context, network models.Network, address string) ([]models.WalletTransaction, error) {
	cfg, ok := networks.Lookup(network)
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}

	var data evmTransactionsData
	err := c.query(ctx, walletTransactionsQuery, map[string]interface{}{
		"network": cfg.IndexerID,
		"address": address,
		"limit":   c.QueryLimit,
	}, &data)
	if err != nil {
		return nil, err
	}

	txs := make([]models.WalletTransaction, 0, len(data.EVM.Transactions))
	for _, raw := range data.EVM.Transactions {
		ts, err := time.Parse(time.RFC3339, raw.Block.Time)
		if err != nil {
			c.Logger.Warn().
				Str("hash", raw.Transaction.Hash).
				Msg("Skipping transaction with malformed block time")
			continue
		}
		value, err := decimal.NewFromString(raw.Transaction.Value)
		if err != nil {
			value = decimal.Zero
		}
		blockNumber, _ := strconv.ParseUint(raw.Block.Number, 10, 64)
		txs = append(txs, models.WalletTransaction{
			Hash:        raw.Transaction.Hash,
			Timestamp:   ts,
			BlockNumber: blockNumber,
			From:        raw.Transaction.From,
			To:          raw.Transaction.To,
			Value:       value,
			Failed:      !raw.TransactionStatus.Success,
			Network:     network,
		})
	}
	return txs, nil
}

// NormalizeTransfer maps one raw transfer row into the domain shape. A
// missing hash, sender, receiver, or unparsable amount/time makes the record
// malformed; the caller skips it and continues the batch.
func NormalizeTransfer(raw RawTransfer, network models.Network) (models.Transfer, error) {
	if raw.Transaction.Hash == "" || raw.Transfer.Sender == "" || raw.Transfer.Receiver == "" {
		return models.Transfer{}, fmt.Errorf("transfer missing required fields")
	}

	ts, err := time.Parse(time.RFC3339, raw.Block.Time)
	if err != nil {
		return models.Transfer{}, fmt.Errorf("malformed block time %q: %v", raw.Block.Time, err)
	}

	amount, err := decimal.NewFromString(raw.Transfer.Amount)
	if err != nil {
		return models.Transfer{}, fmt.Errorf("malformed amount %q: %v", raw.Transfer.Amount, err)
	}

	blockNumber, _ := strconv.ParseUint(raw.Block.Number, 10, 64)

	return models.Transfer{
		TxHash:      raw.Transaction.Hash,
		Timestamp:   ts,
		BlockNumber: blockNumber,
		FromAddress: raw.Transfer.Sender,
		ToAddress:   raw.Transfer.Receiver,
		Amount:      amount,
		Currency:    raw.Transfer.Currency.Symbol,
		Network:     network,
	}, nil
}
