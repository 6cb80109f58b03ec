package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WhaleThresholdUSD is the inclusive lower bound for classifying a transfer
// as a whale event.
var WhaleThresholdUSD = decimal.NewFromInt(100_000)

// TrackedWallet is a wallet address registered for monitoring.
type TrackedWallet struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Network   Network   `json:"network"`
	CreatedAt time.Time `json:"created_at"`
}

// Transfer is a single ingested stablecoin transfer. Rows are append-only;
// uniqueness is enforced on (tx_hash, from, to, amount) by the store.
type Transfer struct {
	ID          string          `json:"id"`
	TxHash      string          `json:"hash"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	USDValue    decimal.Decimal `json:"usd_value"`
	IsWhale     bool            `json:"is_whale"`
	Network     Network         `json:"network"`
}

// StablecoinTransfer is one row of the multi-network stablecoin transfer log.
type StablecoinTransfer struct {
	ID              string          `json:"id"`
	BlockTime       time.Time       `json:"block_time"`
	TokenSymbol     string          `json:"token_symbol"`
	TokenName       string          `json:"token_name"`
	Amount          decimal.Decimal `json:"amount"`
	SenderAddress   string          `json:"sender_address"`
	ReceiverAddress string          `json:"receiver_address"`
	Network         Network         `json:"network"`
}

// Balance is a single currency position.
type Balance struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// BalanceSnapshot holds the native and token balances of one wallet at a
// point in time.
type BalanceSnapshot struct {
	Address   string             `json:"address"`
	Native    Balance            `json:"native"`
	Tokens    map[string]Balance `json:"tokens,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// WalletTransaction is a normalized transaction used by the risk engine,
// produced by either the explorer clients or the indexer client.
type WalletTransaction struct {
	Hash        string          `json:"hash"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	Failed      bool            `json:"failed"`
	Network     Network         `json:"network"`
}

// RiskLevel is the three-tier classification derived from a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskRating is the cached risk snapshot for a wallet, upserted on every
// analysis run.
type RiskRating struct {
	WalletAddress      string     `json:"wallet_address"`
	FirstTxDate        *time.Time `json:"first_tx_date,omitempty"`
	TotalTransactions  int        `json:"total_transactions"`
	FailedTransactions int        `json:"failed_transactions"`
	WalletAgeDays      int        `json:"wallet_age_days"`
	FailedTxRatio      float64    `json:"failed_tx_ratio"`
	RiskScore          int        `json:"risk_score"`
	RiskLevel          RiskLevel  `json:"risk_level"`
	Sanctioned         bool       `json:"sanctioned,omitempty"`
	Network            Network    `json:"network"`
	LastUpdated        time.Time  `json:"last_updated"`
}
