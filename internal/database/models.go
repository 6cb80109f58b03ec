package database

import (
	"database/sql"
	"errors"
	"time"

	"wallet-monitor/internal/models"

	"github.com/google/uuid"
)

// APIKey is a gateway credential. The raw key is never stored, only its
// sha-256 hash.
type APIKey struct {
	ID        string    `json:"id"`
	KeyHash   string    `json:"-"`
	Name      string    `json:"name"`
	RateLimit int       `json:"rate_limit"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("database: not found")

// AddTrackedWallet registers a wallet for monitoring. The caller passes the
// network-normalized address (EVM lowercased, ledger as-is); re-adding an
// existing (address, network) pair returns the existing row.
func AddTrackedWallet(address, name string, network models.Network) (*models.TrackedWallet, error) {
	var w models.TrackedWallet
	var dbName sql.NullString
	err := DB.QueryRow(`
		INSERT INTO tracked_wallets (id, address, name, network)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address, network) DO NOTHING
		RETURNING id, address, name, network, created_at
	`, uuid.NewString(), address, name, network.String()).
		Scan(&w.ID, &w.Address, &dbName, &w.Network, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return GetTrackedWallet(address, network)
	}
	if err != nil {
		return nil, err
	}
	w.Name = dbName.String
	return &w, nil
}

// GetTrackedWallet fetches one tracked wallet by (address, network).
func GetTrackedWallet(address string, network models.Network) (*models.TrackedWallet, error) {
	var w models.TrackedWallet
	var dbName sql.NullString
	err := DB.QueryRow(`
		SELECT id, address, name, network, created_at
		FROM tracked_wallets
		WHERE address = $1 AND network = $2
	`, address, network.String()).
		Scan(&w.ID, &w.Address, &dbName, &w.Network, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.Name = dbName.String
	return &w, nil
}

// ListTrackedWallets returns all tracked wallets for a network, newest first.
func ListTrackedWallets(network models.Network) ([]models.TrackedWallet, error) {
	rows, err := DB.Query(`
		SELECT id, address, name, network, created_at
		FROM tracked_wallets
		WHERE network = $1
		ORDER BY created_at DESC
	`, network.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.TrackedWallet
	for rows.Next() {
		var w models.TrackedWallet
		var dbName sql.NullString
		if err := rows.Scan(&w.ID, &w.Address, &dbName, &w.Network, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Name = dbName.String
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// RemoveTrackedWallet deletes a tracked wallet.
func RemoveTrackedWallet(address string, network models.Network) error {
	_, err := DB.Exec(`
		DELETE FROM tracked_wallets WHERE address = $1 AND network = $2
	`, address, network.String())
	return err
}

// InsertTransfer appends one transfer row. The uniqueness constraint on
// (tx_hash, from, to, amount) is the authoritative dedup guard: a duplicate
// reports inserted=false, not an error.
func InsertTransfer(t models.Transfer) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	res, err := DB.Exec(`
		INSERT INTO transfers
			(id, tx_hash, ts, block_number, from_address, to_address, amount, currency, usd_value, is_whale, network)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ON CONSTRAINT transfers_dedup_key DO NOTHING
	`, t.ID, t.TxHash, t.Timestamp, t.BlockNumber, t.FromAddress, t.ToAddress,
		t.Amount, t.Currency, t.USDValue, t.IsWhale, t.Network.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecentTransfers returns the newest transfers, optionally whales only.
func RecentTransfers(limit int, whaleOnly bool) ([]models.Transfer, error) {
	query := `
		SELECT id, tx_hash, ts, block_number, from_address, to_address, amount, currency, usd_value, is_whale, network
		FROM transfers
	`
	if whaleOnly {
		query += ` WHERE is_whale`
	}
	query += ` ORDER BY ts DESC LIMIT $1`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.TxHash, &t.Timestamp, &t.BlockNumber, &t.FromAddress,
			&t.ToAddress, &t.Amount, &t.Currency, &t.USDValue, &t.IsWhale, &t.Network); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// InsertStablecoinTransfer appends one stablecoin transfer row, guarded by
// the (block_time, sender, receiver, amount, symbol) constraint.
func InsertStablecoinTransfer(t models.StablecoinTransfer) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	res, err := DB.Exec(`
		INSERT INTO stablecoin_transfers
			(id, block_time, token_symbol, token_name, amount, sender_address, receiver_address, network)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT stablecoin_transfers_dedup_key DO NOTHING
	`, t.ID, t.BlockTime, t.TokenSymbol, t.TokenName, t.Amount,
		t.SenderAddress, t.ReceiverAddress, t.Network.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecentStablecoinTransfers returns the newest stablecoin transfers across
// all networks.
func RecentStablecoinTransfers(limit int) ([]models.StablecoinTransfer, error) {
	rows, err := DB.Query(`
		SELECT id, block_time, token_symbol, token_name, amount, sender_address, receiver_address, network
		FROM stablecoin_transfers
		ORDER BY block_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.StablecoinTransfer
	for rows.Next() {
		var t models.StablecoinTransfer
		if err := rows.Scan(&t.ID, &t.BlockTime, &t.TokenSymbol, &t.TokenName,
			&t.Amount, &t.SenderAddress, &t.ReceiverAddress, &t.Network); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// UpsertRiskRating stores the latest risk snapshot for a wallet. The caller
// passes the network-normalized address.
func UpsertRiskRating(r models.RiskRating) error {
	_, err := DB.Exec(`
		INSERT INTO wallet_risk_ratings
			(wallet_address, first_tx_date, total_transactions, failed_transactions,
			 wallet_age_days, failed_tx_ratio, risk_score, risk_level, sanctioned, network, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (wallet_address) DO UPDATE SET
			first_tx_date = EXCLUDED.first_tx_date,
			total_transactions = EXCLUDED.total_transactions,
			failed_transactions = EXCLUDED.failed_transactions,
			wallet_age_days = EXCLUDED.wallet_age_days,
			failed_tx_ratio = EXCLUDED.failed_tx_ratio,
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			sanctioned = EXCLUDED.sanctioned,
			network = EXCLUDED.network,
			last_updated = EXCLUDED.last_updated
	`, r.WalletAddress, r.FirstTxDate, r.TotalTransactions, r.FailedTransactions,
		r.WalletAgeDays, r.FailedTxRatio, r.RiskScore, string(r.RiskLevel),
		r.Sanctioned, r.Network.String(), r.LastUpdated)
	return err
}

// GetRiskRating fetches the cached risk snapshot for a wallet.
func GetRiskRating(address string) (*models.RiskRating, error) {
	var r models.RiskRating
	var firstTx sql.NullTime
	err := DB.QueryRow(`
		SELECT wallet_address, first_tx_date, total_transactions, failed_transactions,
		       wallet_age_days, failed_tx_ratio, risk_score, risk_level, sanctioned, network, last_updated
		FROM wallet_risk_ratings
		WHERE wallet_address = $1
	`, address).Scan(&r.WalletAddress, &firstTx, &r.TotalTransactions, &r.FailedTransactions,
		&r.WalletAgeDays, &r.FailedTxRatio, &r.RiskScore, &r.RiskLevel, &r.Sanctioned,
		&r.Network, &r.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if firstTx.Valid {
		r.FirstTxDate = &firstTx.Time
	}
	return &r, nil
}

// IsSanctioned reports whether an address appears on the sanctioned list.
// List entries are stored network-normalized, so the lookup is an exact match.
func IsSanctioned(address string) (bool, error) {
	var one int
	err := DB.QueryRow(`
		SELECT 1 FROM sanctioned_wallets WHERE address = $1
	`, address).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAPIKeyByHash looks up an active API key by its sha-256 hash.
func GetAPIKeyByHash(hash string) (*APIKey, error) {
	var k APIKey
	err := DB.QueryRow(`
		SELECT id, key_hash, name, rate_limit, active, created_at
		FROM api_keys
		WHERE key_hash = $1 AND active
	`, hash).Scan(&k.ID, &k.KeyHash, &k.Name, &k.RateLimit, &k.Active, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// LogAPIUsage records one gateway request for a key.
func LogAPIUsage(apiKeyID, endpoint string, statusCode int) error {
	_, err := DB.Exec(`
		INSERT INTO api_usage (api_key_id, endpoint, status_code)
		VALUES ($1, $2, $3)
	`, apiKeyID, endpoint, statusCode)
	return err
}
