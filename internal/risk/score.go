package risk

import (
	"time"

	"wallet-monitor/internal/models"
)

// Score computes the deterministic risk heuristic for a wallet's transaction
// set. It starts at 1 and accumulates factors for wallet age, transaction
// volume, and failure ratio, clamped to 10. The caller fills in the wallet
// address and network.
func Score(txs []models.WalletTransaction, now time.Time) models.RiskRating {
	totalTx := len(txs)
	failedTx := 0
	var oldest time.Time
	for _, tx := range txs {
		if tx.Failed {
			failedTx++
		}
		if oldest.IsZero() || tx.Timestamp.Before(oldest) {
			oldest = tx.Timestamp
		}
	}

	failedRatio := 0.0
	if totalTx > 0 {
		failedRatio = float64(failedTx) / float64(totalTx)
	}

	ageDays := 0
	var firstTx *time.Time
	if !oldest.IsZero() {
		ageDays = int(now.Sub(oldest).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
		t := oldest
		firstTx = &t
	}

	score := 1
	switch {
	case ageDays < 30:
		score += 3
	case ageDays < 90:
		score += 2
	case ageDays < 365:
		score += 1
	}
	switch {
	case totalTx < 10:
		score += 2
	case totalTx < 50:
		score += 1
	}
	switch {
	case failedRatio > 0.10:
		score += 2
	case failedRatio > 0.05:
		score += 1
	}
	if score > 10 {
		score = 10
	}

	return models.RiskRating{
		FirstTxDate:        firstTx,
		TotalTransactions:  totalTx,
		FailedTransactions: failedTx,
		WalletAgeDays:      ageDays,
		FailedTxRatio:      failedRatio,
		RiskScore:          score,
		RiskLevel:          LevelFor(score),
		LastUpdated:        now,
	}
}

// LevelFor maps a score into the three-tier classification: LOW for 1-3,
// MEDIUM for 4-6, HIGH for 7-10.
func LevelFor(score int) models.RiskLevel {
	switch {
	case score <= 3:
		return models.RiskLow
	case score <= 6:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
