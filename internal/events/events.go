package events

import (
	"wallet-monitor/internal/interfaces"
	"wallet-monitor/internal/logger"
	"wallet-monitor/internal/models"
)

// LogEmitter wraps another emitter and logs the persisted values before
// forwarding.
type LogEmitter struct {
	WrappedEmitter interfaces.EventEmitter
}

func (d *LogEmitter) EmitTransfer(t models.Transfer) error {
	logger.GetLogger().Info().
		Str("network", t.Network.String()).
		Str("from", t.FromAddress).
		Str("to", t.ToAddress).
		Str("amount", t.Amount.String()).
		Str("currency", t.Currency).
		Str("usdValue", t.USDValue.String()).
		Bool("isWhale", t.IsWhale).
		Str("txHash", t.TxHash).
		Time("timestamp", t.Timestamp).
		Msg("Transfer event")

	if d.WrappedEmitter != nil {
		return d.WrappedEmitter.EmitTransfer(t)
	}
	return nil
}

func (d *LogEmitter) Close() error {
	if d.WrappedEmitter != nil {
		return d.WrappedEmitter.Close()
	}
	return nil
}
