package interfaces

import "wallet-monitor/internal/models"

// EventEmitter pushes whale transfer events to an external audience.
type EventEmitter interface {
	EmitTransfer(t models.Transfer) error
	Close() error
}
