// Package mapper defines the capability contract every exchange mapper
// implements and the shared machinery behind it: the order book
// reconstruction engine and the pending derivative ticker tracker.
//
// Mappers are synchronous and single-owner: exactly one feed must drive a
// mapper instance with messages in network arrival order. Per-symbol state
// is never shared across instances.
package mapper

import (
	"errors"
	"fmt"
	"time"

	"normflow/models"
)

// Filter names an exchange channel and the native symbols the connection
// layer must subscribe to on it. An empty symbol list means all symbols,
// where the exchange protocol supports that.
type Filter struct {
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols,omitempty"`
}

// TradesMapper normalizes exchange trade messages.
type TradesMapper interface {
	CanHandle(msg models.RawMessage) bool
	GetFilters(symbols []string) []Filter
	Map(msg models.RawMessage, localTimestamp time.Time) ([]models.Trade, error)
}

// BookChangeMapper normalizes exchange order book messages. It owns one
// reconstruction state machine per symbol.
type BookChangeMapper interface {
	CanHandle(msg models.RawMessage) bool
	GetFilters(symbols []string) []Filter
	Map(msg models.RawMessage, localTimestamp time.Time) ([]models.BookChange, error)
}

// DerivativeTickerMapper merges piecemeal derivative ticker fields into
// coherent ticker events.
type DerivativeTickerMapper interface {
	CanHandle(msg models.RawMessage) bool
	GetFilters(symbols []string) []Filter
	Map(msg models.RawMessage, localTimestamp time.Time) ([]models.DerivativeTicker, error)
}

// ErrUnsupportedExchange is returned by the registry when no mapper exists
// for the requested exchange and event kind.
var ErrUnsupportedExchange = errors.New("unsupported exchange")

// ReconciliationError reports that an update stream could not be proven
// continuous with the applied snapshot for one symbol.
type ReconciliationError struct {
	Exchange      string
	Symbol        string
	LastUpdateID  int64
	FirstUpdateID int64
	FinalUpdateID int64
	Reason        string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("book reconciliation failed for %s %s: %s (lastUpdateId=%d, update=[%d..%d])",
		e.Exchange, e.Symbol, e.Reason, e.LastUpdateID, e.FirstUpdateID, e.FinalUpdateID)
}
