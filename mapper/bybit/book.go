package bybit

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// BookChangeMapper reconstructs Bybit order books from the
// orderbook.<depth>.<symbol> stream. Snapshots arrive in-band marked
// type=snapshot; deltas carry a single update id that must advance by one.
type BookChangeMapper struct {
	exchange string
	engine   *mapper.BookEngine
}

func NewBookChangeMapper(exchange string, opts mapper.BookOptions) *BookChangeMapper {
	return &BookChangeMapper{
		exchange: exchange,
		engine: mapper.NewBookEngine(mapper.BookEngineConfig{
			Exchange:       exchange,
			Policy:         mapper.DefaultBookPolicy(),
			Strict:         opts.Strict,
			BufferCapacity: opts.BufferCapacity,
			FailOnOverflow: opts.FailOnOverflow,
		}),
	}
}

func (m *BookChangeMapper) CanHandle(msg models.RawMessage) bool {
	return msg.Kind == models.KindBookSnapshot || msg.Kind == models.KindBookUpdate
}

func (m *BookChangeMapper) GetFilters(syms []string) []mapper.Filter {
	return []mapper.Filter{{Channel: "orderbook.50", Symbols: syms}}
}

func (m *BookChangeMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.BookChange, error) {
	push, ok := msg.Data.(*models.BybitOrderbook)
	if !ok {
		return nil, nil
	}

	// Bybit re-sends a snapshot with u=1 when its service restarts; the
	// engine drops it for already initialized symbols.
	isSnapshot := push.Type == "snapshot" || push.Data.UpdateID == 1

	return m.engine.Apply(mapper.BookUpdate{
		Symbol:        symbols.Normalize(m.exchange, push.Data.Symbol),
		IsSnapshot:    isSnapshot,
		FirstUpdateID: push.Data.UpdateID,
		FinalUpdateID: push.Data.UpdateID,
		Bids:          mapper.Levels(push.Data.Bids),
		Asks:          mapper.Levels(push.Data.Asks),
		Timestamp:     time.UnixMilli(push.Timestamp).UTC(),
	}, localTimestamp)
}
