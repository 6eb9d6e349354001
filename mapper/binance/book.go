package binance

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// PuProtocolCutover is when Binance futures depth streams started chaining
// updates through the "pu" field. Streams recorded before it validate like
// spot streams.
var PuProtocolCutover = time.Date(2020, time.January, 7, 0, 0, 0, 0, time.UTC)

// BookChangeMapper reconstructs Binance order books from REST depth
// snapshots and @depthUpdate stream events.
type BookChangeMapper struct {
	exchange   string
	puChaining bool
	engine     *mapper.BookEngine
}

// NewBookChangeMapper builds a spot-style book mapper: the first update
// after a snapshot must satisfy U <= lastUpdateId+1 <= u, later updates are
// stale unless u > lastUpdateId.
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

// NewFuturesBookChangeMapper builds a futures book mapper for a stream
// whose reference time is at. From PuProtocolCutover on, the futures
// protocol moves both boundaries by one (U <= lastUpdateId <= u, stale only
// when u < lastUpdateId) and chains consecutive updates through pu.
func NewFuturesBookChangeMapper(exchange string, at time.Time, opts mapper.BookOptions) *BookChangeMapper {
	policy := mapper.DefaultBookPolicy()
	puChaining := !at.Before(PuProtocolCutover)
	if puChaining {
		policy = mapper.BookPolicy{
			IsStale: func(u mapper.BookUpdate, lastID int64) bool {
				return u.FinalUpdateID < lastID
			},
			Overlaps: func(u mapper.BookUpdate, lastID int64) bool {
				return u.FirstUpdateID <= lastID && u.FinalUpdateID >= lastID
			},
			ChainBroken: func(prev, curr mapper.BookUpdate) bool {
				return curr.PrevFinalUpdateID != prev.FinalUpdateID
			},
		}
	}
	return &BookChangeMapper{
		exchange:   exchange,
		puChaining: puChaining,
		engine: mapper.NewBookEngine(mapper.BookEngineConfig{
			Exchange:       exchange,
			Policy:         policy,
			Strict:         opts.Strict,
			BufferCapacity: opts.BufferCapacity,
			FailOnOverflow: opts.FailOnOverflow,
		}),
	}
}

func (m *BookChangeMapper) CanHandle(msg models.RawMessage) bool {
	return msg.Kind == models.KindBookSnapshot || msg.Kind == models.KindBookUpdate
}

// GetFilters declares the incremental stream plus the REST-style snapshot
// channel the connection layer must fetch to seed reconstruction.
func (m *BookChangeMapper) GetFilters(syms []string) []mapper.Filter {
	lowered := lowercaseAll(syms)
	return []mapper.Filter{
		{Channel: "depth", Symbols: lowered},
		{Channel: "depthSnapshot", Symbols: lowered},
	}
}

func (m *BookChangeMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.BookChange, error) {
	switch data := msg.Data.(type) {
	case *models.BinanceDepthSnapshot:
		id := data.LastUpdateID
		if id == 0 && len(data.Bids) == 0 && len(data.Asks) == 0 {
			id = mapper.EmptySnapshotID
		}
		return m.engine.Apply(mapper.BookUpdate{
			Symbol:        symbols.Normalize(m.exchange, msg.Symbol),
			IsSnapshot:    true,
			FirstUpdateID: id,
			FinalUpdateID: id,
			Bids:          mapper.Levels(data.Bids),
			Asks:          mapper.Levels(data.Asks),
		}, localTimestamp)

	case *models.BinanceDepthUpdate:
		ts := data.EventTime
		if data.TransactTime != 0 {
			ts = data.TransactTime
		}
		return m.engine.Apply(mapper.BookUpdate{
			Symbol:            symbols.Normalize(m.exchange, data.Symbol),
			FirstUpdateID:     data.FirstUpdateID,
			FinalUpdateID:     data.FinalUpdateID,
			PrevFinalUpdateID: data.PrevFinalUpdateID,
			Bids:              mapper.Levels(data.Bids),
			Asks:              mapper.Levels(data.Asks),
			Timestamp:         time.UnixMilli(ts).UTC(),
		}, localTimestamp)
	}
	return nil, nil
}
