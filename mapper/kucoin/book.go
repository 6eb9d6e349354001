package kucoin

import (
	"strconv"
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// BookChangeMapper reconstructs KuCoin order books from a REST level2
// snapshot plus /market/level2:<symbol> updates. An update covers the
// inclusive range [sequenceStart, sequenceEnd]; the first one applied must
// straddle the snapshot sequence.
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
	return []mapper.Filter{
		{Channel: "/market/level2", Symbols: syms},
		{Channel: "level2Snapshot", Symbols: syms},
	}
}

func (m *BookChangeMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.BookChange, error) {
	switch data := msg.Data.(type) {
	case *models.KucoinLevel2Snapshot:
		seq := mapper.EmptySnapshotID
		if parsed, err := strconv.ParseInt(data.Sequence, 10, 64); err == nil {
			seq = parsed
		}
		return m.engine.Apply(mapper.BookUpdate{
			Symbol:        symbols.Normalize(m.exchange, msg.Symbol),
			IsSnapshot:    true,
			FirstUpdateID: seq,
			FinalUpdateID: seq,
			Bids:          mapper.Levels(data.Bids),
			Asks:          mapper.Levels(data.Asks),
			Timestamp:     time.UnixMilli(data.Time).UTC(),
		}, localTimestamp)

	case *models.KucoinLevel2Update:
		return m.engine.Apply(mapper.BookUpdate{
			Symbol:        symbols.Normalize(m.exchange, data.Symbol),
			FirstUpdateID: data.SequenceStart,
			FinalUpdateID: data.SequenceEnd,
			Bids:          parseChanges(data.Changes.Bids),
			Asks:          parseChanges(data.Changes.Asks),
		}, localTimestamp)
	}
	return nil, nil
}

// parseChanges converts [price, size, sequence] change triples. A zero
// price marks KuCoin's "clear the side" placeholder and is skipped.
func parseChanges(raw [][3]string) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(raw))
	for _, entry := range raw {
		lvl, ok := mapper.Level(entry[0], entry[1])
		if !ok || lvl.Price == 0 {
			continue
		}
		out = append(out, lvl)
	}
	return out
}
