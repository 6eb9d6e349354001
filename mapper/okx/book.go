package okx

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// BookChangeMapper reconstructs OKX order books from the books channel.
// Updates cover the range (prevSeqId, seqId]; a gap exists when an update's
// prevSeqId does not match the last applied seqId.
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
	return []mapper.Filter{{Channel: "books", Symbols: syms}}
}

func (m *BookChangeMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.BookChange, error) {
	push, ok := msg.Data.(*models.OKXBooks)
	if !ok {
		return nil, nil
	}

	symbol := symbols.Normalize(m.exchange, push.Arg.InstID)
	isSnapshot := push.Action == "snapshot"

	var events []models.BookChange
	for _, data := range push.Data {
		update := mapper.BookUpdate{
			Symbol:     symbol,
			IsSnapshot: isSnapshot,
			Bids:       parseLevels(data.Bids),
			Asks:       parseLevels(data.Asks),
			Timestamp:  parseMillis(data.Ts),
		}
		if isSnapshot {
			update.FirstUpdateID = data.SeqID
			update.FinalUpdateID = data.SeqID
		} else {
			// prevSeqId names the last id already applied, so the
			// update itself starts one past it.
			update.FirstUpdateID = data.PrevSeqID + 1
			update.FinalUpdateID = data.SeqID
		}

		mapped, err := m.engine.Apply(update, localTimestamp)
		if err != nil {
			return events, err
		}
		events = append(events, mapped...)
	}
	return events, nil
}

// parseLevels converts OKX [price, size, liquidated, count] level arrays,
// keeping only the price and size columns.
func parseLevels(raw [][]string) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		if lvl, ok := mapper.Level(entry[0], entry[1]); ok {
			out = append(out, lvl)
		}
	}
	return out
}
