package bybit

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// DerivativeTickerMapper merges tickers.<symbol> pushes into coherent
// derivative ticker events. Delta pushes omit unchanged fields, so the
// pending tracker fills in the rest.
type DerivativeTickerMapper struct {
	exchange string
	pending  *mapper.PendingTickers
}

func NewDerivativeTickerMapper(exchange string) *DerivativeTickerMapper {
	return &DerivativeTickerMapper{
		exchange: exchange,
		pending:  mapper.NewPendingTickers(exchange),
	}
}

func (m *DerivativeTickerMapper) CanHandle(msg models.RawMessage) bool {
	return msg.Kind == models.KindTicker
}

func (m *DerivativeTickerMapper) GetFilters(syms []string) []mapper.Filter {
	return []mapper.Filter{{Channel: "tickers", Symbols: syms}}
}

func (m *DerivativeTickerMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.DerivativeTicker, error) {
	push, ok := msg.Data.(*models.BybitTicker)
	if !ok {
		return nil, nil
	}

	symbol := symbols.Normalize(m.exchange, push.Data.Symbol)
	if v, ok := mapper.ParseFloat(push.Data.LastPrice); ok {
		m.pending.UpdateLastPrice(symbol, v)
	}
	if v, ok := mapper.ParseFloat(push.Data.MarkPrice); ok {
		m.pending.UpdateMarkPrice(symbol, v)
	}
	if v, ok := mapper.ParseFloat(push.Data.FundingRate); ok {
		m.pending.UpdateFundingRate(symbol, v)
	}
	if v, ok := mapper.ParseFloat(push.Data.OpenInterest); ok {
		m.pending.UpdateOpenInterest(symbol, v)
	}
	m.pending.UpdateTimestamp(symbol, time.UnixMilli(push.Timestamp).UTC())

	if !m.pending.HasChanged(symbol) {
		return nil, nil
	}
	return []models.DerivativeTicker{m.pending.Snapshot(symbol, localTimestamp)}, nil
}
