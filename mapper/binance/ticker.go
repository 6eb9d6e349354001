package binance

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// DerivativeTickerMapper merges the futures markPrice, ticker and open
// interest streams into coherent derivative ticker events.
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
	switch msg.Kind {
	case models.KindMarkPrice, models.KindTicker, models.KindOpenInterest:
		return true
	}
	return false
}

func (m *DerivativeTickerMapper) GetFilters(syms []string) []mapper.Filter {
	lowered := lowercaseAll(syms)
	return []mapper.Filter{
		{Channel: "markPrice", Symbols: lowered},
		{Channel: "ticker", Symbols: lowered},
		{Channel: "openInterest", Symbols: lowered},
	}
}

func (m *DerivativeTickerMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.DerivativeTicker, error) {
	var symbol string

	switch data := msg.Data.(type) {
	case *models.BinanceMarkPrice:
		symbol = symbols.Normalize(m.exchange, data.Symbol)
		if v, ok := mapper.ParseFloat(data.MarkPrice); ok {
			m.pending.UpdateMarkPrice(symbol, v)
		}
		if v, ok := mapper.ParseFloat(data.FundingRate); ok {
			m.pending.UpdateFundingRate(symbol, v)
		}
		m.pending.UpdateTimestamp(symbol, time.UnixMilli(data.EventTime).UTC())

	case *models.BinanceTicker:
		symbol = symbols.Normalize(m.exchange, data.Symbol)
		if v, ok := mapper.ParseFloat(data.LastPrice); ok {
			m.pending.UpdateLastPrice(symbol, v)
		}
		m.pending.UpdateTimestamp(symbol, time.UnixMilli(data.EventTime).UTC())

	case *models.BinanceOpenInterest:
		symbol = symbols.Normalize(m.exchange, data.Symbol)
		if v, ok := mapper.ParseFloat(data.OpenInterest); ok {
			m.pending.UpdateOpenInterest(symbol, v)
		}
		m.pending.UpdateTimestamp(symbol, time.UnixMilli(data.Time).UTC())

	default:
		return nil, nil
	}

	if !m.pending.HasChanged(symbol) {
		return nil, nil
	}
	return []models.DerivativeTicker{m.pending.Snapshot(symbol, localTimestamp)}, nil
}
