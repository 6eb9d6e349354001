package okx

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// DerivativeTickerMapper merges the funding-rate, mark-price, tickers and
// open-interest channels, which report their fields independently, into
// coherent derivative ticker events.
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
	case models.KindFundingRate, models.KindMarkPrice, models.KindTicker, models.KindOpenInterest:
		return true
	}
	return false
}

func (m *DerivativeTickerMapper) GetFilters(syms []string) []mapper.Filter {
	return []mapper.Filter{
		{Channel: "funding-rate", Symbols: syms},
		{Channel: "mark-price", Symbols: syms},
		{Channel: "tickers", Symbols: syms},
		{Channel: "open-interest", Symbols: syms},
	}
}

func (m *DerivativeTickerMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.DerivativeTicker, error) {
	var symbol string

	switch data := msg.Data.(type) {
	case *models.OKXFundingRate:
		for _, entry := range data.Data {
			symbol = symbols.Normalize(m.exchange, entry.InstID)
			if v, ok := mapper.ParseFloat(entry.FundingRate); ok {
				m.pending.UpdateFundingRate(symbol, v)
			}
			m.pending.UpdateTimestamp(symbol, parseMillis(entry.FundingTime))
		}

	case *models.OKXMarkPrice:
		for _, entry := range data.Data {
			symbol = symbols.Normalize(m.exchange, entry.InstID)
			if v, ok := mapper.ParseFloat(entry.MarkPx); ok {
				m.pending.UpdateMarkPrice(symbol, v)
			}
			m.pending.UpdateTimestamp(symbol, parseMillis(entry.Ts))
		}

	case *models.OKXTicker:
		for _, entry := range data.Data {
			symbol = symbols.Normalize(m.exchange, entry.InstID)
			if v, ok := mapper.ParseFloat(entry.Last); ok {
				m.pending.UpdateLastPrice(symbol, v)
			}
			m.pending.UpdateTimestamp(symbol, parseMillis(entry.Ts))
		}

	case *models.OKXOpenInterest:
		for _, entry := range data.Data {
			symbol = symbols.Normalize(m.exchange, entry.InstID)
			if v, ok := mapper.ParseFloat(entry.Oi); ok {
				m.pending.UpdateOpenInterest(symbol, v)
			}
			m.pending.UpdateTimestamp(symbol, parseMillis(entry.Ts))
		}

	default:
		return nil, nil
	}

	if symbol == "" || !m.pending.HasChanged(symbol) {
		return nil, nil
	}
	return []models.DerivativeTicker{m.pending.Snapshot(symbol, localTimestamp)}, nil
}
