// Package bybit maps Bybit v5 linear perpetual wire messages to canonical
// events. The book stream delivers its snapshot in-band as a marked
// message, so no REST seeding is involved.
package bybit

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// TradesMapper normalizes publicTrade.<symbol> push messages.
type TradesMapper struct {
	exchange string
}

func NewTradesMapper(exchange string) *TradesMapper {
	return &TradesMapper{exchange: exchange}
}

func (m *TradesMapper) CanHandle(msg models.RawMessage) bool {
	return msg.Kind == models.KindTrade
}

func (m *TradesMapper) GetFilters(syms []string) []mapper.Filter {
	return []mapper.Filter{{Channel: "publicTrade", Symbols: syms}}
}

func (m *TradesMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.Trade, error) {
	push, ok := msg.Data.(*models.BybitTrade)
	if !ok {
		return nil, nil
	}

	trades := make([]models.Trade, 0, len(push.Data))
	for _, entry := range push.Data {
		price, okP := mapper.ParseFloat(entry.Price)
		amount, okQ := mapper.ParseFloat(entry.Size)
		if !okP || !okQ {
			continue
		}
		side := models.SideBuy
		if entry.Side == "Sell" {
			side = models.SideSell
		}
		trades = append(trades, models.Trade{
			Exchange:       m.exchange,
			Symbol:         symbols.Normalize(m.exchange, entry.Symbol),
			TradeID:        entry.TradeID,
			Price:          price,
			Amount:         amount,
			Side:           side,
			Timestamp:      time.UnixMilli(entry.TradeTime).UTC(),
			LocalTimestamp: localTimestamp,
		})
	}
	return trades, nil
}
