// Package kucoin maps KuCoin spot wire messages to canonical events. Book
// reconstruction is seeded from a REST level2 snapshot; updates carry a
// sequence range per message.
package kucoin

import (
	"strconv"
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// TradesMapper normalizes /market/match:<symbol> pushes.
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
	return []mapper.Filter{{Channel: "/market/match", Symbols: syms}}
}

func (m *TradesMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.Trade, error) {
	match, ok := msg.Data.(*models.KucoinMatch)
	if !ok {
		return nil, nil
	}

	price, okP := mapper.ParseFloat(match.Price)
	amount, okQ := mapper.ParseFloat(match.Size)
	if !okP || !okQ {
		return nil, nil
	}

	side := models.SideBuy
	if match.Side == "sell" {
		side = models.SideSell
	}

	// Match times are nanoseconds since epoch as a decimal string.
	ts := localTimestamp
	if ns, err := strconv.ParseInt(match.Time, 10, 64); err == nil {
		ts = time.Unix(0, ns).UTC()
	}

	return []models.Trade{{
		Exchange:       m.exchange,
		Symbol:         symbols.Normalize(m.exchange, match.Symbol),
		TradeID:        match.TradeID,
		Price:          price,
		Amount:         amount,
		Side:           side,
		Timestamp:      ts,
		LocalTimestamp: localTimestamp,
	}}, nil
}
