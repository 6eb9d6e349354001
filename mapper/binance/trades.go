// Package binance maps Binance spot and futures wire messages to canonical
// events. One mapper codebase serves the spot, USDT-margined and
// coin-margined markets; the exchange id passed at construction tags the
// output.
package binance

import (
	"strconv"
	"strings"
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// TradesMapper normalizes <symbol>@trade stream events.
type TradesMapper struct {
	exchange string
}

// NewTradesMapper builds a trades mapper tagging output with exchange.
func NewTradesMapper(exchange string) *TradesMapper {
	return &TradesMapper{exchange: exchange}
}

func (m *TradesMapper) CanHandle(msg models.RawMessage) bool {
	return msg.Kind == models.KindTrade
}

// GetFilters declares the trade stream subscription. Binance stream names
// are lowercase.
func (m *TradesMapper) GetFilters(syms []string) []mapper.Filter {
	return []mapper.Filter{{Channel: "trade", Symbols: lowercaseAll(syms)}}
}

func (m *TradesMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.Trade, error) {
	trade, ok := msg.Data.(*models.BinanceTrade)
	if !ok {
		return nil, nil
	}

	price, okP := mapper.ParseFloat(trade.Price)
	amount, okQ := mapper.ParseFloat(trade.Quantity)
	if !okP || !okQ {
		return nil, nil
	}

	// The "m" flag marks the buyer as maker, meaning the taker sold.
	side := models.SideBuy
	if trade.BuyerIsMaker {
		side = models.SideSell
	}

	ts := trade.TradeTime
	if ts == 0 {
		ts = trade.EventTime
	}

	return []models.Trade{{
		Exchange:       m.exchange,
		Symbol:         symbols.Normalize(m.exchange, trade.Symbol),
		TradeID:        strconv.FormatInt(trade.TradeID, 10),
		Price:          price,
		Amount:         amount,
		Side:           side,
		Timestamp:      time.UnixMilli(ts).UTC(),
		LocalTimestamp: localTimestamp,
	}}, nil
}

func lowercaseAll(syms []string) []string {
	if len(syms) == 0 {
		return nil
	}
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = strings.ToLower(s)
	}
	return out
}
