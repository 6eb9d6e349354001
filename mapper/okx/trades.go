// Package okx maps OKX v5 wire messages to canonical events. Book
// snapshots arrive in-band (action=snapshot) and updates are chained
// through seqId/prevSeqId pairs.
package okx

import (
	"time"

	"normflow/internal/symbols"
	"normflow/mapper"
	"normflow/models"
)

// TradesMapper normalizes trades channel pushes.
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
	return []mapper.Filter{{Channel: "trades", Symbols: syms}}
}

func (m *TradesMapper) Map(msg models.RawMessage, localTimestamp time.Time) ([]models.Trade, error) {
	push, ok := msg.Data.(*models.OKXTrades)
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
		if entry.Side == "sell" {
			side = models.SideSell
		}
		trades = append(trades, models.Trade{
			Exchange:       m.exchange,
			Symbol:         symbols.Normalize(m.exchange, entry.InstID),
			TradeID:        entry.TradeID,
			Price:          price,
			Amount:         amount,
			Side:           side,
			Timestamp:      parseMillis(entry.Ts),
			LocalTimestamp: localTimestamp,
		})
	}
	return trades, nil
}

// parseMillis converts OKX millisecond timestamps, which arrive as decimal
// strings.
func parseMillis(s string) time.Time {
	ms, ok := mapper.ParseFloat(s)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
