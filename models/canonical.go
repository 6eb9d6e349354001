// Package models defines the canonical event types produced by the
// normalization layer together with the exchange-native wire structures the
// feed collaborators decode into.
package models

import "time"

// TradeSide is the taker side of an executed trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// BookLevel is a single price level. Amount 0 means "remove this level".
type BookLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// Trade is a normalized trade print, identical in shape across exchanges.
type Trade struct {
	Exchange       string    `json:"exchange"`
	Symbol         string    `json:"symbol"`
	TradeID        string    `json:"trade_id"`
	Price          float64   `json:"price"`
	Amount         float64   `json:"amount"`
	Side           TradeSide `json:"side"`
	Timestamp      time.Time `json:"timestamp"`
	LocalTimestamp time.Time `json:"local_timestamp"`
}

// BookChange is a normalized order book event. When IsSnapshot is true the
// bid and ask lists carry the full visible book; otherwise they carry only
// the levels that changed since the previous event.
type BookChange struct {
	Exchange       string      `json:"exchange"`
	Symbol         string      `json:"symbol"`
	IsSnapshot     bool        `json:"is_snapshot"`
	Bids           []BookLevel `json:"bids"`
	Asks           []BookLevel `json:"asks"`
	Timestamp      time.Time   `json:"timestamp"`
	LocalTimestamp time.Time   `json:"local_timestamp"`
}

// DerivativeTicker is a normalized derivatives instrument ticker. Pointer
// fields distinguish "never reported by the exchange" (nil) from a reported
// zero value, which matters for funding rates that legitimately cross zero.
type DerivativeTicker struct {
	Exchange       string    `json:"exchange"`
	Symbol         string    `json:"symbol"`
	FundingRate    *float64  `json:"funding_rate,omitempty"`
	MarkPrice      *float64  `json:"mark_price,omitempty"`
	LastPrice      *float64  `json:"last_price,omitempty"`
	OpenInterest   *float64  `json:"open_interest,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	LocalTimestamp time.Time `json:"local_timestamp"`
}
