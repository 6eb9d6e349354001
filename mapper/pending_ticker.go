package mapper

import (
	"time"

	"normflow/models"
)

// pendingTicker holds the last known derivative ticker fields for one
// symbol together with per-field dirty flags. Fields never reported stay
// nil, which keeps "not yet reported" distinct from "reported as zero".
type pendingTicker struct {
	fundingRate  *float64
	markPrice    *float64
	lastPrice    *float64
	openInterest *float64
	timestamp    time.Time
	dirty        bool
}

// PendingTickers accumulates partial derivative ticker fields arriving
// piecemeal across distinct message kinds, keyed by symbol. A snapshot is
// worth emitting only when some field actually changed. Not safe for
// concurrent use.
type PendingTickers struct {
	exchange string
	tickers  map[string]*pendingTicker
}

// NewPendingTickers returns an empty accumulator tagging snapshots with the
// given exchange id.
func NewPendingTickers(exchange string) *PendingTickers {
	return &PendingTickers{
		exchange: exchange,
		tickers:  make(map[string]*pendingTicker),
	}
}

func (p *PendingTickers) ticker(symbol string) *pendingTicker {
	t, ok := p.tickers[symbol]
	if !ok {
		t = &pendingTicker{}
		p.tickers[symbol] = t
	}
	return t
}

func setField(field **float64, value float64, dirty *bool) {
	if *field == nil || **field != value {
		v := value
		*field = &v
		*dirty = true
	}
}

// UpdateFundingRate records a funding rate, marking the symbol dirty only
// when the value differs from the stored one.
func (p *PendingTickers) UpdateFundingRate(symbol string, value float64) {
	t := p.ticker(symbol)
	setField(&t.fundingRate, value, &t.dirty)
}

// UpdateMarkPrice records a mark price.
func (p *PendingTickers) UpdateMarkPrice(symbol string, value float64) {
	t := p.ticker(symbol)
	setField(&t.markPrice, value, &t.dirty)
}

// UpdateLastPrice records a last trade price.
func (p *PendingTickers) UpdateLastPrice(symbol string, value float64) {
	t := p.ticker(symbol)
	setField(&t.lastPrice, value, &t.dirty)
}

// UpdateOpenInterest records an open interest value.
func (p *PendingTickers) UpdateOpenInterest(symbol string, value float64) {
	t := p.ticker(symbol)
	setField(&t.openInterest, value, &t.dirty)
}

// UpdateTimestamp records the exchange-reported time of the most recent
// contributing message. Timestamp changes alone do not mark the symbol
// dirty.
func (p *PendingTickers) UpdateTimestamp(symbol string, ts time.Time) {
	p.ticker(symbol).timestamp = ts
}

// HasChanged reports whether any field changed since the last Snapshot.
func (p *PendingTickers) HasChanged(symbol string) bool {
	t, ok := p.tickers[symbol]
	return ok && t.dirty
}

// Snapshot builds an immutable ticker from the current field values and
// clears the dirty flag.
func (p *PendingTickers) Snapshot(symbol string, localTimestamp time.Time) models.DerivativeTicker {
	t := p.ticker(symbol)
	t.dirty = false
	ts := t.timestamp
	if ts.IsZero() {
		ts = localTimestamp
	}
	return models.DerivativeTicker{
		Exchange:       p.exchange,
		Symbol:         symbol,
		FundingRate:    copyField(t.fundingRate),
		MarkPrice:      copyField(t.markPrice),
		LastPrice:      copyField(t.lastPrice),
		OpenInterest:   copyField(t.openInterest),
		Timestamp:      ts,
		LocalTimestamp: localTimestamp,
	}
}

// copyField detaches the returned pointer from the accumulator so later
// updates cannot mutate an already emitted ticker.
func copyField(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
