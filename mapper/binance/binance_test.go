package binance

import (
	"errors"
	"testing"
	"time"

	"normflow/mapper"
	"normflow/models"
)

var localTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func tradeMsg(data *models.BinanceTrade) models.RawMessage {
	return models.RawMessage{Kind: models.KindTrade, Channel: "trade", Symbol: data.Symbol, Data: data}
}

func TestTradesMapperSideFromBuyerIsMaker(t *testing.T) {
	m := NewTradesMapper("binance")

	trades, err := m.Map(tradeMsg(&models.BinanceTrade{
		Symbol:       "BTCUSDT",
		TradeID:      12345,
		Price:        "50000.10",
		Quantity:     "0.5",
		TradeTime:    1714560000000,
		BuyerIsMaker: true,
	}), localTime)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(trades))
	}
	trade := trades[0]
	if trade.Side != models.SideSell {
		t.Fatalf("buyer-is-maker means the taker sold, got %s", trade.Side)
	}
	if trade.Exchange != "binance" || trade.Symbol != "BTCUSDT" || trade.TradeID != "12345" {
		t.Fatalf("unexpected trade identity: %+v", trade)
	}
	if trade.Price != 50000.10 || trade.Amount != 0.5 {
		t.Fatalf("unexpected trade values: %+v", trade)
	}
	if !trade.LocalTimestamp.Equal(localTime) {
		t.Fatalf("local timestamp must be preserved")
	}
}

func TestTradesMapperIgnoresOtherKinds(t *testing.T) {
	m := NewTradesMapper("binance")
	if m.CanHandle(models.RawMessage{Kind: models.KindBookUpdate}) {
		t.Fatalf("trades mapper must not handle book updates")
	}
}

func TestBookChangeMapperSpotFlow(t *testing.T) {
	m := NewBookChangeMapper("binance", mapper.BookOptions{Strict: true})

	// Update before the snapshot: buffered.
	events, err := m.Map(models.RawMessage{
		Kind:   models.KindBookUpdate,
		Symbol: "BTCUSDT",
		Data: &models.BinanceDepthUpdate{
			Symbol:        "BTCUSDT",
			EventTime:     1714560000100,
			FirstUpdateID: 101,
			FinalUpdateID: 105,
			Bids:          [][2]string{{"50000", "1"}},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map update: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected pre-snapshot update to be buffered, got %d events", len(events))
	}

	// Snapshot unlocks it.
	events, err = m.Map(models.RawMessage{
		Kind:   models.KindBookSnapshot,
		Symbol: "BTCUSDT",
		Data: &models.BinanceDepthSnapshot{
			LastUpdateID: 100,
			Bids:         [][2]string{{"49999", "2"}},
			Asks:         [][2]string{{"50001", "3"}},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map snapshot: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected snapshot + replayed update, got %d", len(events))
	}
	if !events[0].IsSnapshot || events[1].IsSnapshot {
		t.Fatalf("event snapshot flags wrong: %+v", events)
	}
	if events[0].Bids[0].Price != 49999 || events[1].Bids[0].Price != 50000 {
		t.Fatalf("unexpected level data: %+v", events)
	}
}

func TestFuturesBookMapperUsesPuChainingAfterCutover(t *testing.T) {
	m := NewFuturesBookChangeMapper("binance-futures", PuProtocolCutover.Add(time.Hour), mapper.BookOptions{Strict: true})

	if _, err := m.Map(models.RawMessage{
		Kind:   models.KindBookSnapshot,
		Symbol: "BTCUSDT",
		Data:   &models.BinanceDepthSnapshot{LastUpdateID: 100, Bids: [][2]string{{"1", "1"}}},
	}, localTime); err != nil {
		t.Fatalf("map snapshot: %v", err)
	}

	// Futures overlap closes at lastUpdateId itself: U <= 100 <= u.
	if _, err := m.Map(models.RawMessage{
		Kind:   models.KindBookUpdate,
		Symbol: "BTCUSDT",
		Data: &models.BinanceDepthUpdate{
			Symbol:        "BTCUSDT",
			FirstUpdateID: 99,
			FinalUpdateID: 104,
		},
	}, localTime); err != nil {
		t.Fatalf("overlapping first update must pass: %v", err)
	}

	// Chained update passes.
	if _, err := m.Map(models.RawMessage{
		Kind:   models.KindBookUpdate,
		Symbol: "BTCUSDT",
		Data: &models.BinanceDepthUpdate{
			Symbol:            "BTCUSDT",
			FirstUpdateID:     105,
			FinalUpdateID:     110,
			PrevFinalUpdateID: 104,
		},
	}, localTime); err != nil {
		t.Fatalf("chained update must pass: %v", err)
	}

	// Broken chain fails in strict mode.
	_, err := m.Map(models.RawMessage{
		Kind:   models.KindBookUpdate,
		Symbol: "BTCUSDT",
		Data: &models.BinanceDepthUpdate{
			Symbol:            "BTCUSDT",
			FirstUpdateID:     115,
			FinalUpdateID:     120,
			PrevFinalUpdateID: 112,
		},
	}, localTime)
	var recErr *mapper.ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected ReconciliationError for broken pu chain, got %v", err)
	}
}

func TestFuturesBookMapperSpotRulesBeforeCutover(t *testing.T) {
	m := NewFuturesBookChangeMapper("binance-futures", PuProtocolCutover.Add(-time.Hour), mapper.BookOptions{Strict: true})

	if _, err := m.Map(models.RawMessage{
		Kind:   models.KindBookSnapshot,
		Symbol: "BTCUSDT",
		Data:   &models.BinanceDepthSnapshot{LastUpdateID: 100, Bids: [][2]string{{"1", "1"}}},
	}, localTime); err != nil {
		t.Fatalf("map snapshot: %v", err)
	}

	// Updates with arbitrary pu gaps are fine pre-cutover.
	for i, upd := range []*models.BinanceDepthUpdate{
		{Symbol: "BTCUSDT", FirstUpdateID: 101, FinalUpdateID: 105, PrevFinalUpdateID: 1},
		{Symbol: "BTCUSDT", FirstUpdateID: 106, FinalUpdateID: 110, PrevFinalUpdateID: 2},
	} {
		events, err := m.Map(models.RawMessage{Kind: models.KindBookUpdate, Symbol: "BTCUSDT", Data: upd}, localTime)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if len(events) != 1 {
			t.Fatalf("update %d: expected one event, got %d", i, len(events))
		}
	}
}

func TestDerivativeTickerMapperMergesStreams(t *testing.T) {
	m := NewDerivativeTickerMapper("binance-futures")

	tickers, err := m.Map(models.RawMessage{
		Kind: models.KindMarkPrice,
		Data: &models.BinanceMarkPrice{
			Symbol:      "BTCUSDT",
			EventTime:   1714560000000,
			MarkPrice:   "50010.5",
			FundingRate: "0.0001",
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map mark price: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("expected a ticker after first mark price, got %d", len(tickers))
	}
	if tickers[0].MarkPrice == nil || *tickers[0].MarkPrice != 50010.5 {
		t.Fatalf("mark price missing: %+v", tickers[0])
	}
	if tickers[0].LastPrice != nil {
		t.Fatalf("last price must stay unknown until reported")
	}

	// Unchanged mark price: nothing to emit.
	tickers, err = m.Map(models.RawMessage{
		Kind: models.KindMarkPrice,
		Data: &models.BinanceMarkPrice{
			Symbol:      "BTCUSDT",
			EventTime:   1714560001000,
			MarkPrice:   "50010.5",
			FundingRate: "0.0001",
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map repeated mark price: %v", err)
	}
	if len(tickers) != 0 {
		t.Fatalf("expected no ticker for unchanged fields, got %d", len(tickers))
	}

	// Last price arrives on the ticker stream, mark price is retained.
	tickers, err = m.Map(models.RawMessage{
		Kind: models.KindTicker,
		Data: &models.BinanceTicker{Symbol: "BTCUSDT", EventTime: 1714560002000, LastPrice: "50009"},
	}, localTime)
	if err != nil {
		t.Fatalf("map ticker: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("expected a ticker after last price change, got %d", len(tickers))
	}
	if tickers[0].LastPrice == nil || *tickers[0].LastPrice != 50009 {
		t.Fatalf("last price missing: %+v", tickers[0])
	}
	if tickers[0].MarkPrice == nil || *tickers[0].MarkPrice != 50010.5 {
		t.Fatalf("mark price must be retained: %+v", tickers[0])
	}
}

func TestGetFiltersLowercasesSymbols(t *testing.T) {
	m := NewBookChangeMapper("binance", mapper.BookOptions{})
	filters := m.GetFilters([]string{"BTCUSDT", "ETHUSDT"})
	if len(filters) != 2 {
		t.Fatalf("expected depth and snapshot filters, got %d", len(filters))
	}
	for _, f := range filters {
		for _, s := range f.Symbols {
			if s != "btcusdt" && s != "ethusdt" {
				t.Fatalf("symbols must be lowercased: %v", f.Symbols)
			}
		}
	}

	all := NewTradesMapper("binance").GetFilters(nil)
	if len(all) != 1 || all[0].Symbols != nil {
		t.Fatalf("omitted symbols must produce an all-symbols filter: %+v", all)
	}
}
