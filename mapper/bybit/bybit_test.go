package bybit

import (
	"testing"
	"time"

	"normflow/mapper"
	"normflow/models"
)

var localTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTradesMapperMapsAllEntries(t *testing.T) {
	m := NewTradesMapper("bybit")
	trades, err := m.Map(models.RawMessage{
		Kind: models.KindTrade,
		Data: &models.BybitTrade{
			Topic: "publicTrade.BTCUSDT",
			Data: []models.BybitTradeEntry{
				{TradeTime: 1714560000000, Symbol: "BTCUSDT", Side: "Buy", Size: "0.1", Price: "50000", TradeID: "a"},
				{TradeTime: 1714560000001, Symbol: "BTCUSDT", Side: "Sell", Size: "0.2", Price: "50001", TradeID: "b"},
			},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Side != models.SideBuy || trades[1].Side != models.SideSell {
		t.Fatalf("sides mapped wrong: %+v", trades)
	}
	if trades[1].TradeID != "b" || trades[1].Amount != 0.2 {
		t.Fatalf("unexpected second trade: %+v", trades[1])
	}
}

func TestBookChangeMapperInBandSnapshot(t *testing.T) {
	m := NewBookChangeMapper("bybit", mapper.BookOptions{Strict: true})

	events, err := m.Map(models.RawMessage{
		Kind: models.KindBookSnapshot,
		Data: &models.BybitOrderbook{
			Type:      "snapshot",
			Timestamp: 1714560000000,
			Data: models.BybitOrderbookData{
				Symbol:   "BTCUSDT",
				Bids:     [][2]string{{"50000", "1"}},
				Asks:     [][2]string{{"50001", "2"}},
				UpdateID: 100,
			},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map snapshot: %v", err)
	}
	if len(events) != 1 || !events[0].IsSnapshot {
		t.Fatalf("expected one snapshot event, got %+v", events)
	}

	// Contiguous delta (u advances by one) passes.
	events, err = m.Map(models.RawMessage{
		Kind: models.KindBookUpdate,
		Data: &models.BybitOrderbook{
			Type:      "delta",
			Timestamp: 1714560000100,
			Data: models.BybitOrderbookData{
				Symbol:   "BTCUSDT",
				Bids:     [][2]string{{"50000", "0"}},
				UpdateID: 101,
			},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map delta: %v", err)
	}
	if len(events) != 1 || events[0].IsSnapshot {
		t.Fatalf("expected one delta event, got %+v", events)
	}
	if events[0].Bids[0].Amount != 0 {
		t.Fatalf("zero amount level removal must survive mapping: %+v", events[0])
	}

	// Repeated delta id is stale.
	events, err = m.Map(models.RawMessage{
		Kind: models.KindBookUpdate,
		Data: &models.BybitOrderbook{
			Type: "delta",
			Data: models.BybitOrderbookData{Symbol: "BTCUSDT", UpdateID: 101},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map stale delta: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected stale delta to be dropped, got %+v", events)
	}
}

func TestBookChangeMapperServiceRestartSnapshotIgnored(t *testing.T) {
	m := NewBookChangeMapper("bybit", mapper.BookOptions{Strict: true})

	if _, err := m.Map(models.RawMessage{
		Kind: models.KindBookSnapshot,
		Data: &models.BybitOrderbook{
			Type: "snapshot",
			Data: models.BybitOrderbookData{Symbol: "BTCUSDT", UpdateID: 100, Bids: [][2]string{{"1", "1"}}},
		},
	}, localTime); err != nil {
		t.Fatalf("map snapshot: %v", err)
	}

	// u=1 marks a restart snapshot; an initialized symbol keeps its state.
	events, err := m.Map(models.RawMessage{
		Kind: models.KindBookUpdate,
		Data: &models.BybitOrderbook{
			Type: "delta",
			Data: models.BybitOrderbookData{Symbol: "BTCUSDT", UpdateID: 1, Bids: [][2]string{{"2", "2"}}},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map restart snapshot: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("restart snapshot for initialized symbol must emit nothing, got %+v", events)
	}
}

func TestDerivativeTickerMapperPartialDeltas(t *testing.T) {
	m := NewDerivativeTickerMapper("bybit")

	tickers, err := m.Map(models.RawMessage{
		Kind: models.KindTicker,
		Data: &models.BybitTicker{
			Type:      "snapshot",
			Timestamp: 1714560000000,
			Data: models.BybitTickerData{
				Symbol:      "BTCUSDT",
				LastPrice:   "50000",
				MarkPrice:   "50010",
				FundingRate: "0.0001",
			},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map snapshot ticker: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("expected one ticker, got %d", len(tickers))
	}

	// Delta omits every field except funding rate; others are retained.
	tickers, err = m.Map(models.RawMessage{
		Kind: models.KindTicker,
		Data: &models.BybitTicker{
			Type:      "delta",
			Timestamp: 1714560001000,
			Data:      models.BybitTickerData{Symbol: "BTCUSDT", FundingRate: "0.0002"},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map delta ticker: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("expected one ticker after funding change, got %d", len(tickers))
	}
	ticker := tickers[0]
	if ticker.FundingRate == nil || *ticker.FundingRate != 0.0002 {
		t.Fatalf("funding rate not updated: %+v", ticker)
	}
	if ticker.LastPrice == nil || *ticker.LastPrice != 50000 {
		t.Fatalf("omitted last price must be retained: %+v", ticker)
	}
}
