package kucoin

import (
	"testing"
	"time"

	"normflow/mapper"
	"normflow/models"
)

var localTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTradesMapperParsesNanosecondTime(t *testing.T) {
	m := NewTradesMapper("kucoin")
	trades, err := m.Map(models.RawMessage{
		Kind: models.KindTrade,
		Data: &models.KucoinMatch{
			Symbol:  "BTC-USDT",
			TradeID: "63f1a...",
			Price:   "50000",
			Size:    "0.5",
			Side:    "buy",
			Time:    "1714560000000000000",
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(trades))
	}
	if trades[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected canonical symbol, got %s", trades[0].Symbol)
	}
	if got := trades[0].Timestamp.UnixMilli(); got != 1714560000000 {
		t.Fatalf("nanosecond time parsed wrong: %d", got)
	}
}

func TestBookChangeMapperSequenceRange(t *testing.T) {
	m := NewBookChangeMapper("kucoin", mapper.BookOptions{Strict: true})

	// Pre-snapshot update buffered.
	events, err := m.Map(models.RawMessage{
		Kind: models.KindBookUpdate,
		Data: &models.KucoinLevel2Update{
			Symbol:        "BTC-USDT",
			SequenceStart: 99,
			SequenceEnd:   101,
			Changes: models.KucoinLevel2Changes{
				Bids: [][3]string{{"50000", "1", "100"}},
			},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map update: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("pre-snapshot update must buffer, got %+v", events)
	}

	// REST snapshot with string sequence unlocks the replay.
	events, err = m.Map(models.RawMessage{
		Kind:   models.KindBookSnapshot,
		Symbol: "BTC-USDT",
		Data: &models.KucoinLevel2Snapshot{
			Sequence: "100",
			Time:     1714560000000,
			Bids:     [][2]string{{"49999", "2"}},
			Asks:     [][2]string{{"50001", "3"}},
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map snapshot: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected snapshot + replayed update, got %d", len(events))
	}
	if events[0].Symbol != "BTCUSDT" || events[1].Symbol != "BTCUSDT" {
		t.Fatalf("symbols must be canonical: %+v", events)
	}

	// Range entirely behind the applied sequence is stale.
	events, err = m.Map(models.RawMessage{
		Kind: models.KindBookUpdate,
		Data: &models.KucoinLevel2Update{
			Symbol:        "BTC-USDT",
			SequenceStart: 95,
			SequenceEnd:   100,
		},
	}, localTime)
	if err != nil {
		t.Fatalf("map stale update: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("stale range must be dropped, got %+v", events)
	}
}

func TestParseChangesSkipsZeroPricePlaceholder(t *testing.T) {
	levels := parseChanges([][3]string{
		{"0", "0", "1"},
		{"50000", "1.5", "2"},
	})
	if len(levels) != 1 || levels[0].Price != 50000 {
		t.Fatalf("zero price placeholder must be skipped, got %+v", levels)
	}
}
