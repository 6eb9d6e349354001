// Package normalize is the entry point of the normalization layer: it
// resolves an exchange id to ready-to-use mapper instances.
//
// Every call constructs a fresh mapper with fresh per-symbol state. Mapper
// state is not safely shareable across independent streams, so nothing is
// cached here.
package normalize

import (
	"fmt"
	"sort"
	"time"

	"normflow/mapper"
	"normflow/mapper/binance"
	"normflow/mapper/bybit"
	"normflow/mapper/kucoin"
	"normflow/mapper/okx"
)

// Supported exchange identifiers. The three Binance ids share mapper code
// and differ only in the market they tag output with.
const (
	ExchangeBinance            = "binance"
	ExchangeBinanceFutures     = "binance-futures"
	ExchangeBinanceCoinFutures = "binance-coin-futures"
	ExchangeBybit              = "bybit"
	ExchangeOKX                = "okx"
	ExchangeKucoin             = "kucoin"
)

// factories holds the three independent mapper constructors for one
// exchange. A nil entry means the exchange does not offer that event kind.
// The reference timestamp selects protocol-version-specific behavior for
// exchanges that changed wire semantics at a known date.
type factories struct {
	trades  func(at time.Time) mapper.TradesMapper
	book    func(at time.Time, opts mapper.BookOptions) mapper.BookChangeMapper
	tickers func(at time.Time) mapper.DerivativeTickerMapper
}

var registry = map[string]factories{
	ExchangeBinance: {
		trades: func(time.Time) mapper.TradesMapper {
			return binance.NewTradesMapper(ExchangeBinance)
		},
		book: func(_ time.Time, opts mapper.BookOptions) mapper.BookChangeMapper {
			return binance.NewBookChangeMapper(ExchangeBinance, opts)
		},
	},
	ExchangeBinanceFutures: {
		trades: func(time.Time) mapper.TradesMapper {
			return binance.NewTradesMapper(ExchangeBinanceFutures)
		},
		book: func(at time.Time, opts mapper.BookOptions) mapper.BookChangeMapper {
			return binance.NewFuturesBookChangeMapper(ExchangeBinanceFutures, at, opts)
		},
		tickers: func(time.Time) mapper.DerivativeTickerMapper {
			return binance.NewDerivativeTickerMapper(ExchangeBinanceFutures)
		},
	},
	ExchangeBinanceCoinFutures: {
		trades: func(time.Time) mapper.TradesMapper {
			return binance.NewTradesMapper(ExchangeBinanceCoinFutures)
		},
		book: func(at time.Time, opts mapper.BookOptions) mapper.BookChangeMapper {
			return binance.NewFuturesBookChangeMapper(ExchangeBinanceCoinFutures, at, opts)
		},
		tickers: func(time.Time) mapper.DerivativeTickerMapper {
			return binance.NewDerivativeTickerMapper(ExchangeBinanceCoinFutures)
		},
	},
	ExchangeBybit: {
		trades: func(time.Time) mapper.TradesMapper {
			return bybit.NewTradesMapper(ExchangeBybit)
		},
		book: func(_ time.Time, opts mapper.BookOptions) mapper.BookChangeMapper {
			return bybit.NewBookChangeMapper(ExchangeBybit, opts)
		},
		tickers: func(time.Time) mapper.DerivativeTickerMapper {
			return bybit.NewDerivativeTickerMapper(ExchangeBybit)
		},
	},
	ExchangeOKX: {
		trades: func(time.Time) mapper.TradesMapper {
			return okx.NewTradesMapper(ExchangeOKX)
		},
		book: func(_ time.Time, opts mapper.BookOptions) mapper.BookChangeMapper {
			return okx.NewBookChangeMapper(ExchangeOKX, opts)
		},
		tickers: func(time.Time) mapper.DerivativeTickerMapper {
			return okx.NewDerivativeTickerMapper(ExchangeOKX)
		},
	},
	ExchangeKucoin: {
		trades: func(time.Time) mapper.TradesMapper {
			return kucoin.NewTradesMapper(ExchangeKucoin)
		},
		book: func(_ time.Time, opts mapper.BookOptions) mapper.BookChangeMapper {
			return kucoin.NewBookChangeMapper(ExchangeKucoin, opts)
		},
	},
}

// Trades returns a fresh trades mapper for the exchange. The reference
// timestamp at is the time the stream being normalized was recorded (or now
// for live feeds).
func Trades(exchange string, at time.Time) (mapper.TradesMapper, error) {
	f, ok := registry[exchange]
	if !ok || f.trades == nil {
		return nil, fmt.Errorf("%w: no trades mapper for %q", mapper.ErrUnsupportedExchange, exchange)
	}
	return f.trades(at), nil
}

// BookChanges returns a fresh book change mapper with empty per-symbol
// reconstruction state.
func BookChanges(exchange string, at time.Time, opts mapper.BookOptions) (mapper.BookChangeMapper, error) {
	f, ok := registry[exchange]
	if !ok || f.book == nil {
		return nil, fmt.Errorf("%w: no book change mapper for %q", mapper.ErrUnsupportedExchange, exchange)
	}
	return f.book(at, opts), nil
}

// DerivativeTickers returns a fresh derivative ticker mapper.
func DerivativeTickers(exchange string, at time.Time) (mapper.DerivativeTickerMapper, error) {
	f, ok := registry[exchange]
	if !ok || f.tickers == nil {
		return nil, fmt.Errorf("%w: no derivative ticker mapper for %q", mapper.ErrUnsupportedExchange, exchange)
	}
	return f.tickers(at), nil
}

// Supported lists the registered exchange identifiers, sorted.
func Supported() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
