// Package symbols converts exchange-native instrument identifiers into the
// canonical form carried on normalized events: uppercase, no separators,
// BTC instead of XBT.
package symbols

import "strings"

// Normalize converts an exchange-native symbol to canonical form.
// Currently supported exchanges: binance, binance-futures,
// binance-coin-futures, bybit, okx, kucoin.
func Normalize(exchange, sym string) string {
	switch strings.ToLower(exchange) {
	case "okx":
		// OKX: BTC-USDT, BTC-USDT-SWAP
		sym = strings.TrimSuffix(sym, "-SWAP")
		sym = strings.ReplaceAll(sym, "-", "")
	case "kucoin":
		// KuCoin spot: BTC-USDT; futures: XBTUSDTM
		sym = strings.ReplaceAll(sym, "-", "")
		sym = strings.TrimSuffix(sym, "M")
		if strings.HasPrefix(sym, "XBT") {
			sym = "BTC" + sym[3:]
		}
	}
	return strings.ToUpper(sym)
}
