package symbols

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		exchange string
		in       string
		want     string
	}{
		{"binance", "BTCUSDT", "BTCUSDT"},
		{"binance-futures", "ethusdt", "ETHUSDT"},
		{"okx", "BTC-USDT", "BTCUSDT"},
		{"okx", "BTC-USDT-SWAP", "BTCUSDT"},
		{"kucoin", "BTC-USDT", "BTCUSDT"},
		{"kucoin", "XBTUSDTM", "BTCUSDT"},
		{"bybit", "BTCUSDT", "BTCUSDT"},
	}
	for _, c := range cases {
		if got := Normalize(c.exchange, c.in); got != c.want {
			t.Errorf("Normalize(%s, %s) = %s, want %s", c.exchange, c.in, got, c.want)
		}
	}
}
