package models

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// BYBIT ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BybitTrade mirrors a publicTrade.<symbol> v5 push message.
type BybitTrade struct {
	Topic     string            `json:"topic"`
	Type      string            `json:"type"`
	Timestamp int64             `json:"ts"`
	Data      []BybitTradeEntry `json:"data"`
}

// BybitTradeEntry is one executed trade within a publicTrade push.
type BybitTradeEntry struct {
	TradeTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Side      string `json:"S"`
	Size      string `json:"v"`
	Price     string `json:"p"`
	TradeID   string `json:"i"`
}

// BybitOrderbook mirrors an orderbook.<depth>.<symbol> v5 push message.
// Type is "snapshot" for the in-band book image and "delta" afterwards.
type BybitOrderbook struct {
	Topic     string             `json:"topic"`
	Type      string             `json:"type"`
	Timestamp int64              `json:"ts"`
	Data      BybitOrderbookData `json:"data"`
}

type BybitOrderbookData struct {
	Symbol   string      `json:"s"`
	Bids     [][2]string `json:"b"`
	Asks     [][2]string `json:"a"`
	UpdateID int64       `json:"u"`
	Seq      int64       `json:"seq"`
}

// BybitTicker mirrors a tickers.<symbol> v5 push message. Delta pushes omit
// unchanged fields, which arrive as empty strings.
type BybitTicker struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"ts"`
	Data      BybitTickerData `json:"data"`
}

type BybitTickerData struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	MarkPrice    string `json:"markPrice"`
	IndexPrice   string `json:"indexPrice"`
	FundingRate  string `json:"fundingRate"`
	OpenInterest string `json:"openInterest"`
}
