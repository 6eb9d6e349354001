package models

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////////// OKX /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// OKXArg identifies the channel and instrument an OKX push belongs to.
type OKXArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// OKXTrades mirrors a trades channel push.
type OKXTrades struct {
	Arg  OKXArg          `json:"arg"`
	Data []OKXTradeEntry `json:"data"`
}

type OKXTradeEntry struct {
	InstID  string `json:"instId"`
	TradeID string `json:"tradeId"`
	Price   string `json:"px"`
	Size    string `json:"sz"`
	Side    string `json:"side"`
	Ts      string `json:"ts"`
}

// OKXBooks mirrors a books channel push. Action is "snapshot" for the
// in-band book image and "update" afterwards.
type OKXBooks struct {
	Arg    OKXArg        `json:"arg"`
	Action string        `json:"action"`
	Data   []OKXBookData `json:"data"`
}

// OKXBookData levels are [price, size, liquidated orders, order count].
type OKXBookData struct {
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
	Ts        string     `json:"ts"`
	SeqID     int64      `json:"seqId"`
	PrevSeqID int64      `json:"prevSeqId"`
}

// OKXFundingRate mirrors a funding-rate channel push.
type OKXFundingRate struct {
	Arg  OKXArg `json:"arg"`
	Data []struct {
		InstID      string `json:"instId"`
		FundingRate string `json:"fundingRate"`
		FundingTime string `json:"fundingTime"`
	} `json:"data"`
}

// OKXMarkPrice mirrors a mark-price channel push.
type OKXMarkPrice struct {
	Arg  OKXArg `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		MarkPx string `json:"markPx"`
		Ts     string `json:"ts"`
	} `json:"data"`
}

// OKXTicker is the subset of the tickers channel push the ticker mapper
// consumes.
type OKXTicker struct {
	Arg  OKXArg `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
		Ts     string `json:"ts"`
	} `json:"data"`
}

// OKXOpenInterest mirrors an open-interest channel push.
type OKXOpenInterest struct {
	Arg  OKXArg `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Oi     string `json:"oi"`
		Ts     string `json:"ts"`
	} `json:"data"`
}
