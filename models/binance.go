package models

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// BINANCE ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BinanceTrade mirrors the <symbol>@trade stream event, shared by spot and
// futures markets.
type BinanceTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// BinanceDepthSnapshot mirrors the REST depth response used to seed book
// reconstruction.
type BinanceDepthSnapshot struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// BinanceDepthUpdate mirrors the <symbol>@depthUpdate stream event.
// PrevFinalUpdateID ("pu") is carried by futures streams only.
type BinanceDepthUpdate struct {
	EventType         string      `json:"e"`
	EventTime         int64       `json:"E"`
	TransactTime      int64       `json:"T"`
	Symbol            string      `json:"s"`
	FirstUpdateID     int64       `json:"U"`
	FinalUpdateID     int64       `json:"u"`
	PrevFinalUpdateID int64       `json:"pu"`
	Bids              [][2]string `json:"b"`
	Asks              [][2]string `json:"a"`
}

// BinanceMarkPrice mirrors the futures <symbol>@markPrice stream event.
type BinanceMarkPrice struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	IndexPrice      string `json:"i"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

// BinanceTicker is the subset of the <symbol>@ticker event the ticker
// mapper consumes.
type BinanceTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
}

// BinanceOpenInterest mirrors the futures openInterest REST response the
// feed polls alongside the streams.
type BinanceOpenInterest struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}
