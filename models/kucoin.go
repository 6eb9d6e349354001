package models

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// KUCOIN ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// KucoinMatch mirrors the data object of a /market/match:<symbol> push.
type KucoinMatch struct {
	Symbol   string `json:"symbol"`
	TradeID  string `json:"tradeId"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	Side     string `json:"side"`
	Time     string `json:"time"`
	Sequence string `json:"sequence"`
}

// KucoinLevel2Update mirrors the data object of a /market/level2:<symbol>
// push. Every update carries the sequence range it covers.
type KucoinLevel2Update struct {
	Symbol        string              `json:"symbol"`
	SequenceStart int64               `json:"sequenceStart"`
	SequenceEnd   int64               `json:"sequenceEnd"`
	Changes       KucoinLevel2Changes `json:"changes"`
}

// KucoinLevel2Changes levels are [price, size, sequence].
type KucoinLevel2Changes struct {
	Asks [][3]string `json:"asks"`
	Bids [][3]string `json:"bids"`
}

// KucoinLevel2Snapshot mirrors the REST orderbook/level2_100 response used
// to seed book reconstruction. Sequence arrives as a decimal string.
type KucoinLevel2Snapshot struct {
	Sequence string      `json:"sequence"`
	Time     int64       `json:"time"`
	Bids     [][2]string `json:"bids"`
	Asks     [][2]string `json:"asks"`
}
