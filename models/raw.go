package models

// MessageKind tags a decoded exchange message with the event family it
// belongs to. The feed collaborator decodes raw frames exactly once, tags
// them, and hands the result to the mappers; mappers route on the tag and
// never inspect undecoded payloads.
type MessageKind string

const (
	KindTrade        MessageKind = "trade"
	KindBookSnapshot MessageKind = "book_snapshot"
	KindBookUpdate   MessageKind = "book_update"
	KindMarkPrice    MessageKind = "mark_price"
	KindFundingRate  MessageKind = "funding_rate"
	KindTicker       MessageKind = "ticker"
	KindOpenInterest MessageKind = "open_interest"
)

// RawMessage wraps one decoded exchange-native record.
//
// Data holds the exchange-specific struct (e.g. *BinanceDepthUpdate); the
// mapper selected by CanHandle type-asserts it. Channel is the native
// channel/topic the record arrived on and Symbol the native instrument id.
type RawMessage struct {
	Kind    MessageKind
	Channel string
	Symbol  string
	Data    any
}
