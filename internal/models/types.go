package models

import "fmt"

// Program labels the two indexed DLN programs.
type Program string

const (
	ProgramSrc Program = "src"
	ProgramDst Program = "dst"
)

// AllPrograms is the ordered list of indexed programs.
var AllPrograms = []Program{ProgramSrc, ProgramDst}

// EventKind is the persisted event_type of an order.
type EventKind string

const (
	KindOrderCreated   EventKind = "created"
	KindOrderFulfilled EventKind = "fulfilled"
)

// AllEventKinds is the ordered list of persisted event kinds.
var AllEventKinds = []EventKind{KindOrderCreated, KindOrderFulfilled}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == KindOrderCreated || k == KindOrderFulfilled
}

// PricingStatus is the terminal outcome of the USD valuation of one order.
type PricingStatus string

const (
	PricingOK    PricingStatus = "ok"
	PricingError PricingStatus = "error"
)

// Pricing error tags. A persisted order with PricingError status carries
// exactly one of these (or an api_status_<code> tag) in pricing_error.
const (
	PricingErrNotSolana          = "not_solana"
	PricingErrNoPrice            = "no_price"
	PricingErrNoDecimals         = "no_decimals"
	PricingErrOrderNotFound      = "order_not_found"
	PricingErrRequestFailed      = "request_failed"
	PricingErrMaxRetriesExceeded = "max_retries_exceeded"
)

// APIStatusTag builds the pricing error tag for an unexpected order-API status.
func APIStatusTag(statusCode int) string {
	return fmt.Sprintf("api_status_%d", statusCode)
}

// PricingResult is the outcome of a USD valuation attempt.
// Exactly one of USDValue/ErrorTag is set; use the constructors.
type PricingResult struct {
	USDValue *float64
	ErrorTag string
}

// PricedOK builds a successful valuation.
func PricedOK(usd float64) PricingResult {
	return PricingResult{USDValue: &usd}
}

// PricedError builds a failed valuation carrying a pricing error tag.
func PricedError(tag string) PricingResult {
	return PricingResult{ErrorTag: tag}
}

// OK reports whether the valuation succeeded.
func (r PricingResult) OK() bool {
	return r.USDValue != nil && r.ErrorTag == ""
}

// Order is one enriched, persisted order event.
type Order struct {
	OrderID       string        `json:"orderId"`
	Signature     string        `json:"signature"`
	BlockTime     int64         `json:"blockTime"`
	USDValue      *float64      `json:"usdValue"`
	PricingStatus PricingStatus `json:"pricingStatus"`
	PricingError  *string       `json:"pricingError"`
	Kind          EventKind     `json:"kind"`
}

// NewOrder builds an Order from a pricing outcome, keeping the
// status/value/error triple consistent with each other.
func NewOrder(orderID, signature string, blockTime int64, kind EventKind, res PricingResult) Order {
	o := Order{
		OrderID:   orderID,
		Signature: signature,
		BlockTime: blockTime,
		Kind:      kind,
	}
	if res.OK() {
		o.PricingStatus = PricingOK
		o.USDValue = res.USDValue
	} else {
		o.PricingStatus = PricingError
		tag := res.ErrorTag
		o.PricingError = &tag
	}
	return o
}

// SignaturePoint is one boundary of a signature window.
type SignaturePoint struct {
	Signature string `json:"signature"`
	BlockTime int64  `json:"blockTime"`
}

// SignatureWindow is the inclusive [from, to] range of processed signatures
// for one program. From is the oldest boundary, To the newest.
type SignatureWindow struct {
	From SignaturePoint `json:"from"`
	To   SignaturePoint `json:"to"`
}

// Direction of a scanner pass.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// Advance returns the window after processing signature sig in direction d.
// A nil window initializes both boundaries to the signature.
func Advance(w *SignatureWindow, sig SignaturePoint, d Direction) SignatureWindow {
	if w == nil {
		return SignatureWindow{From: sig, To: sig}
	}
	next := *w
	switch d {
	case DirectionBackward:
		next.From = sig
	default:
		next.To = sig
	}
	return next
}

// SignatureInfo is one entry of a getSignaturesForAddress page.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *int64
	Err       interface{}
}

// IsValid reports whether the transaction behind the signature succeeded.
func (s SignatureInfo) IsValid() bool {
	return s.Err == nil
}

// DailyVolume is one row of the daily volume rollup.
type DailyVolume struct {
	Date       string  `json:"date"`
	OrderCount uint64  `json:"orderCount"`
	VolumeUSD  float64 `json:"volumeUsd"`
}

// DateRange is the default [from, to] date span of the stored data.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// VolumeQuery filters a daily volume request. From/To are optional
// YYYY-MM-DD strings; longer timestamps are truncated by the sink.
type VolumeQuery struct {
	EventType EventKind
	From      string
	To        string
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains execution metadata.
type APIMeta struct {
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
