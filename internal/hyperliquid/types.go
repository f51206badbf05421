package hyperliquid

import "encoding/json"

// -----------------------------------------------------------------------------
// /info Response Types
// -----------------------------------------------------------------------------

// AllMids maps coin symbol to mid price as returned by {"type":"allMids"}.
type AllMids map[string]string

// AssetMeta describes one perpetual in the exchange universe.
type AssetMeta struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	OnlyIsolated bool  `json:"onlyIsolated,omitempty"`
}

// Meta is the universe section of a metaAndAssetCtxs response.
type Meta struct {
	Universe []AssetMeta `json:"universe"`
}

// AssetCtx carries per-asset market context, parallel to Meta.Universe.
type AssetCtx struct {
	Funding      string   `json:"funding"`
	OpenInterest string   `json:"openInterest"`
	PrevDayPx    string   `json:"prevDayPx"`
	DayNtlVlm    string   `json:"dayNtlVlm"`
	MarkPx       string   `json:"markPx"`
	MidPx        string   `json:"midPx"`
	OraclePx     string   `json:"oraclePx"`
	Premium      string   `json:"premium"`
	ImpactPxs    []string `json:"impactPxs"`
}

// Candle is one OHLCV candle as returned by candleSnapshot.
type Candle struct {
	OpenTime  int64  `json:"t"` // ms since epoch
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int    `json:"n"`
}

// MarginSummary aggregates account margin figures.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// PositionLeverage is the leverage sub-object of an asset position.
type PositionLeverage struct {
	Type  string `json:"type"` // "cross" or "isolated"
	Value int    `json:"value"`
}

// AssetPosition is one open perpetual position.
type AssetPosition struct {
	Type     string `json:"type"`
	Position struct {
		Coin           string           `json:"coin"`
		Szi            string           `json:"szi"` // signed size, negative = short
		EntryPx        string           `json:"entryPx"`
		PositionValue  string           `json:"positionValue"`
		UnrealizedPnl  string           `json:"unrealizedPnl"`
		ReturnOnEquity string           `json:"returnOnEquity"`
		LiquidationPx  string           `json:"liquidationPx"`
		MarginUsed     string           `json:"marginUsed"`
		MaxLeverage    int              `json:"maxLeverage"`
		Leverage       PositionLeverage `json:"leverage"`
	} `json:"position"`
}

// ClearinghouseState is the perpetuals account state for one user.
type ClearinghouseState struct {
	MarginSummary              MarginSummary   `json:"marginSummary"`
	CrossMarginSummary         MarginSummary   `json:"crossMarginSummary"`
	CrossMaintenanceMarginUsed string          `json:"crossMaintenanceMarginUsed"`
	Withdrawable               string          `json:"withdrawable"`
	AssetPositions             []AssetPosition `json:"assetPositions"`
	Time                       int64           `json:"time"`
}

// ReferralState describes a user's referral rewards standing.
type ReferralState struct {
	CumVlm        string `json:"cumVlm"`
	UnclaimedRewards string `json:"unclaimedRewards"`
	ClaimedRewards   string `json:"claimedRewards"`
	BuilderRewards   string `json:"builderRewards,omitempty"`
	ReferrerState    json.RawMessage `json:"referrerState,omitempty"`
}

// -----------------------------------------------------------------------------
// /exchange Request & Response Types
// -----------------------------------------------------------------------------

// OrderTypeWire is the tagged order type union on the wire.
type OrderTypeWire struct {
	Limit *LimitOrderType `json:"limit,omitempty"`
}

// LimitOrderType carries the time-in-force for a limit order.
// Tif is one of "Gtc", "Ioc", "Alo".
type LimitOrderType struct {
	Tif string `json:"tif"`
}

// OrderWire is one order in an order action.
type OrderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	LimitPx    string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  OrderTypeWire `json:"t"`
}

// OrderAction is the {"type":"order"} exchange action.
type OrderAction struct {
	Type     string      `json:"type"`
	Orders   []OrderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

// CancelWire identifies one order to cancel.
type CancelWire struct {
	Asset int   `json:"a"`
	Oid   int64 `json:"o"`
}

// CancelAction is the {"type":"cancel"} exchange action.
type CancelAction struct {
	Type    string       `json:"type"`
	Cancels []CancelWire `json:"cancels"`
}

// UpdateLeverageAction is the {"type":"updateLeverage"} exchange action.
type UpdateLeverageAction struct {
	Type     string `json:"type"`
	Asset    int    `json:"asset"`
	IsCross  bool   `json:"isCross"`
	Leverage int    `json:"leverage"`
}

// Signature is the r/s/v signature attached to exchange requests.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// ExchangeRequest is the signed envelope posted to /exchange.
type ExchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress string    `json:"vaultAddress,omitempty"`
}

// ExchangeResponse is the top-level /exchange response envelope.
type ExchangeResponse struct {
	Status   string `json:"status"` // "ok" or "err"
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []OrderStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// OrderStatusWire is the per-order status in an order response.
type OrderStatusWire struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------
// WebSocket Types
// -----------------------------------------------------------------------------

// Subscription identifies one WebSocket feed. Fields beyond Type are
// set only where the feed requires them.
type Subscription struct {
	Type     string `json:"type"`
	Coin     string `json:"coin,omitempty"`
	Interval string `json:"interval,omitempty"`
	User     string `json:"user,omitempty"`
}

// Supported subscription feed types.
const (
	SubAllMids            = "allMids"
	SubTrades             = "trades"
	SubL2Book             = "l2Book"
	SubCandle             = "candle"
	SubBBO                = "bbo"
	SubClearinghouseState = "clearinghouseState"
	SubOrderUpdates       = "orderUpdates"
	SubUserEvents         = "userEvents"
	SubUserFills          = "userFills"
	SubUserFundings       = "userFundings"
	SubOpenOrders         = "openOrders"
	SubNotification       = "notification"
)

// wsCommand is the client-to-server message envelope.
type wsCommand struct {
	Method       string        `json:"method"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// WSMessage is the server-to-client message envelope. Data is left raw
// for per-channel decoding by consumers.
type WSMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// AllMidsData is the payload of an allMids channel message.
type AllMidsData struct {
	Mids map[string]string `json:"mids"`
}

// WSTrade is one trade in a trades channel message.
type WSTrade struct {
	Coin  string `json:"coin"`
	Side  string `json:"side"` // "A" ask/sell, "B" bid/buy
	Px    string `json:"px"`
	Sz    string `json:"sz"`
	Time  int64  `json:"time"`
	Hash  string `json:"hash"`
	Tid   int64  `json:"tid"`
}
