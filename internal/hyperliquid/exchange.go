package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest describes one order to place.
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	Size       decimal.Decimal
	LimitPrice decimal.Decimal
	Tif        string // "Gtc", "Ioc", "Alo"
	ReduceOnly bool
}

// OrderResult is the outcome of a placed order.
type OrderResult struct {
	Oid       int64
	Status    string // "filled", "resting", "rejected"
	FilledSz  decimal.Decimal
	AvgPrice  decimal.Decimal
	RawError  string
}

// Exchange submits signed actions to the /exchange endpoint on behalf
// of a single wallet.
type Exchange struct {
	client *Client
	signer *Signer
	logger *slog.Logger

	// Asset index and size decimals by coin, from the meta universe.
	mu     sync.RWMutex
	assets map[string]assetInfo
}

type assetInfo struct {
	index      int
	szDecimals int
}

// NewExchange creates an exchange client for one wallet.
func NewExchange(client *Client, signer *Signer, logger *slog.Logger) *Exchange {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchange{
		client: client,
		signer: signer,
		logger: logger,
		assets: make(map[string]assetInfo),
	}
}

// Address returns the wallet address orders are signed with.
func (e *Exchange) Address() string {
	return e.signer.Address()
}

// SetUniverse updates the coin to asset index mapping from exchange
// metadata. Must be called before placing orders and whenever the
// universe is refreshed.
func (e *Exchange) SetUniverse(meta Meta) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assets = make(map[string]assetInfo, len(meta.Universe))
	for i, asset := range meta.Universe {
		e.assets[asset.Name] = assetInfo{index: i, szDecimals: asset.SzDecimals}
	}
}

// LoadUniverse fetches exchange metadata and installs the asset mapping.
func (e *Exchange) LoadUniverse(ctx context.Context) error {
	meta, _, err := e.client.GetMetaAndAssetCtxs(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	e.SetUniverse(meta)
	return nil
}

func (e *Exchange) lookupAsset(coin string) (assetInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	info, ok := e.assets[coin]
	if !ok {
		return assetInfo{}, fmt.Errorf("unknown coin %q", coin)
	}
	return info, nil
}

// FormatPrice rounds a price to at most 5 significant figures and at
// most 6 decimal places, per exchange tick rules.
func FormatPrice(px decimal.Decimal) string {
	if px.IsZero() {
		return "0"
	}
	rounded, _ := strconv.ParseFloat(fmt.Sprintf("%.5g", px.InexactFloat64()), 64)
	return decimal.NewFromFloat(rounded).Round(6).String()
}

// FormatSize rounds a size down to the asset's size decimals.
func FormatSize(sz decimal.Decimal, szDecimals int) string {
	return sz.Truncate(int32(szDecimals)).String()
}

// PlaceOrder submits a single order and returns its status.
func (e *Exchange) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	info, err := e.lookupAsset(req.Coin)
	if err != nil {
		return nil, err
	}

	tif := req.Tif
	if tif == "" {
		tif = "Gtc"
	}

	wire := OrderWire{
		Asset:      info.index,
		IsBuy:      req.IsBuy,
		LimitPx:    FormatPrice(req.LimitPrice),
		Size:       FormatSize(req.Size, info.szDecimals),
		ReduceOnly: req.ReduceOnly,
		OrderType:  OrderTypeWire{Limit: &LimitOrderType{Tif: tif}},
	}

	action := OrderAction{
		Type:     "order",
		Orders:   []OrderWire{wire},
		Grouping: "na",
	}

	resp, err := e.submit(ctx, action)
	if err != nil {
		return nil, err
	}

	statuses := resp.Response.Data.Statuses
	if len(statuses) == 0 {
		return nil, fmt.Errorf("order response contained no statuses")
	}
	return parseOrderStatus(statuses[0]), nil
}

func parseOrderStatus(st OrderStatusWire) *OrderResult {
	switch {
	case st.Filled != nil:
		filled, _ := decimal.NewFromString(st.Filled.TotalSz)
		avg, _ := decimal.NewFromString(st.Filled.AvgPx)
		return &OrderResult{
			Oid:      st.Filled.Oid,
			Status:   "filled",
			FilledSz: filled,
			AvgPrice: avg,
		}
	case st.Resting != nil:
		return &OrderResult{Oid: st.Resting.Oid, Status: "resting"}
	default:
		return &OrderResult{Status: "rejected", RawError: st.Error}
	}
}

// CancelOrder cancels one resting order by oid.
func (e *Exchange) CancelOrder(ctx context.Context, coin string, oid int64) error {
	info, err := e.lookupAsset(coin)
	if err != nil {
		return err
	}

	action := CancelAction{
		Type:    "cancel",
		Cancels: []CancelWire{{Asset: info.index, Oid: oid}},
	}

	resp, err := e.submit(ctx, action)
	if err != nil {
		return err
	}
	for _, st := range resp.Response.Data.Statuses {
		if st.Error != "" {
			return fmt.Errorf("cancel rejected: %s", st.Error)
		}
	}
	return nil
}

// UpdateLeverage sets cross leverage for a coin.
func (e *Exchange) UpdateLeverage(ctx context.Context, coin string, leverage int) error {
	info, err := e.lookupAsset(coin)
	if err != nil {
		return err
	}

	action := UpdateLeverageAction{
		Type:     "updateLeverage",
		Asset:    info.index,
		IsCross:  true,
		Leverage: leverage,
	}

	_, err = e.submit(ctx, action)
	return err
}

// submit signs an action and posts it to /exchange.
func (e *Exchange) submit(ctx context.Context, action any) (*ExchangeResponse, error) {
	nonce := time.Now().UnixMilli()

	sig, err := e.signer.SignAction(action, nonce)
	if err != nil {
		return nil, err
	}

	req := ExchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	}

	body, err := e.client.doWithRetry(ctx, "/exchange", req)
	if err != nil {
		return nil, err
	}

	var resp ExchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal exchange response: %w", err)
	}
	if resp.Status == "err" {
		return nil, fmt.Errorf("exchange rejected action: %s", string(body))
	}
	return &resp, nil
}
