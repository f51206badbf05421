package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/keyvault"
	"github.com/hyperalpha/arena/internal/market"
	"github.com/hyperalpha/arena/internal/model"
	"github.com/hyperalpha/arena/internal/store"
	"github.com/hyperalpha/arena/internal/strategy"
)

// StatusSource reports live strategy state. Implemented by
// strategy.Manager.
type StatusSource interface {
	Status() []strategy.AccountStatus
}

// Handler holds the API's collaborators.
type Handler struct {
	Auth       *AuthService
	Accounts   *store.AccountStore
	Strategies *store.StrategyStore
	Sampling   *store.SamplingStore
	Prompts    *store.PromptStore
	Trades     *store.TradeStore
	Positions  *store.PositionStore
	Chat       *store.ChatStore
	Logs       *store.SystemLogStore
	Symbols    *store.SymbolStore
	Snapshots  *store.SnapshotStore
	Vault      *keyvault.Vault
	Catalog    *market.Catalog
	Prices     *market.PriceCache
	Sampler    *market.Sampler
	Klines     *market.KlineService
	KlineRows  *store.KlineStore
	HL         *hyperliquid.Client
	Strategy   StatusSource
	Hub        *Hub
	Logger     *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeStatus maps a repository error to an HTTP status.
func storeStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ---------------------------------------------------------------------------
// Accounts & strategy
// ---------------------------------------------------------------------------

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

type createAccountRequest struct {
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
	PrivateKey    string `json:"private_key"`
	ModelName     string `json:"model_name"`
	ModelBaseURL  string `json:"model_base_url"`
	ModelAPIKey   string `json:"model_api_key"`
	Environment   string `json:"environment"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.WalletAddress == "" || req.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "name, wallet_address and private_key required")
		return
	}
	if req.Environment != "mainnet" && req.Environment != "testnet" {
		writeError(w, http.StatusBadRequest, `environment must be "mainnet" or "testnet"`)
		return
	}

	// The plaintext key never reaches the database.
	keyEnc, err := h.Vault.Encrypt(req.PrivateKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encrypt private key")
		return
	}
	apiKeyEnc := ""
	if req.ModelAPIKey != "" {
		apiKeyEnc, err = h.Vault.Encrypt(req.ModelAPIKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encrypt api key")
			return
		}
	}

	account, err := h.Accounts.Create(r.Context(), model.Account{
		Name:           req.Name,
		WalletAddress:  req.WalletAddress,
		PrivateKeyEnc:  keyEnc,
		ModelName:      req.ModelName,
		ModelBaseURL:   req.ModelBaseURL,
		ModelAPIKeyEnc: apiKeyEnc,
		Environment:    req.Environment,
		IsActive:       true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) getStrategy(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	cfg, err := h.Strategies.Get(r.Context(), accountID)
	if err != nil {
		writeError(w, storeStatus(err), "strategy config not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) putStrategy(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var cfg model.StrategyConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.AccountID = accountID

	if cfg.TriggerIntervalSec <= 0 {
		writeError(w, http.StatusBadRequest, "trigger_interval_seconds must be positive")
		return
	}
	if cfg.MaxLeverage < 1 {
		writeError(w, http.StatusBadRequest, "max_leverage must be at least 1")
		return
	}
	for _, sym := range cfg.TradingSymbols {
		if _, ok := h.Catalog.Get(sym); !ok {
			writeError(w, http.StatusBadRequest, "unknown symbol "+sym)
			return
		}
	}

	saved, err := h.Strategies.Upsert(r.Context(), cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save strategy config")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// ---------------------------------------------------------------------------
// Sampling config
// ---------------------------------------------------------------------------

func (h *Handler) getSampling(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Sampling.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sampling config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) putSampling(w http.ResponseWriter, r *http.Request) {
	var cfg model.SamplingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cfg.IntervalSeconds < 1 || cfg.IntervalSeconds > 3600 {
		writeError(w, http.StatusBadRequest, "interval_seconds must be in 1..3600")
		return
	}
	if cfg.WindowSize < 1 || cfg.WindowSize > 10000 {
		writeError(w, http.StatusBadRequest, "window_size must be in 1..10000")
		return
	}

	saved, err := h.Sampling.Update(r.Context(), cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save sampling config")
		return
	}

	// Apply immediately; the sampler owns the live cadence.
	if h.Sampler != nil {
		h.Sampler.SetInterval(time.Duration(saved.IntervalSeconds) * time.Second)
	}
	writeJSON(w, http.StatusOK, saved)
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

func (h *Handler) listPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.Prompts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list prompts")
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *Handler) getPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	tpl, err := h.Prompts.Get(r.Context(), id)
	if err != nil {
		writeError(w, storeStatus(err), "prompt not found")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *Handler) createPrompt(w http.ResponseWriter, r *http.Request) {
	var tpl model.PromptTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if tpl.Name == "" || tpl.Body == "" {
		writeError(w, http.StatusBadRequest, "name and body required")
		return
	}
	tpl.IsBuiltin = false

	saved, err := h.Prompts.Create(r.Context(), tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create prompt")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) updatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	var tpl model.PromptTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tpl.ID = id

	saved, err := h.Prompts.Update(r.Context(), tpl)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBuiltinImmutable):
			writeError(w, http.StatusForbidden, "builtin prompts cannot be modified")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "prompt not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update prompt")
		}
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) deletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	if err := h.Prompts.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrBuiltinImmutable):
			writeError(w, http.StatusForbidden, "builtin prompts cannot be deleted")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "prompt not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete prompt")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) getPromptBinding(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	binding, err := h.Prompts.GetBinding(r.Context(), accountID)
	if err != nil {
		writeError(w, storeStatus(err), "no prompt binding for account")
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

func (h *Handler) putPromptBinding(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req struct {
		TemplateID uuid.UUID `json:"template_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "template_id required")
		return
	}

	if _, err := h.Prompts.Get(r.Context(), req.TemplateID); err != nil {
		writeError(w, storeStatus(err), "prompt not found")
		return
	}

	binding, err := h.Prompts.Bind(r.Context(), accountID, req.TemplateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to bind prompt")
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

// ---------------------------------------------------------------------------
// System logs
// ---------------------------------------------------------------------------

func (h *Handler) systemLogs(w http.ResponseWriter, r *http.Request) {
	q := store.LogQuery{
		Level:  r.URL.Query().Get("level"),
		Source: r.URL.Query().Get("category"),
		Limit:  queryLimit(r, 100),
	}
	logs, err := h.Logs.Query(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// ---------------------------------------------------------------------------
// Hyperliquid market data
// ---------------------------------------------------------------------------

func (h *Handler) listSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.All())
}

func (h *Handler) getWatchlist(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.Symbols.Selected(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load watchlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}

func (h *Handler) putWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "at least one symbol required")
		return
	}
	for _, sym := range req.Symbols {
		if _, ok := h.Catalog.Get(sym); !ok {
			writeError(w, http.StatusBadRequest, "unknown symbol "+sym)
			return
		}
	}

	if err := h.Symbols.Replace(r.Context(), req.Symbols); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save watchlist")
		return
	}

	// The sampler follows the watchlist live.
	if h.Sampler != nil {
		h.Sampler.SetSymbols(req.Symbols)
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": req.Symbols})
}

func (h *Handler) getTicker(w http.ResponseWriter, r *http.Request) {
	symbol := market.NormalizeSymbol(chi.URLParam(r, "symbol"))

	price, source, err := h.Prices.GetPrice(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, "no price for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, model.TickerData{
		Symbol:    symbol,
		Price:     price,
		Source:    string(source),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) getKlines(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "15m"
	}
	count := queryLimit(r, 100)
	if count > 1000 {
		count = 1000
	}

	klines, err := h.Klines.Klines(r.Context(), symbol, interval, count)
	if err != nil {
		// Serve persisted candles when the exchange is unreachable.
		if h.KlineRows != nil {
			if stored, dbErr := h.KlineRows.Recent(r.Context(), symbol, interval, count); dbErr == nil && len(stored) > 0 {
				writeJSON(w, http.StatusOK, stored)
				return
			}
		}
		writeError(w, http.StatusBadGateway, "failed to fetch klines")
		return
	}
	writeJSON(w, http.StatusOK, klines)
}

func (h *Handler) getRewards(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	state, err := h.HL.GetReferralState(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch referral state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ---------------------------------------------------------------------------
// Arena feeds
// ---------------------------------------------------------------------------

func (h *Handler) tradeFeed(w http.ResponseWriter, r *http.Request) {
	trades, err := h.Trades.Feed(r.Context(), queryLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *Handler) positionFeed(w http.ResponseWriter, r *http.Request) {
	var accountID *uuid.UUID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = &id
	}

	positions, err := h.Positions.Open(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *Handler) modelChatFeed(w http.ResponseWriter, r *http.Request) {
	var accountID *uuid.UUID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = &id
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = &t
	}

	messages, err := h.Chat.Feed(r.Context(), accountID, before, queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load model chat")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) assetCurve(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}

	curve, err := h.Snapshots.Curve(r.Context(), accountID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load asset curve")
		return
	}
	writeJSON(w, http.StatusOK, curve)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func (h *Handler) strategyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Strategy.Status())
}

func (h *Handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Prices.Stats())
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ws_clients": h.Hub.ClientCount(),
		"time":       time.Now().UTC(),
	})
}
