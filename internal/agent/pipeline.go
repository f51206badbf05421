package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/keyvault"
	"github.com/hyperalpha/arena/internal/market"
	"github.com/hyperalpha/arena/internal/model"
	"github.com/hyperalpha/arena/internal/prompt"
	"github.com/hyperalpha/arena/internal/store"
)

// Broadcaster pushes dashboard events. Implemented by the server's WS
// hub.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// NewsSource supplies cached headlines for the prompt news section.
type NewsSource interface {
	Headlines() []model.NewsItem
}

// ExchangeFactory builds an order placer for a decrypted private key.
// Split out so tests can substitute a fake exchange.
type ExchangeFactory func(ctx context.Context, privateKeyHex string) (OrderPlacer, error)

// ClientFactory builds a model client per account endpoint.
type ClientFactory func(baseURL, apiKey string) ModelClient

// ModelDefaults fills in endpoint settings accounts leave blank.
type ModelDefaults struct {
	BaseURL     string
	APIKey      string
	Name        string
	Timeout     time.Duration
	Temperature float64
}

// PipelineDeps wires the pipeline's collaborators.
type PipelineDeps struct {
	Accounts  *store.AccountStore
	Prompts   *store.PromptStore
	Trades    *store.TradeStore
	Positions *store.PositionStore
	Chat      *store.ChatStore
	Vault     *keyvault.Vault
	HL        *hyperliquid.Client
	Prices    *market.PriceCache
	Sampler   *market.Sampler
	Catalog   *market.Catalog
	Renderer  *prompt.Renderer
	News      NewsSource
	Hub       Broadcaster
	Events    *store.EventLogger
	Model     ModelDefaults

	// NewExchange and NewClient default to the real implementations.
	NewExchange ExchangeFactory
	NewClient   ClientFactory
}

// Pipeline executes the full decision cycle for accounts. It satisfies
// strategy.Runner.
type Pipeline struct {
	deps    PipelineDeps
	logger  *slog.Logger
	started time.Time
}

// NewPipeline creates a decision pipeline.
func NewPipeline(deps PipelineDeps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.NewExchange == nil {
		deps.NewExchange = func(ctx context.Context, privateKeyHex string) (OrderPlacer, error) {
			signer, err := hyperliquid.NewSigner(privateKeyHex)
			if err != nil {
				return nil, err
			}
			ex := hyperliquid.NewExchange(deps.HL, signer, logger)
			if err := ex.LoadUniverse(ctx); err != nil {
				return nil, err
			}
			return ex, nil
		}
	}
	if deps.NewClient == nil {
		deps.NewClient = func(baseURL, apiKey string) ModelClient {
			return NewHTTPModelClient(baseURL, apiKey, deps.Model.Timeout)
		}
	}
	return &Pipeline{deps: deps, logger: logger, started: time.Now().UTC()}
}

// Run executes one decision cycle for the account in cfg.
func (p *Pipeline) Run(ctx context.Context, cfg model.StrategyConfig, trigger string) error {
	account, err := p.deps.Accounts.Get(ctx, cfg.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	state, err := p.deps.HL.GetClearinghouseState(ctx, account.WalletAddress)
	if err != nil {
		return fmt.Errorf("clearinghouse state: %w", err)
	}

	rendered, err := p.buildPrompt(ctx, account, cfg, state)
	if err != nil {
		return fmt.Errorf("build prompt: %w", err)
	}

	if _, err := p.deps.Chat.Insert(ctx, model.ModelChatMessage{
		AccountID:  account.ID,
		Role:       "user",
		Content:    rendered,
		TriggerTag: trigger,
	}); err != nil {
		p.logger.Warn("record prompt failed", "error", err)
	}

	apiKey := p.deps.Model.APIKey
	if account.ModelAPIKeyEnc != "" {
		apiKey, err = p.deps.Vault.Decrypt(account.ModelAPIKeyEnc)
		if err != nil {
			return fmt.Errorf("decrypt model api key: %w", err)
		}
	}

	baseURL := account.ModelBaseURL
	if baseURL == "" {
		baseURL = p.deps.Model.BaseURL
	}
	modelName := account.ModelName
	if modelName == "" {
		modelName = p.deps.Model.Name
	}

	client := p.deps.NewClient(baseURL, apiKey)
	resp, err := client.Chat(ctx, ChatRequest{
		Model:       modelName,
		User:        rendered,
		Temperature: p.deps.Model.Temperature,
	})
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	decisions, parseErr := ParseDecisions(resp.Content)

	decisionsJSON := ""
	if parseErr == nil {
		if raw, err := json.Marshal(decisions); err == nil {
			decisionsJSON = string(raw)
		}
	}
	assistant, err := p.deps.Chat.Insert(ctx, model.ModelChatMessage{
		AccountID:  account.ID,
		Role:       "assistant",
		Content:    resp.Content,
		Reasoning:  resp.Reasoning,
		Decisions:  decisionsJSON,
		TriggerTag: trigger,
	})
	if err != nil {
		p.logger.Warn("record completion failed", "error", err)
	}
	if p.deps.Hub != nil {
		p.deps.Hub.Broadcast("model_chat_update", assistant)
	}

	if parseErr != nil {
		p.deps.Events.Warn("model output for %s had no parseable decisions", account.Name)
		return fmt.Errorf("parse decisions: %w", parseErr)
	}

	plan, err := BuildPlan(decisions, cfg)
	if err != nil {
		p.deps.Events.Warn("decision plan for %s rejected: %v", account.Name, err)
		return err
	}
	if len(plan) == 0 {
		p.logger.Info("no actionable decisions", "account", account.Name)
		return nil
	}

	privateKey, err := p.deps.Vault.Decrypt(account.PrivateKeyEnc)
	if err != nil {
		return fmt.Errorf("decrypt private key: %w", err)
	}
	exchange, err := p.deps.NewExchange(ctx, privateKey)
	if err != nil {
		return fmt.Errorf("exchange setup: %w", err)
	}

	p.execute(ctx, account, exchange, plan, state)

	if err := p.syncPositions(ctx, account); err != nil {
		p.logger.Warn("position sync failed", "account", account.Name, "error", err)
	}
	return nil
}

// execute places the planned orders in sequence, recording a trade row
// per attempt.
func (p *Pipeline) execute(ctx context.Context, account model.Account, exchange OrderPlacer, plan []Decision, state *hyperliquid.ClearinghouseState) {
	available := parseDec(state.Withdrawable)
	positions := signedPositions(state)

	for _, d := range plan {
		px, _, err := p.deps.Prices.GetPrice(ctx, d.Symbol)
		if err != nil {
			p.recordFailure(ctx, account.ID, d, fmt.Errorf("price lookup: %w", err))
			continue
		}

		order, err := buildOrder(d, px, available, positions[d.Symbol])
		if err != nil {
			p.recordFailure(ctx, account.ID, d, err)
			continue
		}

		if (d.Operation == OpBuy || d.Operation == OpSell) && d.Leverage > 0 {
			if err := exchange.UpdateLeverage(ctx, d.Symbol, d.Leverage); err != nil {
				p.logger.Warn("leverage update failed", "symbol", d.Symbol, "error", err)
			}
		}

		result, err := exchange.PlaceOrder(ctx, order)
		if err != nil {
			p.recordFailure(ctx, account.ID, d, err)
			p.deps.Events.Error(fmt.Sprintf("%s %s %s failed", account.Name, d.Operation, d.Symbol), err)
			continue
		}

		side := "buy"
		if !order.IsBuy {
			side = "sell"
		}
		trade := model.Trade{
			AccountID:  account.ID,
			Symbol:     d.Symbol,
			Side:       side,
			Size:       order.Size,
			Price:      order.LimitPrice,
			Leverage:   d.Leverage,
			ReduceOnly: order.ReduceOnly,
			OrderID:    fmt.Sprintf("%d", result.Oid),
			Status:     result.Status,
			Error:      result.RawError,
		}
		if result.FilledSz.IsPositive() {
			trade.Size = result.FilledSz
		}
		if result.AvgPrice.IsPositive() {
			trade.Price = result.AvgPrice
		}

		saved, err := p.deps.Trades.Insert(ctx, trade)
		if err != nil {
			p.logger.Error("record trade failed", "error", err)
		}
		if p.deps.Hub != nil {
			p.deps.Hub.Broadcast("trade_update", saved)
		}
		p.deps.Events.Info("%s %s %s size %s at %s: %s",
			account.Name, d.Operation, d.Symbol, trade.Size, trade.Price, trade.Status)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, accountID uuid.UUID, d Decision, cause error) {
	p.logger.Warn("order skipped", "symbol", d.Symbol, "operation", d.Operation, "error", cause)
	side := "buy"
	if d.Operation == OpSell {
		side = "sell"
	}
	trade := model.Trade{
		AccountID: accountID,
		Symbol:    d.Symbol,
		Side:      side,
		Leverage:  d.Leverage,
		Status:    "error",
		Error:     cause.Error(),
	}
	if _, err := p.deps.Trades.Insert(ctx, trade); err != nil {
		p.logger.Error("record failed order", "error", err)
	}
}

// syncPositions refreshes the position mirror from the exchange and
// broadcasts the update.
func (p *Pipeline) syncPositions(ctx context.Context, account model.Account) error {
	state, err := p.deps.HL.GetClearinghouseState(ctx, account.WalletAddress)
	if err != nil {
		return err
	}

	positions := make([]model.Position, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		szi := parseDec(ap.Position.Szi)
		if szi.IsZero() {
			continue
		}
		side := "long"
		if szi.IsNegative() {
			side = "short"
		}
		positions = append(positions, model.Position{
			AccountID:     account.ID,
			Symbol:        ap.Position.Coin,
			Side:          side,
			Size:          szi.Abs(),
			EntryPrice:    parseDec(ap.Position.EntryPx),
			Leverage:      ap.Position.Leverage.Value,
			UnrealizedPnl: parseDec(ap.Position.UnrealizedPnl),
			MarginUsed:    parseDec(ap.Position.MarginUsed),
			LiquidationPx: parseDec(ap.Position.LiquidationPx),
		})
	}

	if err := p.deps.Positions.Sync(ctx, account.ID, positions); err != nil {
		return err
	}
	if p.deps.Hub != nil {
		p.deps.Hub.Broadcast("position_update", map[string]any{
			"account_id": account.ID,
			"positions":  positions,
		})
	}
	return nil
}

// buildPrompt renders the account's bound template with live data.
func (p *Pipeline) buildPrompt(ctx context.Context, account model.Account, cfg model.StrategyConfig, state *hyperliquid.ClearinghouseState) (string, error) {
	tpl, err := p.deps.Prompts.TemplateForAccount(ctx, account.ID)
	if err != nil {
		return "", fmt.Errorf("resolve template: %w", err)
	}

	equity := parseDec(state.MarginSummary.AccountValue)
	marginUsed := parseDec(state.MarginSummary.TotalMarginUsed)
	available := parseDec(state.Withdrawable)

	marginPct := decimal.Zero
	if equity.IsPositive() {
		marginPct = marginUsed.Div(equity).Mul(decimal.NewFromInt(100)).Round(2)
	}

	warning := "This is TESTNET trading with play funds."
	if account.Environment == "mainnet" {
		warning = "This is REAL trading with REAL funds on MAINNET. Trade carefully."
	}

	vars := map[string]string{
		"runtime_minutes":         fmt.Sprintf("%.0f", time.Since(p.started).Minutes()),
		"current_time_utc":        time.Now().UTC().Format(time.RFC3339),
		"environment":             strings.ToUpper(account.Environment),
		"real_trading_warning":    warning,
		"trading_environment":     fmt.Sprintf("Hyperliquid perpetuals (%s)", account.Environment),
		"total_equity":            equity.String(),
		"available_balance":       available.String(),
		"used_margin":             marginUsed.String(),
		"margin_usage_percent":    marginPct.String(),
		"maintenance_margin":      parseDec(state.CrossMaintenanceMarginUsed).String(),
		"max_leverage":            fmt.Sprintf("%d", cfg.MaxLeverage),
		"default_leverage":        "3",
		"account_state":           p.accountStateSection(state),
		"positions_detail":        p.positionsSection(state),
		"margin_info":             fmt.Sprintf("Used Margin: $%s", marginUsed),
		"total_return_percent":    "0",
		"selected_symbols_count":  fmt.Sprintf("%d", len(cfg.TradingSymbols)),
		"selected_symbols_csv":    strings.Join(cfg.TradingSymbols, ", "),
		"selected_symbols_detail": p.symbolsSection(cfg.TradingSymbols),
		"market_prices":           p.pricesSection(ctx, cfg.TradingSymbols),
		"sampling_data":           p.samplingSection(cfg.TradingSymbols),
		"news_section":            p.newsSection(),
		"recent_trades_summary":   p.recentTradesSection(ctx, account.ID),
	}
	if cfg.StrategyPrompt != "" {
		vars["strategy_notes"] = cfg.StrategyPrompt
	}

	rendered := p.deps.Renderer.Render(ctx, tpl.Body, vars)
	if cfg.StrategyPrompt != "" && !strings.Contains(tpl.Body, "{strategy_notes}") {
		rendered += "\n=== OPERATOR STRATEGY NOTES ===\n" + cfg.StrategyPrompt + "\n"
	}
	return rendered, nil
}

func (p *Pipeline) accountStateSection(state *hyperliquid.ClearinghouseState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Equity: $%s\n", parseDec(state.MarginSummary.AccountValue))
	fmt.Fprintf(&b, "Available Balance: $%s\n", parseDec(state.Withdrawable))
	fmt.Fprintf(&b, "Used Margin: $%s\n", parseDec(state.MarginSummary.TotalMarginUsed))
	fmt.Fprintf(&b, "Open Positions: %d", len(state.AssetPositions))
	return b.String()
}

func (p *Pipeline) positionsSection(state *hyperliquid.ClearinghouseState) string {
	if len(state.AssetPositions) == 0 {
		return "No open positions."
	}
	var b strings.Builder
	for _, ap := range state.AssetPositions {
		szi := parseDec(ap.Position.Szi)
		if szi.IsZero() {
			continue
		}
		side := "LONG"
		if szi.IsNegative() {
			side = "SHORT"
		}
		fmt.Fprintf(&b, "- %s %s: size %s, entry $%s, uPnL $%s, liq $%s, %dx\n",
			ap.Position.Coin, side, szi.Abs(), parseDec(ap.Position.EntryPx),
			parseDec(ap.Position.UnrealizedPnl), parseDec(ap.Position.LiquidationPx),
			ap.Position.Leverage.Value)
	}
	if b.Len() == 0 {
		return "No open positions."
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) symbolsSection(symbols []string) string {
	var b strings.Builder
	for _, sym := range symbols {
		if info, ok := p.deps.Catalog.Get(sym); ok {
			fmt.Fprintf(&b, "- %s (%s): max leverage %dx\n", sym, info.Name, info.MaxLeverage)
		} else {
			fmt.Fprintf(&b, "- %s\n", sym)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) pricesSection(ctx context.Context, symbols []string) string {
	var b strings.Builder
	for _, sym := range symbols {
		px, _, err := p.deps.Prices.GetPrice(ctx, sym)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s: $%s\n", sym, px)
	}
	if b.Len() == 0 {
		return "No price data available."
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) samplingSection(symbols []string) string {
	if p.deps.Sampler == nil {
		return ""
	}
	var b strings.Builder
	for _, sym := range symbols {
		window := p.deps.Sampler.Window(sym)
		if len(window) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%d samples): ", sym, len(window))
		// Show the most recent samples, oldest first, capped for
		// prompt size.
		start := 0
		if len(window) > 20 {
			start = len(window) - 20
		}
		parts := make([]string, 0, 20)
		for _, s := range window[start:] {
			parts = append(parts, s.Price.String())
		}
		b.WriteString(strings.Join(parts, " -> "))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "No sampling data yet."
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) newsSection() string {
	if p.deps.News == nil {
		return "No news available."
	}
	items := p.deps.News.Headlines()
	if len(items) == 0 {
		return "No news available."
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s (%s)\n", item.Title, item.Source)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) recentTradesSection(ctx context.Context, accountID uuid.UUID) string {
	trades, err := p.deps.Trades.RecentByAccount(ctx, accountID, 5)
	if err != nil || len(trades) == 0 {
		return "No recent trades."
	}
	var b strings.Builder
	for _, t := range trades {
		fmt.Fprintf(&b, "- %s %s %s size %s at $%s (%s)\n",
			t.ExecutedAt.UTC().Format("01-02 15:04"), t.Side, t.Symbol, t.Size, t.Price, t.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

// signedPositions maps coin to signed position size.
func signedPositions(state *hyperliquid.ClearinghouseState) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		out[ap.Position.Coin] = parseDec(ap.Position.Szi)
	}
	return out
}

func parseDec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
