package agent

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/model"
)

// maxMarginUsage caps the implied margin a single decision batch may
// commit: sum(portion * leverage) across opens must stay at or below
// this fraction of available balance.
var maxMarginUsage = decimal.NewFromFloat(0.70)

// PlanError describes a rejected decision batch.
type PlanError struct {
	Reason string
}

func (e *PlanError) Error() string {
	return "agent: plan rejected: " + e.Reason
}

// BuildPlan validates the parsed decisions against the account's
// strategy config and orders them for execution: closes first to free
// margin, then sells, then buys. Holds are dropped.
func BuildPlan(decisions []Decision, cfg model.StrategyConfig) ([]Decision, error) {
	allowed := make(map[string]struct{}, len(cfg.TradingSymbols))
	for _, s := range cfg.TradingSymbols {
		allowed[s] = struct{}{}
	}

	one := decimal.NewFromInt(1)
	margin := decimal.Zero
	plan := make([]Decision, 0, len(decisions))

	for _, d := range decisions {
		switch d.Operation {
		case OpHold:
			continue
		case OpBuy, OpSell, OpClose:
		default:
			return nil, &PlanError{Reason: fmt.Sprintf("unknown operation %q", d.Operation)}
		}

		if _, ok := allowed[d.Symbol]; !ok {
			return nil, &PlanError{Reason: fmt.Sprintf("symbol %s not in watchlist", d.Symbol)}
		}
		if d.Portion.IsNegative() || d.Portion.GreaterThan(one) {
			return nil, &PlanError{Reason: fmt.Sprintf("%s portion %s out of range", d.Symbol, d.Portion)}
		}
		if d.Portion.IsZero() {
			continue
		}

		if d.Operation == OpBuy || d.Operation == OpSell {
			lev := d.Leverage
			if lev < 1 {
				lev = 1
			}
			if cfg.MaxLeverage > 0 && lev > cfg.MaxLeverage {
				return nil, &PlanError{Reason: fmt.Sprintf("%s leverage %d exceeds limit %d", d.Symbol, lev, cfg.MaxLeverage)}
			}
			if cfg.MaxPositionPortion.IsPositive() && d.Portion.GreaterThan(cfg.MaxPositionPortion) {
				return nil, &PlanError{Reason: fmt.Sprintf("%s portion %s exceeds limit %s", d.Symbol, d.Portion, cfg.MaxPositionPortion)}
			}
			d.Leverage = lev
			margin = margin.Add(d.Portion.Mul(decimal.NewFromInt(int64(lev))))
		}

		plan = append(plan, d)
	}

	if margin.GreaterThan(maxMarginUsage) {
		return nil, &PlanError{
			Reason: fmt.Sprintf("implied margin usage %s exceeds %s cap", margin, maxMarginUsage),
		}
	}

	// Closes free margin for the opens that follow; sells before buys.
	rank := map[string]int{OpClose: 0, OpSell: 1, OpBuy: 2}
	sort.SliceStable(plan, func(i, j int) bool {
		return rank[plan[i].Operation] < rank[plan[j].Operation]
	})
	return plan, nil
}
