package agent

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperalpha/arena/internal/model"
)

func testConfig() model.StrategyConfig {
	return model.StrategyConfig{
		MaxLeverage:        10,
		MaxPositionPortion: decimal.NewFromFloat(0.5),
		TradingSymbols:     []string{"BTC", "ETH", "SOL"},
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuildPlanOrdering(t *testing.T) {
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "BTC", Portion: dec("0.1"), Leverage: 2},
		{Operation: OpClose, Symbol: "ETH", Portion: dec("1")},
		{Operation: OpSell, Symbol: "SOL", Portion: dec("0.1"), Leverage: 2},
	}

	plan, err := BuildPlan(decisions, testConfig())
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.Equal(t, OpClose, plan[0].Operation)
	assert.Equal(t, OpSell, plan[1].Operation)
	assert.Equal(t, OpBuy, plan[2].Operation)
}

func TestBuildPlanDropsHoldsAndZeroPortions(t *testing.T) {
	decisions := []Decision{
		{Operation: OpHold, Symbol: "BTC"},
		{Operation: OpBuy, Symbol: "ETH", Portion: decimal.Zero, Leverage: 2},
		{Operation: OpBuy, Symbol: "SOL", Portion: dec("0.1"), Leverage: 2},
	}

	plan, err := BuildPlan(decisions, testConfig())
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "SOL", plan[0].Symbol)
}

func TestBuildPlanMarginCap(t *testing.T) {
	// 0.4 * 2x = 0.8 implied margin, above the 0.70 cap.
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "BTC", Portion: dec("0.4"), Leverage: 2},
	}

	_, err := BuildPlan(decisions, testConfig())
	require.Error(t, err)
	var planErr *PlanError
	require.ErrorAs(t, err, &planErr)
	assert.True(t, strings.Contains(planErr.Reason, "margin usage"))
}

func TestBuildPlanMarginCapAcrossDecisions(t *testing.T) {
	// Each leg is fine alone; together they imply 0.75.
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "BTC", Portion: dec("0.15"), Leverage: 3},
		{Operation: OpSell, Symbol: "ETH", Portion: dec("0.1"), Leverage: 3},
	}

	_, err := BuildPlan(decisions, testConfig())
	require.Error(t, err)
}

func TestBuildPlanClosesExemptFromMargin(t *testing.T) {
	// A full close does not consume new margin.
	decisions := []Decision{
		{Operation: OpClose, Symbol: "BTC", Portion: dec("1")},
		{Operation: OpBuy, Symbol: "ETH", Portion: dec("0.2"), Leverage: 3},
	}

	plan, err := BuildPlan(decisions, testConfig())
	require.NoError(t, err)
	assert.Len(t, plan, 2)
}

func TestBuildPlanRejectsUnknownSymbol(t *testing.T) {
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "DOGE", Portion: dec("0.1"), Leverage: 2},
	}

	_, err := BuildPlan(decisions, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGE")
}

func TestBuildPlanRejectsExcessLeverage(t *testing.T) {
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "BTC", Portion: dec("0.05"), Leverage: 25},
	}

	_, err := BuildPlan(decisions, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leverage")
}

func TestBuildPlanRejectsExcessPortion(t *testing.T) {
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "BTC", Portion: dec("0.6"), Leverage: 1},
	}

	_, err := BuildPlan(decisions, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portion")
}

func TestBuildPlanRejectsUnknownOperation(t *testing.T) {
	decisions := []Decision{
		{Operation: "short", Symbol: "BTC", Portion: dec("0.1"), Leverage: 2},
	}

	_, err := BuildPlan(decisions, testConfig())
	require.Error(t, err)
}

func TestBuildPlanDefaultsLeverageToOne(t *testing.T) {
	decisions := []Decision{
		{Operation: OpBuy, Symbol: "BTC", Portion: dec("0.1")},
	}

	plan, err := BuildPlan(decisions, testConfig())
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 1, plan[0].Leverage)
}
