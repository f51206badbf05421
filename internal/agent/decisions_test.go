package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionsPlainJSON(t *testing.T) {
	raw := `{"decisions":[{"operation":"buy","symbol":"BTC","target_portion_of_balance":0.1,"leverage":3,"max_price":65000}]}`

	decisions, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, OpBuy, d.Operation)
	assert.Equal(t, "BTC", d.Symbol)
	assert.Equal(t, "0.1", d.Portion.String())
	assert.Equal(t, 3, d.Leverage)
	assert.Equal(t, "65000", d.MaxPrice.String())
}

func TestParseDecisionsCodeFence(t *testing.T) {
	raw := "Here is my analysis.\n```json\n{\"decisions\":[{\"operation\":\"sell\",\"symbol\":\"eth\",\"target_portion_of_balance\":0.2,\"leverage\":2}]}\n```\nGood luck."

	decisions, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, OpSell, decisions[0].Operation)
	assert.Equal(t, "ETH", decisions[0].Symbol)
}

func TestParseDecisionsProseWrapped(t *testing.T) {
	raw := `Given the momentum I will open a position.

{"decisions": [{"operation": "BUY", "symbol": "sol", "target_portion_of_balance": 0.05, "leverage": 5}]}

The stop loss keeps risk contained.`

	decisions, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, OpBuy, decisions[0].Operation)
	assert.Equal(t, "SOL", decisions[0].Symbol)
}

func TestParseDecisionsFractionalLeverage(t *testing.T) {
	raw := `{"decisions":[{"operation":"buy","symbol":"BTC","target_portion_of_balance":0.1,"leverage":2.0}]}`

	decisions, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, 2, decisions[0].Leverage)
}

func TestParseDecisionsNullPrices(t *testing.T) {
	raw := `{"decisions":[{"operation":"close","symbol":"BTC","target_portion_of_balance":1.0,"max_price":null,"min_price":null}]}`

	decisions, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].MaxPrice.IsZero())
}

func TestParseDecisionsEmptyList(t *testing.T) {
	decisions, err := ParseDecisions(`{"decisions":[]}`)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestParseDecisionsNoObject(t *testing.T) {
	_, err := ParseDecisions("I have no trades to suggest today.")
	assert.True(t, errors.Is(err, ErrNoDecisions))
}

func TestParseDecisionsMissingKey(t *testing.T) {
	_, err := ParseDecisions(`{"analysis":"flat market"}`)
	assert.True(t, errors.Is(err, ErrNoDecisions))
}

func TestParseDecisionsNestedBraces(t *testing.T) {
	raw := `{"decisions":[{"operation":"hold","symbol":"BTC","target_portion_of_balance":0,"reason":"range {60k-62k} intact"}]}`

	decisions, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "range {60k-62k} intact", decisions[0].Reason)
}
