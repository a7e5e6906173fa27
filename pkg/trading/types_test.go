package trading

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleTypeValid(t *testing.T) {
	assert.True(t, RuleTypeAgent.Valid())
	assert.True(t, RuleTypeCombo.Valid())
	assert.False(t, RuleType("jdk").Valid())

	assert.True(t, RuleTypeRemoteAgent.IsAgent())
	assert.False(t, RuleTypeTech.IsAgent())
}

func TestTradingTypeFailed(t *testing.T) {
	assert.False(t, TradingBuy.Failed())
	assert.False(t, TradingSell.Failed())
	assert.True(t, TradingFailToBuy.Failed())
	assert.True(t, TradingFailToSell.Failed())
}

func TestSimulatorDecodesMoney(t *testing.T) {
	raw := `{"id":7,"rule_id":3,"status":"running","init_money":100000,"current_money":"100523.18","cum_earn":523.18,"sharpe":1.2}`

	var sim Simulator
	require.NoError(t, json.Unmarshal([]byte(raw), &sim))

	assert.Equal(t, 7, sim.ID)
	assert.Equal(t, SimRunning, sim.Status)
	assert.True(t, sim.InitMoney.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, "100523.18", sim.CurrentMoney.String())
	assert.Equal(t, "523.18", sim.CumEarn.String())
	assert.InDelta(t, 1.2, sim.Sharpe, 1e-9)
}

func TestStockRuleEarnCode(t *testing.T) {
	assert.Equal(t, "600000", StockRuleEarn{StockCode: "600000", Code: "x"}.StockCodeOrCode())
	assert.Equal(t, "000001", StockRuleEarn{Code: "000001"}.StockCodeOrCode())
}

func TestMergeReplacesOnlyPatchedFields(t *testing.T) {
	pool := Pool{ID: 1, Name: "growth", Stocks: 12, Earn: 3.5}

	merged, err := Merge(pool, Patch{"name": "value"})
	require.NoError(t, err)

	assert.Equal(t, Pool{ID: 1, Name: "value", Stocks: 12, Earn: 3.5}, merged)
	assert.Equal(t, "growth", pool.Name, "original must not change")
}

func TestMergeEmptyPatch(t *testing.T) {
	rule := Rule{ID: 2, Name: "agent-a", Type: RuleTypeAgent}

	merged, err := Merge(rule, nil)
	require.NoError(t, err)
	assert.Equal(t, rule, merged)
}

func TestMergeDecimalField(t *testing.T) {
	sim := Simulator{ID: 4, InitMoney: decimal.NewFromInt(1000)}

	merged, err := Merge(sim, Patch{"init_money": 2500, "status": "stopped"})
	require.NoError(t, err)

	assert.True(t, merged.InitMoney.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, SimStopped, merged.Status)
	assert.Equal(t, 4, merged.ID)
}

func TestMergeTypeMismatch(t *testing.T) {
	_, err := Merge(Pool{ID: 1}, Patch{"id": "not-a-number"})
	assert.Error(t, err)
}

func TestPatchKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Patch{"c": 1, "a": 2, "b": 3}.Keys())
}

func TestFilterStocks(t *testing.T) {
	stocks := []Stock{{Code: "600000"}, {Code: "600036"}, {Code: "000001"}, {Code: "300750"}}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"600000", "600036", "000001", "300750"}},
		{"60*", []string{"600000", "600036"}},
		{"{000,300}*", []string{"000001", "300750"}},
		{"688*", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := FilterStocks(stocks, tt.pattern)
			require.NoError(t, err)

			codes := make([]string, 0, len(got))
			for _, s := range got {
				codes = append(codes, s.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestFilterStocksInvalidPattern(t *testing.T) {
	_, err := FilterStocks([]Stock{{Code: "1"}}, "[")
	assert.Error(t, err)
}
