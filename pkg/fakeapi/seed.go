package fakeapi

import (
	"github.com/shopspring/decimal"

	"github.com/xinguang/stock-console/pkg/trading"
)

// Seed fills the backend with a small demo data set
func (b *Backend) Seed() {
	stocks := []trading.Stock{
		{Code: "600000", Name: "SPDB", Earn: 1250.5, AvgEarn: 125.05, EarningRate: 0.6, TradingTimes: 10, Cap: 2.1e11},
		{Code: "600036", Name: "CMB", Earn: 3310.2, AvgEarn: 275.85, EarningRate: 0.67, TradingTimes: 12, Cap: 8.4e11},
		{Code: "000001", Name: "Ping An Bank", Earn: -420.0, AvgEarn: -70, EarningRate: 0.33, TradingTimes: 6, Cap: 2.2e11},
		{Code: "300750", Name: "CATL", Earn: 5120.9, AvgEarn: 640.11, EarningRate: 0.75, TradingTimes: 8, Cap: 9.1e11},
		{Code: "601318", Name: "Ping An", Earn: 880.0, AvgEarn: 110, EarningRate: 0.5, TradingTimes: 8, Cap: 8.9e11},
	}

	banks := b.AddPool(trading.Pool{Name: "banks"})
	growth := b.AddPool(trading.Pool{Name: "growth"})
	for _, s := range stocks[:3] {
		b.AddStock(banks.ID, s)
	}
	b.AddStock(growth.ID, stocks[3])
	b.AddStock(growth.ID, stocks[4])

	agent := b.AddRule(trading.Rule{
		Name:        "momentum-agent",
		Type:        trading.RuleTypeAgent,
		Description: "# Momentum agent\n\nBuys when the 5-day close crosses the 20-day close.",
		Info:        "local_agents/momentum/main.py",
	}, banks.ID, growth.ID)
	remote := b.AddRule(trading.Rule{
		Name: "remote-sentiment",
		Type: trading.RuleTypeRemoteAgent,
		Info: "http://agents.internal:9000/sentiment",
	}, growth.ID)

	b.SetRuleParams(agent.ID, map[string]interface{}{"window": 20, "threshold": 0.02})

	sim := b.AddSimulator(trading.Simulator{
		RuleID:       agent.ID,
		RuleName:     agent.Name,
		Status:       trading.SimNormal,
		InitMoney:    decimal.NewFromInt(100000),
		CurrentMoney: decimal.RequireFromString("104210.55"),
		CumEarn:      decimal.RequireFromString("4210.55"),
		AvgEarn:      decimal.RequireFromString("350.88"),
		AnnualEarn:   decimal.RequireFromString("0.12"),
		EarningRate:  0.58,
		TradingTimes: 12,
		MaxDrawback:  0.08,
		Sharpe:       1.4,
		StartDate:    "2025-01-02",
	})
	b.AddSimulator(trading.Simulator{
		RuleID:    remote.ID,
		RuleName:  remote.Name,
		StockCode: "300750",
		StockName: "CATL",
		Status:    trading.SimCreated,
		InitMoney: decimal.NewFromInt(50000),
	})
	b.SetSimParams(sim.ID, map[string]interface{}{"assets": []float64{1, 1.01, 1.04}, "bought_dates": []string{"2025-01-06", "2025-02-10"}})

	b.AddSimTrading(trading.SimTrading{ID: 1, SimID: sim.ID, Stock: "600036", TradingType: trading.TradingBuy, TradingDate: "2025-01-06", TradingAmount: 20000})
	b.AddSimTrading(trading.SimTrading{ID: 2, SimID: sim.ID, Stock: "600036", TradingType: trading.TradingSell, TradingDate: "2025-01-13", TradingAmount: 21030})
	b.AddRuleTrading(trading.RuleTrading{ID: 1, RuleID: agent.ID, Stock: "600036", TradingDate: "2025-01-06", TradingType: trading.TradingBuy})
	b.AddTrading(trading.Trading{ID: 1, RuleID: agent.ID, RuleName: agent.Name, Sims: 1, Stock: "600036", StockName: "CMB", TradingDate: "2025-01-06", Type: trading.TradingBuy, InitMoney: decimal.NewFromInt(20000), Price: decimal.RequireFromString("35.42"), Share: 500})
	b.AddEarn(trading.TradeEarn{ID: 1, RuleID: agent.ID, SimID: sim.ID, CumEarn: decimal.RequireFromString("1030"), TradingTimes: 2, CreatedAt: "2025-01-13"})
}
