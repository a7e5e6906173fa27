// Package trading defines the records exchanged with the stock-agent backend
package trading

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RuleType identifies how a rule produces its signals
type RuleType string

const (
	RuleTypeAgent       RuleType = "agent"        // local code agent
	RuleTypeRemoteAgent RuleType = "remote_agent" // remote HTTP agent

	// legacy technical rules
	RuleTypeMClose RuleType = "mclose"
	RuleTypeMOpen  RuleType = "mopen"
	RuleTypeTech   RuleType = "tech"
	RuleTypeRL     RuleType = "rl"
	RuleTypeCombo  RuleType = "combo"
)

// RuleTypes lists every known rule type
var RuleTypes = []RuleType{
	RuleTypeAgent, RuleTypeRemoteAgent,
	RuleTypeMClose, RuleTypeMOpen, RuleTypeTech, RuleTypeRL, RuleTypeCombo,
}

// Valid reports whether t is one of the known rule types
func (t RuleType) Valid() bool {
	for _, known := range RuleTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsAgent reports whether rules of this type run through the execution stream
func (t RuleType) IsAgent() bool {
	return t == RuleTypeAgent || t == RuleTypeRemoteAgent
}

// SimStatus is the lifecycle status of a simulator
type SimStatus string

const (
	SimCreated    SimStatus = "created"
	SimRunning    SimStatus = "running"
	SimStopped    SimStatus = "stopped"
	SimIndicating SimStatus = "indicating"
	SimHolding    SimStatus = "holding"
	SimNormal     SimStatus = "normal"
)

// TradingType is the kind of a trading record
type TradingType string

const (
	TradingBuy        TradingType = "buy"
	TradingSell       TradingType = "sell"
	TradingFailToBuy  TradingType = "fail_to_buy"
	TradingFailToSell TradingType = "fail_to_sell"
)

// Failed reports whether the trade could not be executed
func (t TradingType) Failed() bool {
	return t == TradingFailToBuy || t == TradingFailToSell
}

// Pool is a named grouping of stocks
type Pool struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Stocks       int     `json:"stocks,omitempty"`
	LatestDate   string  `json:"latest_date,omitempty"`
	Earn         float64 `json:"earn,omitempty"`
	AvgEarn      float64 `json:"avg_earn,omitempty"`
	EarningRate  float64 `json:"earning_rate,omitempty"`
	TradingTimes int     `json:"trading_times,omitempty"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// Stock is keyed by its exchange code
type Stock struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Earn          float64 `json:"earn,omitempty"`
	AvgEarn       float64 `json:"avg_earn,omitempty"`
	EarningRate   float64 `json:"earning_rate,omitempty"`
	TradingTimes  int     `json:"trading_times,omitempty"`
	Cap           float64 `json:"cap,omitempty"`
	EarnUpdatedAt string  `json:"earn_updated_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// Rule is a signal-generating agent evaluated per stock
type Rule struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Type         RuleType `json:"type"`
	Description  string   `json:"description,omitempty"`
	Pools        string   `json:"pools,omitempty"`
	Stocks       int      `json:"stocks,omitempty"`
	Info         string   `json:"info,omitempty"`
	Earn         float64  `json:"earn,omitempty"`
	AvgEarn      float64  `json:"avg_earn,omitempty"`
	EarningRate  float64  `json:"earning_rate,omitempty"`
	TradingTimes int      `json:"trading_times,omitempty"`
	MaxEarn      float64  `json:"max_earn,omitempty"`
	MaxEarnRate  float64  `json:"max_earn_rate,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

// Simulator is a backtest or paper-trading run of a rule over a stock or pool
type Simulator struct {
	ID             int             `json:"id"`
	RuleID         int             `json:"rule_id,omitempty"`
	RuleName       string          `json:"rule_name,omitempty"`
	StockCode      string          `json:"stock_code,omitempty"`
	StockName      string          `json:"stock_name,omitempty"`
	Status         SimStatus       `json:"status,omitempty"`
	InitMoney      decimal.Decimal `json:"init_money"`
	CurrentMoney   decimal.Decimal `json:"current_money"`
	CurrentShare   int             `json:"current_share,omitempty"`
	CurrentShares  string          `json:"current_shares,omitempty"`
	CumEarn        decimal.Decimal `json:"cum_earn"`
	AvgEarn        decimal.Decimal `json:"avg_earn"`
	AnnualEarn     decimal.Decimal `json:"annual_earn"`
	EarningRate    float64         `json:"earning_rate,omitempty"`
	TradingTimes   int             `json:"trading_times,omitempty"`
	MaxDrawback    float64         `json:"max_drawback,omitempty"`
	Sharpe         float64         `json:"sharpe,omitempty"`
	StartDate      string          `json:"start_date,omitempty"`
	FirstTradeDate string          `json:"first_trade_date,omitempty"`
	IndicatingDate string          `json:"indicating_date,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

// RuleTrading is a rule-level indicating event for a stock
type RuleTrading struct {
	ID            int         `json:"id"`
	RuleID        int         `json:"rule_id"`
	Stock         string      `json:"stock,omitempty"`
	TradingDate   string      `json:"trading_date"`
	TradingType   TradingType `json:"trading_type,omitempty"`
	TradingAmount float64     `json:"trading_amount,omitempty"`
	CreatedAt     string      `json:"created_at,omitempty"`
	UpdatedAt     string      `json:"updated_at,omitempty"`
}

// SimTrading is a trade executed by a simulator
type SimTrading struct {
	ID            int         `json:"id"`
	SimID         int         `json:"sim_id"`
	Stock         string      `json:"stock,omitempty"`
	TradingType   TradingType `json:"trading_type,omitempty"`
	TradingDate   string      `json:"trading_date,omitempty"`
	TradingAmount float64     `json:"trading_amount,omitempty"`
	UpdatedAt     string      `json:"updated_at,omitempty"`
}

// Trading is an entry of the cross-simulator trading log
type Trading struct {
	ID          int             `json:"id"`
	RuleID      int             `json:"rule_id,omitempty"`
	RuleName    string          `json:"rule_name,omitempty"`
	Sims        int             `json:"sims,omitempty"`
	Stock       string          `json:"stock,omitempty"`
	StockName   string          `json:"stock_name,omitempty"`
	TradingDate string          `json:"trading_date,omitempty"`
	Type        TradingType     `json:"type,omitempty"`
	InitMoney   decimal.Decimal `json:"init_money"`
	Price       decimal.Decimal `json:"price"`
	Share       int             `json:"share,omitempty"`
	Sold        bool            `json:"sold,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
}

// TradeEarn is one point of a cumulative earnings chart
type TradeEarn struct {
	ID           int             `json:"id"`
	RuleID       int             `json:"rule_id,omitempty"`
	SimID        int             `json:"sim_id,omitempty"`
	CumEarn      decimal.Decimal `json:"cum_earn"`
	TradingTimes int             `json:"trading_times,omitempty"`
	CreatedAt    string          `json:"created_at,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
}

// StockRuleEarn is a stock's performance and indicating state under one rule
type StockRuleEarn struct {
	ID             int     `json:"id,omitempty"`
	Code           string  `json:"code,omitempty"`
	Name           string  `json:"name,omitempty"`
	StockCode      string  `json:"stock_code,omitempty"`
	StockName      string  `json:"stock_name,omitempty"`
	RuleID         int     `json:"rule_id"`
	RuleName       string  `json:"rule_name,omitempty"`
	Earn           float64 `json:"earn,omitempty"`
	AvgEarn        float64 `json:"avg_earn,omitempty"`
	EarningRate    float64 `json:"earning_rate,omitempty"`
	TradingTimes   int     `json:"trading_times,omitempty"`
	Status         string  `json:"status,omitempty"`
	IndicatingDate string  `json:"indicating_date,omitempty"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
	Cap            float64 `json:"cap,omitempty"`
}

// StockCodeOrCode returns whichever code field the backend filled in
func (s StockRuleEarn) StockCodeOrCode() string {
	if s.StockCode != "" {
		return s.StockCode
	}
	return s.Code
}

// SimulatorConfig holds the global sell policy applied by every simulator
type SimulatorConfig struct {
	ID              int     `json:"id,omitempty"`
	ProfitThreshold float64 `json:"profit_threshold"`
	StopLoss        float64 `json:"stop_loss"`
	MaxHoldingDays  int     `json:"max_holding_days"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// DefaultSimulatorConfig mirrors the backend's defaults for a fresh install
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{ProfitThreshold: 0, StopLoss: 5, MaxHoldingDays: 5}
}

// Param is one named entry of a rule's or simulator's parameter set
type Param struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}
