package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/trading"
)

func poolKey(p trading.Pool) int           { return p.ID }
func stockKey(s trading.Stock) string      { return s.Code }
func ruleKey(r trading.Rule) int           { return r.ID }
func simulatorKey(s trading.Simulator) int { return s.ID }
func paramKey(p trading.Param) string      { return p.Name }
func earnKey(e trading.StockRuleEarn) string {
	return e.StockCodeOrCode()
}

// created drops the data a create call answers with; lists re-fetch instead
func created(fn func(context.Context, trading.Patch) (json.RawMessage, error)) func(context.Context, trading.Patch) error {
	return func(ctx context.Context, fields trading.Patch) error {
		_, err := fn(ctx, fields)
		return err
	}
}

// NewPools returns the pool list
func NewPools(c *api.Client, opts Options) *List[trading.Pool, int] {
	pools := c.Pools()
	return NewList("pool", Source[trading.Pool, int]{
		List:   pools.List,
		Create: created(pools.Create),
		Update: pools.Update,
		Delete: pools.Delete,
	}, poolKey, opts)
}

// NewStocks returns the stock list. Adding needs code and pool_id fields;
// deleting removes the stock from the pool named by the pool_id parameter.
func NewStocks(c *api.Client, opts Options) *List[trading.Stock, string] {
	stocks := c.Stocks()
	var l *List[trading.Stock, string]
	l = NewList("stock", Source[trading.Stock, string]{
		List:   stocks.List,
		Create: created(stocks.Create),
		Delete: func(ctx context.Context, code string) error {
			return stocks.Delete(ctx, code, intParam(l.Params(), "pool_id"))
		},
	}, stockKey, withDeps(opts, "pool_id"))
	return l
}

// NewStockRules returns the rules evaluating one stock
func NewStockRules(c *api.Client, code string, opts Options) *List[trading.StockRuleEarn, int] {
	stocks := c.Stocks()
	return NewList("stock rule", Source[trading.StockRuleEarn, int]{
		List: func(ctx context.Context, params api.Params) api.ListResult[trading.StockRuleEarn] {
			return stocks.Rules(ctx, code, params)
		},
	}, func(e trading.StockRuleEarn) int { return e.RuleID }, opts)
}

// NewRuleStocks returns the stocks evaluated by a rule, optionally scoped
// with the pool_id parameter
func NewRuleStocks(c *api.Client, ruleID int, opts Options) *List[trading.StockRuleEarn, string] {
	rules := c.Rules()
	return NewList("rule stock", Source[trading.StockRuleEarn, string]{
		List: func(ctx context.Context, params api.Params) api.ListResult[trading.StockRuleEarn] {
			return rules.Stocks(ctx, ruleID, params)
		},
	}, earnKey, withDeps(opts, "pool_id"))
}

// NewRuleParams returns the parameter set of a rule
func NewRuleParams(c *api.Client, ruleID int, opts Options) *List[trading.Param, string] {
	rules := c.Rules()
	return NewList("rule param", Source[trading.Param, string]{
		List: func(ctx context.Context, params api.Params) api.ListResult[trading.Param] {
			return rules.Params(ctx, ruleID, params)
		},
	}, paramKey, opts)
}

// NewRuleTradings returns the indicating events of a rule, paged
func NewRuleTradings(c *api.Client, ruleID int, opts Options) *List[trading.RuleTrading, int] {
	rules := c.Rules()
	return NewList("rule trading", Source[trading.RuleTrading, int]{
		List: func(ctx context.Context, params api.Params) api.ListResult[trading.RuleTrading] {
			return rules.Trading(ctx, ruleID, params)
		},
	}, func(t trading.RuleTrading) int { return t.ID }, withDeps(opts, "page", "page_size"))
}

// NewRuleIndicating returns the per-stock indicating state of a rule
func NewRuleIndicating(c *api.Client, ruleID int, opts Options) *List[trading.StockRuleEarn, string] {
	rules := c.Rules()
	return NewList("indicating stock", Source[trading.StockRuleEarn, string]{
		List: func(ctx context.Context, _ api.Params) api.ListResult[trading.StockRuleEarn] {
			return rules.Indicating(ctx, ruleID)
		},
	}, earnKey, opts)
}

// NewSimTradings returns the trades of a simulator
func NewSimTradings(c *api.Client, simID int, opts Options) *List[trading.SimTrading, int] {
	sims := c.Simulators()
	return NewList("simulator trading", Source[trading.SimTrading, int]{
		List: func(ctx context.Context, params api.Params) api.ListResult[trading.SimTrading] {
			return sims.Trading(ctx, simID, params)
		},
	}, func(t trading.SimTrading) int { return t.ID }, withDeps(opts, "stock", "trading_type"))
}

// NewSimParams returns the earning info of a simulator
func NewSimParams(c *api.Client, simID int, opts Options) *List[trading.Param, string] {
	sims := c.Simulators()
	return NewList("simulator param", Source[trading.Param, string]{
		List: func(ctx context.Context, _ api.Params) api.ListResult[trading.Param] {
			return sims.Params(ctx, simID)
		},
	}, paramKey, opts)
}

// NewTradings returns the cross-simulator trading log
func NewTradings(c *api.Client, opts Options) *List[trading.Trading, int] {
	return NewList("trading", Source[trading.Trading, int]{
		List: c.Simulators().Tradings,
	}, func(t trading.Trading) int { return t.ID }, opts)
}

// NewTradeEarns returns the cumulative earnings chart
func NewTradeEarns(c *api.Client, opts Options) *List[trading.TradeEarn, int] {
	return NewList("trade earn", Source[trading.TradeEarn, int]{
		List: c.Simulators().Earns,
	}, func(e trading.TradeEarn) int { return e.ID }, opts)
}

func withDeps(opts Options, deps ...string) Options {
	if len(opts.Deps) == 0 {
		opts.Deps = deps
	}
	return opts
}

func intParam(p api.Params, key string) int {
	n, err := strconv.Atoi(p[key])
	if err != nil {
		return 0
	}
	return n
}
