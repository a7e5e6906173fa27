package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/trading"
)

// reportedError is a failure the user has already been notified about.
// main exits non-zero without printing it again.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

var errFetchFailed = errors.New("fetch failed")

// watchErrors returns a func reporting whether an error notification was
// sent since watchErrors was called. Store reads notify instead of failing.
func (a *app) watchErrors() func() error {
	before := a.recorder.Count(notify.LevelError)
	return func() error {
		if a.recorder.Count(notify.LevelError) > before {
			return reported(errFetchFailed)
		}
		return nil
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func pct(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func poolRows(pools []trading.Pool) [][]string {
	rows := make([][]string, 0, len(pools))
	for _, p := range pools {
		rows = append(rows, []string{
			itoa(p.ID), p.Name, itoa(p.Stocks), num(p.Earn), num(p.AvgEarn),
			pct(p.EarningRate), itoa(p.TradingTimes), orDash(p.LatestDate),
		})
	}
	return rows
}

var poolHeaders = []string{"ID", "NAME", "STOCKS", "EARN", "AVG EARN", "WIN RATE", "TRADES", "LATEST"}

func stockRows(stocks []trading.Stock) [][]string {
	rows := make([][]string, 0, len(stocks))
	for _, s := range stocks {
		rows = append(rows, []string{
			s.Code, s.Name, num(s.Earn), num(s.AvgEarn), pct(s.EarningRate),
			itoa(s.TradingTimes), orDash(s.EarnUpdatedAt),
		})
	}
	return rows
}

var stockHeaders = []string{"CODE", "NAME", "EARN", "AVG EARN", "WIN RATE", "TRADES", "UPDATED"}

func ruleRows(rules []trading.Rule, running func(int) bool) [][]string {
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		name := r.Name
		if running != nil && running(r.ID) {
			name += " (running)"
		}
		rows = append(rows, []string{
			itoa(r.ID), name, string(r.Type), orDash(r.Pools), num(r.Earn),
			pct(r.EarningRate), itoa(r.TradingTimes),
		})
	}
	return rows
}

var ruleHeaders = []string{"ID", "NAME", "TYPE", "POOLS", "EARN", "WIN RATE", "TRADES"}

func simRows(sims []trading.Simulator) [][]string {
	rows := make([][]string, 0, len(sims))
	for _, s := range sims {
		target := s.StockCode
		if target == "" {
			target = "pool"
		}
		rows = append(rows, []string{
			itoa(s.ID), orDash(s.RuleName), target, string(s.Status),
			money(s.InitMoney), money(s.CurrentMoney), money(s.CumEarn),
			pct(s.EarningRate), itoa(s.TradingTimes),
		})
	}
	return rows
}

var simHeaders = []string{"ID", "RULE", "TARGET", "STATUS", "INIT", "CURRENT", "CUM EARN", "WIN RATE", "TRADES"}

func earnRows(items []trading.StockRuleEarn, byRule bool) [][]string {
	rows := make([][]string, 0, len(items))
	for _, e := range items {
		first := e.StockCodeOrCode()
		second := e.StockName
		if second == "" {
			second = e.Name
		}
		if byRule {
			first, second = itoa(e.RuleID), e.RuleName
		}
		rows = append(rows, []string{
			first, orDash(second), num(e.Earn), pct(e.EarningRate),
			itoa(e.TradingTimes), orDash(e.Status), orDash(e.IndicatingDate),
		})
	}
	return rows
}

var (
	stockEarnHeaders = []string{"CODE", "NAME", "EARN", "WIN RATE", "TRADES", "STATUS", "INDICATING"}
	ruleEarnHeaders  = []string{"RULE", "NAME", "EARN", "WIN RATE", "TRADES", "STATUS", "INDICATING"}
)

func paramRows(params []trading.Param) [][]string {
	rows := make([][]string, 0, len(params))
	for _, p := range params {
		rows = append(rows, []string{p.Name, string(p.Value)})
	}
	return rows
}

var paramHeaders = []string{"NAME", "VALUE"}

func ruleTradingRows(items []trading.RuleTrading) [][]string {
	rows := make([][]string, 0, len(items))
	for _, t := range items {
		rows = append(rows, []string{
			t.TradingDate, orDash(t.Stock), string(t.TradingType), num(t.TradingAmount),
		})
	}
	return rows
}

var ruleTradingHeaders = []string{"DATE", "STOCK", "TYPE", "AMOUNT"}

func simTradingRows(items []trading.SimTrading) [][]string {
	rows := make([][]string, 0, len(items))
	for _, t := range items {
		kind := string(t.TradingType)
		if t.TradingType.Failed() {
			kind += " !"
		}
		rows = append(rows, []string{
			orDash(t.TradingDate), orDash(t.Stock), kind, num(t.TradingAmount),
		})
	}
	return rows
}

var simTradingHeaders = []string{"DATE", "STOCK", "TYPE", "AMOUNT"}

func tradingRows(items []trading.Trading) [][]string {
	rows := make([][]string, 0, len(items))
	for _, t := range items {
		sold := ""
		if t.Sold {
			sold = "sold"
		}
		rows = append(rows, []string{
			orDash(t.TradingDate), orDash(t.RuleName), orDash(t.Stock), orDash(t.StockName),
			string(t.Type), money(t.Price), itoa(t.Share), sold,
		})
	}
	return rows
}

var tradingHeaders = []string{"DATE", "RULE", "STOCK", "NAME", "TYPE", "PRICE", "SHARE", ""}

func tradeEarnRows(items []trading.TradeEarn) [][]string {
	rows := make([][]string, 0, len(items))
	for _, e := range items {
		rows = append(rows, []string{
			orDash(e.CreatedAt), itoa(e.RuleID), itoa(e.SimID), money(e.CumEarn), itoa(e.TradingTimes),
		})
	}
	return rows
}

var tradeEarnHeaders = []string{"DATE", "RULE", "SIM", "CUM EARN", "TRADES"}

// pagination prints "page x, n of total" under a paged table
func (a *app) pagination(shown, total, page int) {
	if page <= 0 || total <= shown {
		a.printer.Dim("%d records", total)
		return
	}
	a.printer.Dim("page %d, %d of %d records", page, shown, total)
}

// fieldsHelp documents the argument forms accepted by parseFields
const fieldsHelp = `Fields are given as key=value, which always sends a string, or as
key:=json for numbers, booleans and other typed values:

  stockctl sims update 3 stock_code=600519 init_money:=100000
  stockctl rules update 1 name=2024 info:='{"window":20}'`

// parseFields turns key=value and key:=json arguments into a patch.
// Plain values are strings; typed values are decoded as JSON.
func parseFields(args []string) (trading.Patch, error) {
	patch := trading.Patch{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value or key:=json, got %q", arg)
		}
		if name, typed := strings.CutSuffix(key, ":"); typed {
			v, err := jsonValue(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			key = name
			patch[key] = v
		} else {
			patch[key] = value
		}
		if key == "" {
			return nil, fmt.Errorf("expected key=value or key:=json, got %q", arg)
		}
	}
	return patch, nil
}

func jsonValue(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON %q: %w", s, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON %q: trailing data", s)
	}
	return v, nil
}
