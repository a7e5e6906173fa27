package api

import (
	"net/url"
	"strconv"
)

// Resource families of the backend
const (
	poolPrefix      = "/v1/get_pool"
	stockPrefix     = "/v1/get_stock"
	rulePrefix      = "/v1/get_rule"
	simulatorPrefix = "/v1/get_simulator"
)

func itoa(id int) string { return strconv.Itoa(id) }

func esc(s string) string { return url.PathEscape(s) }

func poolListPath() string { return poolPrefix + "/pool_list" }
func poolPath(id int) string { return poolPrefix + "/pool/" + itoa(id) }
func stockListPath() string { return stockPrefix + "/stock_list" }
func stockPath(code string) string {
	return stockPrefix + "/stock/" + esc(code)
}
func stockRulesPath(code string) string { return stockPath(code) + "/rules" }

func ruleListPath() string { return rulePrefix + "/rule_list" }
func rulePath(id int) string { return rulePrefix + "/rule/" + itoa(id) }
func rulePoolsPath(id int) string { return rulePath(id) + "/pools" }
func ruleStocksPath(id int) string { return rulePath(id) + "/stocks" }
func ruleParamsPath(id int) string { return rulePath(id) + "/params" }
func ruleTradingPath(id int) string { return rulePath(id) + "/trading" }
func ruleIndicatingPath(id int) string { return rulePath(id) + "/stocks_indicating" }
func ruleRunPath(id int) string { return rulePrefix + "/rule/run/" + itoa(id) }
func ruleRunStockPath(id int) string { return rulePath(id) + "/run_stock" }

func ruleStartPath(id int) string { return rulePath(id) + "/start" }
func stockStartPath(id int, code string) string {
	return rulePath(id) + "/stock/" + esc(code) + "/start"
}

// StreamPath returns the log stream path of an execution: the whole-rule
// stream when code is empty, the single-stock stream otherwise
func StreamPath(ruleID int, code string) string {
	if code == "" {
		return rulePath(ruleID) + "/stream"
	}
	return rulePath(ruleID) + "/stock/" + esc(code) + "/stream"
}

func simulatorListPath() string { return simulatorPrefix + "/simulator_list" }
func simulatorPath(id int) string { return simulatorPrefix + "/simulator/" + itoa(id) }
func simulatorRunPath(id int) string { return simulatorPath(id) + "/run" }
func simulatorTradingPath(id int) string { return simulatorPath(id) + "/trading" }
func simulatorParamsPath(id int) string { return simulatorPath(id) + "/params" }
func tradingListPath() string { return simulatorPrefix + "/trading_list" }
func earnListPath() string { return simulatorPrefix + "/earn_list" }
func simulatorConfigPath() string { return simulatorPrefix + "/config" }
