package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xinguang/stock-console/pkg/trading"
)

// RuleService reads and writes rules, their pool bindings and their results
type RuleService struct {
	c *Client
}

// Rules returns the rule service
func (c *Client) Rules() *RuleService {
	return &RuleService{c: c}
}

// List returns rules, optionally filtered by rule_type
func (s *RuleService) List(ctx context.Context, query Params) ListResult[trading.Rule] {
	return fetchList[trading.Rule](ctx, s.c, ruleListPath(), query)
}

// Get returns one rule
func (s *RuleService) Get(ctx context.Context, id int, query Params) (trading.Rule, error) {
	return fetchOne[trading.Rule](ctx, s.c, rulePath(id), query)
}

// Create creates a rule
func (s *RuleService) Create(ctx context.Context, fields trading.Patch) (json.RawMessage, error) {
	return s.c.mutate(ctx, request{method: http.MethodPost, path: ruleListPath(), body: fields})
}

// Update changes the patched fields of a rule
func (s *RuleService) Update(ctx context.Context, id int, patch trading.Patch) error {
	_, err := s.c.mutate(ctx, request{method: http.MethodPut, path: rulePath(id), body: patch})
	return err
}

// Delete removes a rule
func (s *RuleService) Delete(ctx context.Context, id int) error {
	_, err := s.c.mutate(ctx, request{method: http.MethodDelete, path: rulePath(id)})
	return err
}

// Pools returns the pools bound to a rule
func (s *RuleService) Pools(ctx context.Context, id int, query Params) ListResult[trading.Pool] {
	return fetchList[trading.Pool](ctx, s.c, rulePoolsPath(id), query)
}

// BindPools binds a batch of pools to a rule
func (s *RuleService) BindPools(ctx context.Context, id int, poolIDs []int) error {
	body := map[string][]int{"pool_ids": poolIDs}
	_, err := s.c.mutate(ctx, request{method: http.MethodPost, path: rulePoolsPath(id), body: body})
	return err
}

// UnbindPool removes one pool from a rule
func (s *RuleService) UnbindPool(ctx context.Context, id, poolID int) error {
	body := map[string]int{"pool_id": poolID}
	_, err := s.c.mutate(ctx, request{method: http.MethodDelete, path: rulePoolsPath(id), body: body})
	return err
}

// Stocks returns the stocks a rule evaluates, with per-stock earnings
func (s *RuleService) Stocks(ctx context.Context, id int, query Params) ListResult[trading.StockRuleEarn] {
	return fetchList[trading.StockRuleEarn](ctx, s.c, ruleStocksPath(id), query)
}

// Params returns the parameter set of a rule
func (s *RuleService) Params(ctx context.Context, id int, query Params) ListResult[trading.Param] {
	return fetchParams(ctx, s.c, ruleParamsPath(id), query)
}

// Trading returns the rule's indicating events, paged with page/page_size
func (s *RuleService) Trading(ctx context.Context, id int, query Params) ListResult[trading.RuleTrading] {
	return fetchList[trading.RuleTrading](ctx, s.c, ruleTradingPath(id), query)
}

// Indicating returns the per-stock indicating state of a rule
func (s *RuleService) Indicating(ctx context.Context, id int) ListResult[trading.StockRuleEarn] {
	return fetchList[trading.StockRuleEarn](ctx, s.c, ruleIndicatingPath(id), nil)
}

// Run runs an agent rule synchronously over all its stocks. The call is
// bounded by the rule run timeout instead of the default one.
func (s *RuleService) Run(ctx context.Context, id int, payload trading.Patch) (json.RawMessage, error) {
	if payload == nil {
		payload = trading.Patch{}
	}
	return s.c.mutate(ctx, request{
		method:  http.MethodPost,
		path:    ruleRunPath(id),
		body:    payload,
		timeout: s.c.ruleRun,
	})
}

// RunStock runs an agent rule synchronously for one stock
func (s *RuleService) RunStock(ctx context.Context, id int, code string) (json.RawMessage, error) {
	return s.c.mutate(ctx, request{
		method:  http.MethodPost,
		path:    ruleRunStockPath(id),
		query:   Params{"stock_code": code},
		body:    trading.Patch{},
		timeout: s.c.ruleRun,
	})
}
