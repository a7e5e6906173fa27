package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xinguang/stock-console/pkg/trading"
)

// StockService reads stocks and manages pool membership
type StockService struct {
	c *Client
}

// Stocks returns the stock service
func (c *Client) Stocks() *StockService {
	return &StockService{c: c}
}

// List returns stocks, scoped to a pool with the pool_id parameter
func (s *StockService) List(ctx context.Context, query Params) ListResult[trading.Stock] {
	return fetchList[trading.Stock](ctx, s.c, stockListPath(), query)
}

// Create adds a stock to a pool; fields carry code and pool_id
func (s *StockService) Create(ctx context.Context, fields trading.Patch) (json.RawMessage, error) {
	return s.c.mutate(ctx, request{method: http.MethodPost, path: stockListPath(), body: fields})
}

// AddToPool adds the stock with code to a pool
func (s *StockService) AddToPool(ctx context.Context, code string, poolID int) error {
	_, err := s.Create(ctx, trading.Patch{"code": code, "pool_id": poolID})
	return err
}

// Delete removes a stock from a pool. A zero poolID sends no body.
func (s *StockService) Delete(ctx context.Context, code string, poolID int) error {
	r := request{method: http.MethodDelete, path: stockPath(code)}
	if poolID != 0 {
		r.body = map[string]int{"pool_id": poolID}
	}
	_, err := s.c.mutate(ctx, r)
	return err
}

// Rules returns the rules evaluating a stock with their earnings
func (s *StockService) Rules(ctx context.Context, code string, query Params) ListResult[trading.StockRuleEarn] {
	return fetchList[trading.StockRuleEarn](ctx, s.c, stockRulesPath(code), query)
}
