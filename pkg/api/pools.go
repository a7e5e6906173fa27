package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xinguang/stock-console/pkg/trading"
)

// PoolService reads and writes pools
type PoolService struct {
	c *Client
}

// Pools returns the pool service
func (c *Client) Pools() *PoolService {
	return &PoolService{c: c}
}

// List returns the pools
func (s *PoolService) List(ctx context.Context, query Params) ListResult[trading.Pool] {
	return fetchList[trading.Pool](ctx, s.c, poolListPath(), query)
}

// Get returns one pool
func (s *PoolService) Get(ctx context.Context, id int) (trading.Pool, error) {
	return fetchOne[trading.Pool](ctx, s.c, poolPath(id), nil)
}

// Create creates a pool and returns the server's data payload
func (s *PoolService) Create(ctx context.Context, fields trading.Patch) (json.RawMessage, error) {
	return s.c.mutate(ctx, request{method: http.MethodPost, path: poolListPath(), body: fields})
}

// Update changes the patched fields of a pool
func (s *PoolService) Update(ctx context.Context, id int, patch trading.Patch) error {
	_, err := s.c.mutate(ctx, request{method: http.MethodPut, path: poolPath(id), body: patch})
	return err
}

// Delete removes a pool
func (s *PoolService) Delete(ctx context.Context, id int) error {
	_, err := s.c.mutate(ctx, request{method: http.MethodDelete, path: poolPath(id)})
	return err
}
