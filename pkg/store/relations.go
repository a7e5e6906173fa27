package store

import (
	"context"
	"fmt"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/trading"
)

// RulePools is the list of pools bound to a rule. Binding changes the
// rule's aggregates on the server, so every change re-fetches.
type RulePools struct {
	*List[trading.Pool, int]
	ruleID int
	svc    *api.RuleService
}

// NewRulePools returns the pools bound to ruleID. Pass bind_key in
// opts.Params to select the backend database.
func NewRulePools(c *api.Client, ruleID int, opts Options) *RulePools {
	rules := c.Rules()
	return &RulePools{
		List: NewList("rule pool", Source[trading.Pool, int]{
			List: func(ctx context.Context, params api.Params) api.ListResult[trading.Pool] {
				return rules.Pools(ctx, ruleID, params)
			},
		}, poolKey, withDeps(opts, "bind_key")),
		ruleID: ruleID,
		svc:    rules,
	}
}

// Bind binds a batch of pools to the rule and re-fetches
func (r *RulePools) Bind(ctx context.Context, poolIDs []int) error {
	if err := r.svc.BindPools(ctx, r.ruleID, poolIDs); err != nil {
		r.log.WithError(err).WithField("pool_ids", poolIDs).Error("bind failed")
		notify.Error(r.notify, "Failed to add pools to rule: %s", api.Message(err))
		return fmt.Errorf("bind pools to rule %d: %w", r.ruleID, err)
	}

	notify.Success(r.notify, "Pools added to rule successfully")
	r.Refresh(ctx)
	return nil
}

// Unbind removes one pool from the rule and re-fetches
func (r *RulePools) Unbind(ctx context.Context, poolID int) error {
	if err := r.svc.UnbindPool(ctx, r.ruleID, poolID); err != nil {
		r.log.WithError(err).WithField("pool_id", poolID).Error("unbind failed")
		notify.Error(r.notify, "Failed to remove pool from rule: %s", api.Message(err))
		return fmt.Errorf("unbind pool %d from rule %d: %w", poolID, r.ruleID, err)
	}

	notify.Success(r.notify, "Pool removed from rule successfully")
	r.Refresh(ctx)
	return nil
}

// PoolMembers is the list of stocks in one pool
type PoolMembers struct {
	*List[trading.Stock, string]
	poolID int
	svc    *api.StockService
}

// NewPoolMembers returns the stocks of poolID
func NewPoolMembers(c *api.Client, poolID int, opts Options) *PoolMembers {
	stocks := c.Stocks()
	return &PoolMembers{
		List: NewList("pool stock", Source[trading.Stock, string]{
			List: func(ctx context.Context, params api.Params) api.ListResult[trading.Stock] {
				return stocks.List(ctx, params.WithInt("pool_id", poolID))
			},
		}, stockKey, opts),
		poolID: poolID,
		svc:    stocks,
	}
}

// AddStock adds a stock to the pool. The server fills in the stock's name
// and stats, so the list is re-fetched.
func (p *PoolMembers) AddStock(ctx context.Context, code string) error {
	if err := p.svc.AddToPool(ctx, code, p.poolID); err != nil {
		p.log.WithError(err).WithField("code", code).Error("add stock failed")
		notify.Error(p.notify, "Failed to add stock to pool: %s", api.Message(err))
		return fmt.Errorf("add stock %s to pool %d: %w", code, p.poolID, err)
	}

	notify.Success(p.notify, "Stock added to pool successfully")
	p.Refresh(ctx)
	return nil
}

// RemoveStock removes a stock from the pool and drops it locally
func (p *PoolMembers) RemoveStock(ctx context.Context, code string) error {
	if err := p.svc.Delete(ctx, code, p.poolID); err != nil {
		p.log.WithError(err).WithField("code", code).Error("remove stock failed")
		notify.Error(p.notify, "Failed to remove stock from pool: %s", api.Message(err))
		return fmt.Errorf("remove stock %s from pool %d: %w", code, p.poolID, err)
	}

	notify.Success(p.notify, "Stock removed from pool successfully")
	p.Remove(code)
	return nil
}
