package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xinguang/stock-console/pkg/trading"
)

// SimulatorService reads and writes simulators and their trading records
type SimulatorService struct {
	c *Client
}

// Simulators returns the simulator service
func (c *Client) Simulators() *SimulatorService {
	return &SimulatorService{c: c}
}

// List returns simulators
func (s *SimulatorService) List(ctx context.Context, query Params) ListResult[trading.Simulator] {
	return fetchList[trading.Simulator](ctx, s.c, simulatorListPath(), query)
}

// Get returns one simulator
func (s *SimulatorService) Get(ctx context.Context, id int) (trading.Simulator, error) {
	return fetchOne[trading.Simulator](ctx, s.c, simulatorPath(id), nil)
}

// Create creates a simulator
func (s *SimulatorService) Create(ctx context.Context, fields trading.Patch) (json.RawMessage, error) {
	return s.c.mutate(ctx, request{method: http.MethodPost, path: simulatorListPath(), body: fields})
}

// Update changes the patched fields of a simulator
func (s *SimulatorService) Update(ctx context.Context, id int, patch trading.Patch) error {
	_, err := s.c.mutate(ctx, request{method: http.MethodPut, path: simulatorPath(id), body: patch})
	return err
}

// Delete removes a simulator
func (s *SimulatorService) Delete(ctx context.Context, id int) error {
	_, err := s.c.mutate(ctx, request{method: http.MethodDelete, path: simulatorPath(id)})
	return err
}

// Run replays a simulator. The call is bounded by the simulator run
// timeout instead of the default one.
func (s *SimulatorService) Run(ctx context.Context, id int) (json.RawMessage, error) {
	return s.c.mutate(ctx, request{
		method:  http.MethodPut,
		path:    simulatorRunPath(id),
		body:    trading.Patch{},
		timeout: s.c.simRun,
	})
}

// Trading returns the trades a simulator executed
func (s *SimulatorService) Trading(ctx context.Context, id int, query Params) ListResult[trading.SimTrading] {
	return fetchList[trading.SimTrading](ctx, s.c, simulatorTradingPath(id), query)
}

// Params returns a simulator's earning info
func (s *SimulatorService) Params(ctx context.Context, id int) ListResult[trading.Param] {
	return fetchParams(ctx, s.c, simulatorParamsPath(id), nil)
}

// Tradings returns the cross-simulator trading log
func (s *SimulatorService) Tradings(ctx context.Context, query Params) ListResult[trading.Trading] {
	return fetchList[trading.Trading](ctx, s.c, tradingListPath(), query)
}

// Earns returns cumulative earning points
func (s *SimulatorService) Earns(ctx context.Context, query Params) ListResult[trading.TradeEarn] {
	return fetchList[trading.TradeEarn](ctx, s.c, earnListPath(), query)
}
