package api

import (
	"context"
	"net/http"

	"github.com/xinguang/stock-console/pkg/trading"
)

// SimConfigService reads and writes the global simulator sell policy.
// Writes are last-write-wins.
type SimConfigService struct {
	c *Client
}

// SimConfig returns the simulator config service
func (c *Client) SimConfig() *SimConfigService {
	return &SimConfigService{c: c}
}

// Get returns the current sell policy
func (s *SimConfigService) Get(ctx context.Context) (trading.SimulatorConfig, error) {
	return fetchOne[trading.SimulatorConfig](ctx, s.c, simulatorConfigPath(), nil)
}

// Update replaces the sell policy
func (s *SimConfigService) Update(ctx context.Context, cfg trading.SimulatorConfig) error {
	body := map[string]interface{}{
		"profit_threshold": cfg.ProfitThreshold,
		"stop_loss":        cfg.StopLoss,
		"max_holding_days": cfg.MaxHoldingDays,
	}
	_, err := s.c.mutate(ctx, request{method: http.MethodPut, path: simulatorConfigPath(), body: body})
	return err
}
