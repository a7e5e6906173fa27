package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/trading"
)

// running tracks the ids with a run in flight
type running struct {
	mu  sync.Mutex
	ids map[int]bool
}

func (r *running) start(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids == nil {
		r.ids = make(map[int]bool)
	}
	if r.ids[id] {
		return false
	}
	r.ids[id] = true
	return true
}

func (r *running) done(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

func (r *running) has(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[id]
}

func (r *running) list() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// ErrAlreadyRunning is returned when a run is requested for an id whose
// previous run has not returned yet
var ErrAlreadyRunning = errors.New("run already in progress")

// Rules is the rule list plus the synchronous agent run
type Rules struct {
	*List[trading.Rule, int]
	svc     *api.RuleService
	running running
}

// NewRules returns the rule list, filtered by the rule_type parameter
func NewRules(c *api.Client, opts Options) *Rules {
	rules := c.Rules()
	return &Rules{
		List: NewList("rule", Source[trading.Rule, int]{
			List:   rules.List,
			Create: created(rules.Create),
			Update: rules.Update,
			Delete: rules.Delete,
		}, ruleKey, withDeps(opts, "rule_type")),
		svc: rules,
	}
}

// Run runs an agent rule over all its stocks and waits for it, bounded by
// the rule run timeout. The list is re-fetched afterwards so the new
// earnings show.
func (r *Rules) Run(ctx context.Context, id int) error {
	if !r.running.start(id) {
		return fmt.Errorf("run rule %d: %w", id, ErrAlreadyRunning)
	}
	_, err := r.svc.Run(ctx, id, nil)
	r.running.done(id)

	if err != nil {
		r.log.WithError(err).WithField("rule_id", id).Error("run failed")
		notify.Error(r.notify, "Failed to run agent: %s", api.Message(err))
		return fmt.Errorf("run rule %d: %w", id, err)
	}

	notify.Success(r.notify, "Agent run finished successfully")
	r.Refresh(ctx)
	return nil
}

// Running reports whether a run of rule id is in flight
func (r *Rules) Running(id int) bool {
	return r.running.has(id)
}

// Simulators is the simulator list plus the simulator run
type Simulators struct {
	*List[trading.Simulator, int]
	svc     *api.SimulatorService
	running running
}

// NewSimulators returns the simulator list, filtered by the rule_id parameter
func NewSimulators(c *api.Client, opts Options) *Simulators {
	sims := c.Simulators()
	return &Simulators{
		List: NewList("simulator", Source[trading.Simulator, int]{
			List:   sims.List,
			Create: created(sims.Create),
			Update: sims.Update,
			Delete: sims.Delete,
		}, simulatorKey, withDeps(opts, "rule_id")),
		svc: sims,
	}
}

// Run runs a simulator to the current date, bounded by the simulator run
// timeout, then re-fetches the list
func (s *Simulators) Run(ctx context.Context, id int) error {
	if !s.running.start(id) {
		return fmt.Errorf("run simulator %d: %w", id, ErrAlreadyRunning)
	}
	_, err := s.svc.Run(ctx, id)
	s.running.done(id)

	if err != nil {
		s.log.WithError(err).WithField("sim_id", id).Error("run failed")
		notify.Error(s.notify, "Failed to run simulator: %s", api.Message(err))
		return fmt.Errorf("run simulator %d: %w", id, err)
	}

	notify.Success(s.notify, "Simulator run finished successfully")
	s.Refresh(ctx)
	return nil
}

// Running reports whether a run of simulator id is in flight
func (s *Simulators) Running(id int) bool {
	return s.running.has(id)
}

// RunningIDs returns the simulators with a run in flight
func (s *Simulators) RunningIDs() []int {
	return s.running.list()
}
