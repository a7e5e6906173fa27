package store

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/apitest"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/trading"
)

func rulePoolsPath(ruleID int) string {
	return "/api/v1/get_rule/rule/" + strconv.Itoa(ruleID) + "/pools"
}

func TestRulePoolsBindAndUnbindRefetch(t *testing.T) {
	f := newFixture(t)
	a := f.srv.AddPool(trading.Pool{Name: "a"})
	b := f.srv.AddPool(trading.Pool{Name: "b"})
	rule := f.srv.AddRule(trading.Rule{Name: "agent"}, a.ID)

	pools := NewRulePools(f.client, rule.ID, Options{Notifier: f.notes, Params: api.Params{"bind_key": "cn_stocks"}})
	ctx := context.Background()
	pools.Mount(ctx)
	require.Len(t, pools.Items(), 1)
	f.srv.ResetRequests()

	require.NoError(t, pools.Bind(ctx, []int{b.ID}))
	assert.Equal(t, 1, f.srv.Count(http.MethodGet, rulePoolsPath(rule.ID)))
	req, _ := f.srv.Last(http.MethodGet, rulePoolsPath(rule.ID))
	assert.Equal(t, "cn_stocks", req.Query.Get("bind_key"))
	assert.Len(t, pools.Items(), 2)

	require.NoError(t, pools.Unbind(ctx, a.ID))
	assert.Equal(t, 2, f.srv.Count(http.MethodGet, rulePoolsPath(rule.ID)))
	assert.Equal(t, []trading.Pool{b}, pools.Items())

	assert.Equal(t, 2, f.notes.Count(notify.LevelSuccess))
}

func TestRulePoolsBindFailure(t *testing.T) {
	f := newFixture(t)
	rule := f.srv.AddRule(trading.Rule{Name: "agent"})
	pools := NewRulePools(f.client, rule.ID, f.opts())

	err := pools.Bind(context.Background(), []int{999})

	require.Error(t, err)
	assert.Equal(t, "pool doesn't exist", api.Message(err))
	assert.Zero(t, f.srv.Count(http.MethodGet, rulePoolsPath(rule.ID)))
	last, _ := f.notes.Last()
	assert.Equal(t, notify.LevelError, last.Level)
}

func TestPoolMembers(t *testing.T) {
	f := newFixture(t)
	pool := f.srv.AddPool(trading.Pool{Name: "banks"})
	f.srv.AddStock(pool.ID, trading.Stock{Code: "600000", Name: "SPDB"})
	f.srv.AddStock(0, trading.Stock{Code: "600036", Name: "CMB"})

	members := NewPoolMembers(f.client, pool.ID, f.opts())
	ctx := context.Background()
	members.Mount(ctx)
	require.Len(t, members.Items(), 1)
	f.srv.ResetRequests()

	require.NoError(t, members.AddStock(ctx, "600036"))
	assert.Equal(t, 1, f.srv.Count(http.MethodGet, "/api/v1/get_stock/stock_list"))
	added, found := members.Find("600036")
	require.True(t, found)
	assert.Equal(t, "CMB", added.Name, "name comes from the server")

	require.NoError(t, members.RemoveStock(ctx, "600000"))
	assert.Equal(t, 1, f.srv.Count(http.MethodGet, "/api/v1/get_stock/stock_list"), "remove is local")
	assert.Equal(t, []trading.Stock{{Code: "600036", Name: "CMB"}}, members.Items())
	assert.Equal(t, []string{"600036"}, f.srv.Members(pool.ID))
}

func TestPoolMembersDuplicateAdd(t *testing.T) {
	f := newFixture(t)
	pool := f.srv.AddPool(trading.Pool{Name: "banks"})
	f.srv.AddStock(pool.ID, trading.Stock{Code: "600000"})
	members := NewPoolMembers(f.client, pool.ID, f.opts())

	err := members.AddStock(context.Background(), "600000")

	assert.Equal(t, "Registration already exists!", api.Message(err))
	assert.Equal(t, 1, f.notes.Count(notify.LevelError))
}

func TestSimulatorRun(t *testing.T) {
	f := newFixture(t)
	rule := f.srv.AddRule(trading.Rule{Name: "agent"})
	sim := f.srv.AddSimulator(trading.Simulator{RuleID: rule.ID, Status: trading.SimCreated})
	sims := NewSimulators(f.client, f.opts())
	ctx := context.Background()
	sims.Fetch(ctx, nil)
	f.srv.ResetRequests()

	require.NoError(t, sims.Run(ctx, sim.ID))

	assert.Equal(t, 1, f.srv.Count(http.MethodGet, "/api/v1/get_simulator/simulator_list"))
	got, found := sims.Find(sim.ID)
	require.True(t, found)
	assert.Equal(t, trading.SimNormal, got.Status)
	assert.False(t, sims.Running(sim.ID))
	last, _ := f.notes.Last()
	assert.Equal(t, notify.LevelSuccess, last.Level)
}

func TestSimulatorRunMarksRunning(t *testing.T) {
	f := newFixture(t)
	sim := f.srv.AddSimulator(trading.Simulator{})
	f.srv.Reply(http.MethodPut, "/api/v1/get_simulator/simulator/"+strconv.Itoa(sim.ID)+"/run",
		apitest.Reply{Delay: 300 * time.Millisecond, Body: `{"code":"SUCCESS","data":{}}`})
	sims := NewSimulators(f.client, f.opts())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- sims.Run(ctx, sim.ID) }()

	assert.Eventually(t, func() bool { return sims.Running(sim.ID) }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, sims.Run(ctx, sim.ID), ErrAlreadyRunning)
	assert.Equal(t, []int{sim.ID}, sims.RunningIDs())

	require.NoError(t, <-done)
	assert.Empty(t, sims.RunningIDs())
}

func TestRuleRunFailure(t *testing.T) {
	f := newFixture(t)
	rules := NewRules(f.client, f.opts())

	err := rules.Run(context.Background(), 12345)

	require.Error(t, err)
	assert.Equal(t, "rule not found", api.Message(err))
	last, _ := f.notes.Last()
	assert.Equal(t, "Failed to run agent: rule not found", last.Message)
	assert.False(t, rules.Running(12345))
}

func TestRulesFilterByType(t *testing.T) {
	f := newFixture(t)
	f.srv.AddRule(trading.Rule{Name: "a", Type: trading.RuleTypeAgent})
	f.srv.AddRule(trading.Rule{Name: "b", Type: trading.RuleTypeTech})
	rules := NewRules(f.client, Options{Notifier: f.notes, Params: api.Params{"rule_type": "agent"}})
	ctx := context.Background()

	rules.Mount(ctx)
	require.Len(t, rules.Items(), 1)
	assert.Equal(t, "a", rules.Items()[0].Name)

	assert.True(t, rules.SetParams(ctx, api.Params{"rule_type": "tech"}))
	assert.Equal(t, "b", rules.Items()[0].Name)
}
