package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/apitest"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/trading"
)

const poolListPath = "/api/v1/get_pool/pool_list"

type fixture struct {
	srv    *apitest.Server
	client *api.Client
	notes  *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.Start(t)
	return &fixture{
		srv:    srv,
		client: api.New(srv.BaseURL()),
		notes:  &notify.Recorder{},
	}
}

func (f *fixture) opts() Options {
	return Options{Notifier: f.notes}
}

func (f *fixture) seedPools(names ...string) []trading.Pool {
	pools := make([]trading.Pool, 0, len(names))
	for _, name := range names {
		pools = append(pools, f.srv.AddPool(trading.Pool{Name: name, Earn: 1.5}))
	}
	return pools
}

func TestFetchEnvelope(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedPools("a", "b", "c")
	pools := NewPools(f.client, f.opts())

	pools.Fetch(context.Background(), api.Params{"page": "1", "page_size": "2"})

	state := pools.Snapshot()
	assert.Equal(t, seeded[:2], state.Items)
	assert.Equal(t, 3, state.Total)
	assert.False(t, state.Loading)
	assert.Empty(t, f.notes.All())
}

func TestFetchBareArray(t *testing.T) {
	f := newFixture(t)
	f.srv.AddEarn(trading.TradeEarn{ID: 1, TradingTimes: 2})
	f.srv.AddEarn(trading.TradeEarn{ID: 2, TradingTimes: 5})
	earns := NewTradeEarns(f.client, f.opts())

	earns.Fetch(context.Background(), nil)

	items := earns.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[1].TradingTimes)
	assert.Equal(t, 2, earns.Total())
}

func TestFetchFailureResetsList(t *testing.T) {
	tests := []struct {
		name  string
		reply apitest.Reply
		want  string
	}{
		{"status", apitest.Reply{Status: http.StatusInternalServerError, Body: `{}`}, "server error"},
		{"code", apitest.Reply{Body: `{"code":"FAILURE","errMsg":"db down"}`}, "db down"},
		{"shape", apitest.Reply{Body: `"ok"`}, "unexpected response from server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedPools("a", "b")
			pools := NewPools(f.client, f.opts())
			ctx := context.Background()

			pools.Fetch(ctx, nil)
			require.Len(t, pools.Items(), 2)

			f.srv.Reply(http.MethodGet, poolListPath, tt.reply)
			pools.Fetch(ctx, nil)

			assert.Empty(t, pools.Items())
			assert.Zero(t, pools.Total())
			assert.Equal(t, 1, f.notes.Count(notify.LevelError))
			last, _ := f.notes.Last()
			assert.Contains(t, last.Message, "Failed to fetch pools")
			assert.Contains(t, last.Message, tt.want)
		})
	}
}

func TestFetchTransportFailure(t *testing.T) {
	f := newFixture(t)
	pools := NewPools(f.client, f.opts())
	f.srv.Close()

	pools.Fetch(context.Background(), nil)

	assert.Empty(t, pools.Items())
	assert.Equal(t, 1, f.notes.Count(notify.LevelError))
	last, _ := f.notes.Last()
	assert.Contains(t, last.Message, "network connection failed")
}

func TestAddRefetchesOnceWithLastParams(t *testing.T) {
	f := newFixture(t)
	f.seedPools("a")
	pools := NewPools(f.client, f.opts())
	ctx := context.Background()

	pools.Fetch(ctx, api.Params{"page": "1", "page_size": "10"})
	f.srv.ResetRequests()

	require.NoError(t, pools.Add(ctx, trading.Patch{"name": "b"}))

	assert.Equal(t, 1, f.srv.Count(http.MethodGet, poolListPath))
	req, ok := f.srv.Last(http.MethodGet, poolListPath)
	require.True(t, ok)
	assert.Equal(t, "10", req.Query.Get("page_size"))
	assert.Equal(t, "1", req.Query.Get("page"))

	assert.Len(t, pools.Items(), 2)
	assert.Equal(t, 2, pools.Total())
	last, _ := f.notes.Last()
	assert.Equal(t, notify.Notification{Level: notify.LevelSuccess, Message: "Pool added successfully", Time: last.Time}, last)
}

func TestAddFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.seedPools("a")
	pools := NewPools(f.client, f.opts())
	ctx := context.Background()
	pools.Fetch(ctx, nil)
	f.srv.ResetRequests()

	err := pools.Add(ctx, trading.Patch{"name": "a"})

	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Pool already exists!", apiErr.Message)
	assert.Zero(t, f.srv.Count(http.MethodGet, poolListPath))
	assert.Equal(t, 1, f.notes.Count(notify.LevelError))
	assert.Len(t, pools.Items(), 1)
}

func TestUpdateMergesOneItem(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedPools("a", "b", "c")
	pools := NewPools(f.client, f.opts())
	ctx := context.Background()
	pools.Fetch(ctx, nil)
	f.srv.ResetRequests()

	require.NoError(t, pools.Update(ctx, seeded[1].ID, trading.Patch{"name": "renamed"}))

	items := pools.Items()
	require.Len(t, items, 3)
	assert.Equal(t, seeded[0], items[0])
	assert.Equal(t, trading.Pool{ID: seeded[1].ID, Name: "renamed", Earn: 1.5}, items[1])
	assert.Equal(t, seeded[2], items[2])
	assert.Zero(t, f.srv.Count(http.MethodGet, poolListPath))
	assert.Equal(t, 1, f.notes.Count(notify.LevelSuccess))
}

func TestUpdateRefetchesWhenMergeFails(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedPools("a", "b")
	pools := NewPools(f.client, f.opts())
	ctx := context.Background()
	pools.Fetch(ctx, nil)

	// the server accepts a value that does not fit the local record
	path := fmt.Sprintf("/api/v1/get_pool/pool/%d", seeded[0].ID)
	f.srv.Reply(http.MethodPut, path, apitest.Reply{Body: `{"code":"SUCCESS"}`})
	f.srv.ResetRequests()

	require.NoError(t, pools.Update(ctx, seeded[0].ID, trading.Patch{"name": 2024}))

	assert.Equal(t, 1, f.srv.Count(http.MethodGet, poolListPath))
	assert.Equal(t, seeded, pools.Items())
	assert.Equal(t, 1, f.notes.Count(notify.LevelSuccess))
	assert.Zero(t, f.notes.Count(notify.LevelError))
}

func TestUpdateFailureLeavesList(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedPools("a")
	pools := NewPools(f.client, f.opts())
	ctx := context.Background()
	pools.Fetch(ctx, nil)

	err := pools.Update(ctx, seeded[0].ID+1000, trading.Patch{"name": "x"})

	require.Error(t, err)
	assert.Equal(t, seeded, pools.Items())
	assert.Equal(t, 1, f.notes.Count(notify.LevelError))
}

func TestDeleteRemovesItem(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedPools("a", "b", "c")
	pools := NewPools(f.client, f.opts())
	ctx := context.Background()
	pools.Fetch(ctx, nil)
	f.srv.ResetRequests()

	require.NoError(t, pools.Delete(ctx, seeded[1].ID))

	assert.Equal(t, []trading.Pool{seeded[0], seeded[2]}, pools.Items())
	assert.Equal(t, 2, pools.Total())
	_, found := pools.Find(seeded[1].ID)
	assert.False(t, found)
	assert.Zero(t, f.srv.Count(http.MethodGet, poolListPath))
}

func TestMountFetchesOnce(t *testing.T) {
	f := newFixture(t)
	f.seedPools("a")
	pools := NewPools(f.client, Options{Notifier: f.notes, Params: api.Params{"page_size": "5"}})
	ctx := context.Background()

	assert.True(t, pools.Mount(ctx))
	assert.False(t, pools.Mount(ctx))

	assert.Equal(t, 1, f.srv.Count(http.MethodGet, poolListPath))
	req, _ := f.srv.Last(http.MethodGet, poolListPath)
	assert.Equal(t, "5", req.Query.Get("page_size"))
}

func TestSetParamsRefetchesOnDependencyChange(t *testing.T) {
	f := newFixture(t)
	a := f.srv.AddPool(trading.Pool{Name: "a"})
	b := f.srv.AddPool(trading.Pool{Name: "b"})
	f.srv.AddStock(a.ID, trading.Stock{Code: "600000"})
	f.srv.AddStock(b.ID, trading.Stock{Code: "000001"})
	f.srv.AddStock(b.ID, trading.Stock{Code: "300750"})

	stocks := NewStocks(f.client, Options{Notifier: f.notes, Params: api.Params{}.WithInt("pool_id", a.ID)})
	ctx := context.Background()
	stocks.Mount(ctx)
	require.Len(t, stocks.Items(), 1)

	assert.False(t, stocks.SetParams(ctx, api.Params{"pool_id": stocks.Params()["pool_id"], "page": "1"}))
	assert.Equal(t, 1, f.srv.Count(http.MethodGet, "/api/v1/get_stock/stock_list"))

	assert.True(t, stocks.SetParams(ctx, api.Params{}.WithInt("pool_id", b.ID)))
	assert.Len(t, stocks.Items(), 2)
	assert.Equal(t, 2, f.srv.Count(http.MethodGet, "/api/v1/get_stock/stock_list"))
}

func TestStockDeleteUsesPoolParam(t *testing.T) {
	f := newFixture(t)
	pool := f.srv.AddPool(trading.Pool{Name: "a"})
	f.srv.AddStock(pool.ID, trading.Stock{Code: "600000"})
	f.srv.AddStock(pool.ID, trading.Stock{Code: "600036"})

	stocks := NewStocks(f.client, f.opts())
	ctx := context.Background()
	stocks.Fetch(ctx, api.Params{}.WithInt("pool_id", pool.ID))

	require.NoError(t, stocks.Delete(ctx, "600000"))

	assert.Equal(t, []string{"600036"}, f.srv.Members(pool.ID))
	assert.Len(t, stocks.Items(), 1)
}

func TestReadOnlyListsRejectMutations(t *testing.T) {
	f := newFixture(t)
	tradings := NewTradings(f.client, f.opts())
	ctx := context.Background()

	assert.ErrorIs(t, tradings.Add(ctx, trading.Patch{}), ErrNotSupported)
	assert.ErrorIs(t, tradings.Update(ctx, 1, trading.Patch{}), ErrNotSupported)
	assert.ErrorIs(t, tradings.Delete(ctx, 1), ErrNotSupported)
	assert.Empty(t, f.srv.Requests())
	assert.Empty(t, f.notes.All())
}

func TestRuleParamsList(t *testing.T) {
	f := newFixture(t)
	rule := f.srv.AddRule(trading.Rule{Name: "agent", Type: trading.RuleTypeAgent})
	f.srv.SetRuleParams(rule.ID, map[string]interface{}{"window": 20, "assets": "cn"})
	params := NewRuleParams(f.client, rule.ID, f.opts())

	params.Fetch(context.Background(), nil)

	items := params.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "assets", items[0].Name)
	assert.Equal(t, "window", items[1].Name)
	assert.Equal(t, 2, params.Total())
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "pools", plural("pool"))
	assert.Equal(t, "tradings", plural("trading"))
	assert.Equal(t, "rule params", plural("rule params"))
	assert.Equal(t, "strategies", plural("strategy"))
}
