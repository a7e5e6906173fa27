package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinguang/stock-console/pkg/apitest"
	"github.com/xinguang/stock-console/pkg/trading"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *apitest.Server) {
	t.Helper()
	srv := apitest.Start(t)
	return New(srv.BaseURL(), opts...), srv
}

func TestNewDefaults(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultRuleRunTimeout, c.ruleRun)
	assert.Equal(t, DefaultSimulatorRunTimeout, c.simRun)
	assert.Zero(t, c.client.Timeout, "streams need a client without a global timeout")

	assert.Equal(t, "http://backend/api", New("http://backend/api/").BaseURL())
}

func TestGetIsCacheBusted(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	c, srv := newTestClient(t, WithClock(func() time.Time { return fixed }))

	Items(c.Pools().List(context.Background(), Params{"page": "2", "empty": ""}))

	req, ok := srv.Last(http.MethodGet, "/api/v1/get_pool/pool_list")
	require.True(t, ok)
	assert.Equal(t, "1700000000123", req.Query.Get("_t"))
	assert.Equal(t, "2", req.Query.Get("page"))
	assert.False(t, req.Query.Has("empty"))
}

func TestWritesAreNotCacheBusted(t *testing.T) {
	c, srv := newTestClient(t)

	_, err := c.Pools().Create(context.Background(), trading.Patch{"name": "growth"})
	require.NoError(t, err)

	req, ok := srv.Last(http.MethodPost, "/api/v1/get_pool/pool_list")
	require.True(t, ok)
	assert.False(t, req.Query.Has("_t"))
	assert.JSONEq(t, `{"name":"growth"}`, string(req.Body))
}

func TestHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"code":"SUCCESS","data":{"id":1,"name":"p"}}`))
	}))
	defer server.Close()

	c := New(server.URL, WithUserAgent("stockctl/test"))
	_, err := c.Pools().Get(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "stockctl/test", got.Get("User-Agent"))
	assert.Len(t, got.Get("X-Request-ID"), 36)
}

func TestStatusMessages(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusUnauthorized, `{}`, "unauthorized"},
		{http.StatusForbidden, `{}`, "forbidden"},
		{http.StatusNotFound, `{}`, "not found"},
		{http.StatusInternalServerError, `{"detail":"trace"}`, "server error"},
		{http.StatusTeapot, `{"message":"short and stout"}`, "short and stout"},
		{http.StatusBadGateway, `bad gateway`, "request failed"},
		{http.StatusBadRequest, `{"detail":"pool name already exists"}`, "pool name already exists"},
		{http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","name"],"msg":"field required","type":"value_error.missing"}]}`, "name: field required"},
		{http.StatusConflict, `{"detail":[]}`, "request failed"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.Reply(http.MethodGet, "/api/v1/get_pool/pool_list", apitest.Reply{Status: tt.status, Body: tt.body})

			r := c.Pools().List(context.Background(), nil)

			var apiErr *APIError
			require.True(t, errors.As(Err(r), &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, Message(Err(r)))
		})
	}
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(url)
	r := c.Rules().List(context.Background(), nil)

	var tErr *TransportError
	require.True(t, errors.As(Err(r), &tErr))
	assert.Equal(t, http.MethodGet, tErr.Method)
	assert.Equal(t, "network connection failed", Message(Err(r)))
}

func TestDefaultTimeoutPerCall(t *testing.T) {
	c, srv := newTestClient(t, WithTimeout(50*time.Millisecond))
	srv.Reply(http.MethodGet, "/api/v1/get_pool/pool_list", apitest.Reply{Delay: time.Second, Body: `[]`})

	r := c.Pools().List(context.Background(), nil)

	var tErr *TransportError
	require.True(t, errors.As(Err(r), &tErr))
	assert.ErrorIs(t, Err(r), context.DeadlineExceeded)
}

func TestRunUsesLongTimeout(t *testing.T) {
	c, srv := newTestClient(t,
		WithTimeout(20*time.Millisecond),
		WithRunTimeouts(5*time.Second, 5*time.Second))
	srv.Reply(http.MethodPost, "/api/v1/get_rule/rule/run/7", apitest.Reply{Delay: 150 * time.Millisecond, Body: `{"code":"SUCCESS","data":{"rule_id":7}}`})
	srv.Reply(http.MethodPut, "/api/v1/get_simulator/simulator/3/run", apitest.Reply{Delay: 150 * time.Millisecond, Body: `{"code":"SUCCESS","data":{"id":3}}`})

	data, err := c.Rules().Run(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rule_id":7}`, string(data))

	_, err = c.Simulators().Run(context.Background(), 3)
	require.NoError(t, err)
}

func TestPoolCRUD(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	data, err := c.Pools().Create(ctx, trading.Patch{"name": "banks"})
	require.NoError(t, err)

	var created struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &created))

	require.NoError(t, c.Pools().Update(ctx, created.ID, trading.Patch{"name": "big banks"}))
	p, err := c.Pools().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "big banks", p.Name)

	r := c.Pools().List(ctx, nil)
	require.IsType(t, Success[trading.Pool]{}, r)
	assert.Equal(t, 1, Total(r))

	require.NoError(t, c.Pools().Delete(ctx, created.ID))
	_, found := srv.Pool(created.ID)
	assert.False(t, found)

	err = c.Pools().Delete(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "pool not found", Message(err))
}

func TestCreateDuplicateIsAPIError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddPool(trading.Pool{Name: "banks"})

	_, err := c.Pools().Create(context.Background(), trading.Patch{"name": "banks"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Pool already exists!", apiErr.Message)
}

func TestStockMembership(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	pool := srv.AddPool(trading.Pool{Name: "banks"})
	srv.AddStock(0, trading.Stock{Code: "600036", Name: "CMB"})

	require.NoError(t, c.Stocks().AddToPool(ctx, "600036", pool.ID))
	assert.Equal(t, []string{"600036"}, srv.Members(pool.ID))

	r := c.Stocks().List(ctx, Params{}.WithInt("pool_id", pool.ID))
	assert.Equal(t, []trading.Stock{{Code: "600036", Name: "CMB"}}, Items(r))

	require.NoError(t, c.Stocks().Delete(ctx, "600036", pool.ID))
	req, ok := srv.Last(http.MethodDelete, "/api/v1/get_stock/stock/600036")
	require.True(t, ok)
	assert.JSONEq(t, `{"pool_id":`+itoa(pool.ID)+`}`, string(req.Body))
	assert.Empty(t, srv.Members(pool.ID))
}

func TestRulePoolBinding(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	a := srv.AddPool(trading.Pool{Name: "a"})
	b := srv.AddPool(trading.Pool{Name: "b"})
	rule := srv.AddRule(trading.Rule{Name: "agent", Type: trading.RuleTypeAgent})

	require.NoError(t, c.Rules().BindPools(ctx, rule.ID, []int{a.ID, b.ID}))
	req, _ := srv.Last(http.MethodPost, "/api/v1/get_rule/rule/"+itoa(rule.ID)+"/pools")
	assert.JSONEq(t, `{"pool_ids":[`+itoa(a.ID)+`,`+itoa(b.ID)+`]}`, string(req.Body))

	r := c.Rules().Pools(ctx, rule.ID, Params{"bind_key": "cn_stocks"})
	assert.Len(t, Items(r), 2)

	require.NoError(t, c.Rules().UnbindPool(ctx, rule.ID, a.ID))
	assert.Equal(t, []int{b.ID}, srv.RulePools(rule.ID))
}

func TestRuleParamsAndEarns(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	rule := srv.AddRule(trading.Rule{Name: "agent"})
	srv.SetRuleParams(rule.ID, map[string]interface{}{"window": 20})
	srv.AddEarn(trading.TradeEarn{ID: 1})

	params := Items(c.Rules().Params(ctx, rule.ID, nil))
	require.Len(t, params, 1)
	assert.Equal(t, "window", params[0].Name)
	assert.JSONEq(t, `20`, string(params[0].Value))

	earns := c.Simulators().Earns(ctx, nil)
	assert.IsType(t, LegacyList[trading.TradeEarn]{}, earns)
	assert.Equal(t, 1, Total(earns))
}

func TestSimConfig(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	cfg, err := c.SimConfig().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.StopLoss)
	assert.Equal(t, 5, cfg.MaxHoldingDays)

	cfg.StopLoss = 3.5
	cfg.MaxHoldingDays = 10
	require.NoError(t, c.SimConfig().Update(ctx, cfg))

	stored := srv.SimConfig()
	assert.Equal(t, 3.5, stored.StopLoss)
	assert.Equal(t, 10, stored.MaxHoldingDays)
}

func TestExecutionStartAndStream(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	rule := srv.AddRule(trading.Rule{Name: "agent"})
	srv.SetScript(apitest.Script{Events: []map[string]interface{}{
		{"type": "start", "message": "go"},
		{"type": "complete", "message": "done"},
	}})

	exec, err := c.Executions().Start(ctx, rule.ID, "600036")
	require.NoError(t, err)
	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, "600036", exec.StockCode)
	_, ok := srv.Last(http.MethodPost, "/api/v1/get_rule/rule/"+itoa(rule.ID)+"/stock/600036/start")
	assert.True(t, ok)

	body, err := c.Executions().Stream(ctx, exec)
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "data: "))

	req, ok := srv.Last(http.MethodGet, "/api"+StreamPath(rule.ID, "600036"))
	require.True(t, ok)
	assert.Equal(t, exec.ID, req.Query.Get("execution_id"))
}

func TestExecutionStartMissingID(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Reply(http.MethodPost, "/api/v1/get_rule/rule/1/start", apitest.Reply{Body: `{"code":"SUCCESS"}`})

	_, err := c.Executions().Start(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestExecutionStreamUnknownID(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Executions().Stream(context.Background(), Execution{ID: "missing", RuleID: 1})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestStreamPath(t *testing.T) {
	assert.Equal(t, "/v1/get_rule/rule/4/stream", StreamPath(4, ""))
	assert.Equal(t, "/v1/get_rule/rule/4/stock/600000/stream", StreamPath(4, "600000"))
}
