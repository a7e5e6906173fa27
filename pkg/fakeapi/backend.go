// Package fakeapi is an in-memory stand-in for the stock-agent backend.
// It speaks the same envelope and stream formats, records every request and
// lets callers script failures and execution event streams. It backs
// `stockctl demo` and, through apitest, the package tests.
package fakeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xinguang/stock-console/pkg/trading"
)

// Request is a recorded inbound call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Reply is a scripted response that replaces a route's handler
type Reply struct {
	Status int    // defaults to 200
	Body   string // written verbatim
	Delay  time.Duration
}

// Script drives the log stream of every execution started after it is set
type Script struct {
	Events []map[string]interface{}
	Raw    string // written verbatim before the events
	Hold   bool   // keep the stream open after the last event until the client leaves
	Gap    time.Duration
}

type execution struct {
	id     string
	ruleID int
	code   string
	script Script
}

// Backend is the fake backend state
type Backend struct {
	mu sync.Mutex

	pools      map[int]trading.Pool
	stocks     map[string]trading.Stock
	poolStocks map[int][]string
	rules      map[int]trading.Rule
	rulePools  map[int][]int
	sims       map[int]trading.Simulator
	simConfig  trading.SimulatorConfig

	ruleTradings map[int][]trading.RuleTrading
	simTradings  map[int][]trading.SimTrading
	tradings     []trading.Trading
	earns        []trading.TradeEarn
	ruleParams   map[int]map[string]interface{}
	simParams    map[int]map[string]interface{}

	executions map[string]*execution
	script     *Script
	replies    map[string]Reply
	requests   []Request
	nextID     int

	engine *gin.Engine
}

// NewBackend creates an empty backend
func NewBackend() *Backend {
	gin.SetMode(gin.ReleaseMode)

	b := &Backend{
		pools:        make(map[int]trading.Pool),
		stocks:       make(map[string]trading.Stock),
		poolStocks:   make(map[int][]string),
		rules:        make(map[int]trading.Rule),
		rulePools:    make(map[int][]int),
		sims:         make(map[int]trading.Simulator),
		simConfig:    trading.DefaultSimulatorConfig(),
		ruleTradings: make(map[int][]trading.RuleTrading),
		simTradings:  make(map[int][]trading.SimTrading),
		ruleParams:   make(map[int]map[string]interface{}),
		simParams:    make(map[int]map[string]interface{}),
		executions:   make(map[string]*execution),
		replies:      make(map[string]Reply),
		nextID:       100,
	}
	b.simConfig.ID = 1

	r := gin.New()
	r.Use(gin.Recovery(), b.record, b.scripted)
	b.setupRoutes(r)
	b.engine = r

	return b
}

// Handler returns the HTTP handler serving /api/v1/...
func (b *Backend) Handler() http.Handler {
	return b.engine
}

func key(method, path string) string {
	return method + " " + path
}

// Reply makes method+path (e.g. "GET", "/api/v1/get_pool/pool_list")
// answer with r until cleared
func (b *Backend) Reply(method, path string, r Reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[key(method, path)] = r
}

// ClearReply removes a scripted reply
func (b *Backend) ClearReply(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.replies, key(method, path))
}

// SetScript sets the event script of executions started from now on
func (b *Backend) SetScript(s Script) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = &s
}

// ClearScript restores the generated default script
func (b *Backend) ClearScript() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = nil
}

// Requests returns the recorded requests
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Count returns how many requests hit method+path
func (b *Backend) Count(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request to method+path
func (b *Backend) Last(method, path string) (Request, bool) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Request{}, false
}

// ResetRequests forgets the recorded requests
func (b *Backend) ResetRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

func (b *Backend) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.Query(),
		Body:   body,
	})
	b.mu.Unlock()

	c.Next()
}

func (b *Backend) scripted(c *gin.Context) {
	b.mu.Lock()
	r, ok := b.replies[key(c.Request.Method, c.Request.URL.Path)]
	b.mu.Unlock()
	if !ok {
		c.Next()
		return
	}

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, "application/json", []byte(r.Body))
	c.Abort()
}

func (b *Backend) id() int {
	b.nextID++
	return b.nextID
}

// AddPool stores a pool, assigning an id when it has none
func (b *Backend) AddPool(p trading.Pool) trading.Pool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == 0 {
		p.ID = b.id()
	}
	b.pools[p.ID] = p
	return p
}

// AddStock stores a stock and, for a non-zero poolID, adds it to the pool
func (b *Backend) AddStock(poolID int, s trading.Stock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stocks[s.Code] = s
	if poolID != 0 {
		b.addMember(poolID, s.Code)
	}
}

// AddRule stores a rule, assigning an id when it has none
func (b *Backend) AddRule(r trading.Rule, poolIDs ...int) trading.Rule {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.ID == 0 {
		r.ID = b.id()
	}
	b.rules[r.ID] = r
	b.rulePools[r.ID] = append(b.rulePools[r.ID], poolIDs...)
	return r
}

// AddSimulator stores a simulator, assigning an id when it has none
func (b *Backend) AddSimulator(s trading.Simulator) trading.Simulator {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.ID == 0 {
		s.ID = b.id()
	}
	b.sims[s.ID] = s
	return s
}

// AddRuleTrading stores a rule indicating event
func (b *Backend) AddRuleTrading(t trading.RuleTrading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ruleTradings[t.RuleID] = append(b.ruleTradings[t.RuleID], t)
}

// AddSimTrading stores a simulator trade
func (b *Backend) AddSimTrading(t trading.SimTrading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.simTradings[t.SimID] = append(b.simTradings[t.SimID], t)
}

// AddTrading stores an entry of the trading log
func (b *Backend) AddTrading(t trading.Trading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tradings = append(b.tradings, t)
}

// AddEarn stores an earning point
func (b *Backend) AddEarn(e trading.TradeEarn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.earns = append(b.earns, e)
}

// SetRuleParams sets the parameter set of a rule
func (b *Backend) SetRuleParams(ruleID int, params map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ruleParams[ruleID] = params
}

// SetSimParams sets the earning info of a simulator
func (b *Backend) SetSimParams(simID int, params map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.simParams[simID] = params
}

// Pool returns a stored pool
func (b *Backend) Pool(id int) (trading.Pool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[id]
	return p, ok
}

// Rule returns a stored rule
func (b *Backend) Rule(id int) (trading.Rule, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rules[id]
	return r, ok
}

// Simulator returns a stored simulator
func (b *Backend) Simulator(id int) (trading.Simulator, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sims[id]
	return s, ok
}

// Members returns the stock codes of a pool
func (b *Backend) Members(poolID int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.poolStocks[poolID]...)
}

// RulePools returns the pool ids bound to a rule
func (b *Backend) RulePools(ruleID int) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.rulePools[ruleID]...)
}

// SimConfig returns the stored sell policy
func (b *Backend) SimConfig() trading.SimulatorConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.simConfig
}

func (b *Backend) addMember(poolID int, code string) {
	for _, c := range b.poolStocks[poolID] {
		if c == code {
			return
		}
	}
	b.poolStocks[poolID] = append(b.poolStocks[poolID], code)
	p := b.pools[poolID]
	p.Stocks = len(b.poolStocks[poolID])
	b.pools[poolID] = p
}

func (b *Backend) removeMember(poolID int, code string) bool {
	codes := b.poolStocks[poolID]
	for i, c := range codes {
		if c == code {
			b.poolStocks[poolID] = append(codes[:i:i], codes[i+1:]...)
			p := b.pools[poolID]
			p.Stocks = len(b.poolStocks[poolID])
			b.pools[poolID] = p
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func newExecutionID() string {
	return uuid.New().String()
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return v, true
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": "SUCCESS", "data": data})
}

func list(c *gin.Context, items interface{}, total int) {
	ok(c, gin.H{"items": items, "total": total})
}

// failure answers 200 with a non-success envelope, the way the backend
// reports domain errors
func failure(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"code": "FAILURE", "message": message})
}

func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func bindBody(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func mergeInto[T any](item T, body map[string]interface{}) (T, error) {
	return trading.Merge(item, trading.Patch(body))
}

func encodeEvent(w io.Writer, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
