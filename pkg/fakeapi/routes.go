package fakeapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xinguang/stock-console/pkg/trading"
)

func (b *Backend) setupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	pool := v1.Group("/get_pool")
	{
		pool.GET("/pool_list", b.listPools)
		pool.POST("/pool_list", b.createPool)
		pool.GET("/pool/:id", b.getPool)
		pool.PUT("/pool/:id", b.updatePool)
		pool.DELETE("/pool/:id", b.deletePool)
	}

	stock := v1.Group("/get_stock")
	{
		stock.GET("/stock_list", b.listStocks)
		stock.POST("/stock_list", b.addStockToPool)
		stock.GET("/stock/:code", b.getStock)
		stock.DELETE("/stock/:code", b.removeStock)
		stock.GET("/stock/:code/rules", b.stockRules)
	}

	rule := v1.Group("/get_rule")
	{
		rule.GET("/rule_list", b.listRules)
		rule.POST("/rule_list", b.createRule)
		rule.GET("/rule/:id", b.getRule)
		rule.PUT("/rule/:id", b.updateRule)
		rule.DELETE("/rule/:id", b.deleteRule)
		rule.GET("/rule/:id/pools", b.rulePoolList)
		rule.POST("/rule/:id/pools", b.bindPools)
		rule.DELETE("/rule/:id/pools", b.unbindPool)
		rule.GET("/rule/:id/stocks", b.ruleStocks)
		rule.GET("/rule/:id/params", b.ruleParamSet)
		rule.GET("/rule/:id/trading", b.ruleTrading)
		rule.GET("/rule/:id/stocks_indicating", b.ruleStocks)
		rule.POST("/rule/run/:id", b.runRule)
		rule.POST("/rule/:id/run_stock", b.runRuleStock)
		rule.POST("/rule/:id/start", b.startExecution)
		rule.POST("/rule/:id/stock/:code/start", b.startExecution)
		rule.GET("/rule/:id/stream", b.streamExecution)
		rule.GET("/rule/:id/stock/:code/stream", b.streamExecution)
	}

	sim := v1.Group("/get_simulator")
	{
		sim.GET("/simulator_list", b.listSimulators)
		sim.POST("/simulator_list", b.createSimulator)
		sim.GET("/simulator/:id", b.getSimulator)
		sim.PUT("/simulator/:id", b.updateSimulator)
		sim.DELETE("/simulator/:id", b.deleteSimulator)
		sim.PUT("/simulator/:id/run", b.runSimulator)
		sim.GET("/simulator/:id/trading", b.simulatorTrading)
		sim.GET("/simulator/:id/params", b.simulatorParamSet)
		sim.GET("/trading_list", b.listTradings)
		sim.GET("/earn_list", b.listEarns)
		sim.GET("/config", b.getSimConfig)
		sim.PUT("/config", b.updateSimConfig)
	}
}

// page slices items by the page/page_size query parameters
func page[T any](c *gin.Context, items []T) []T {
	size, err := strconv.Atoi(c.Query("page_size"))
	if err != nil || size <= 0 {
		return items
	}
	p, err := strconv.Atoi(c.Query("page"))
	if err != nil || p <= 0 {
		p = 1
	}
	start := (p - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Pools

func (b *Backend) listPools(c *gin.Context) {
	b.mu.Lock()
	items := make([]trading.Pool, 0, len(b.pools))
	for _, id := range sortedKeys(b.pools) {
		items = append(items, b.pools[id])
	}
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) createPool(c *gin.Context) {
	var body map[string]interface{}
	if !bindBody(c, &body) {
		return
	}
	name, _ := body["name"].(string)
	if name == "" {
		failure(c, "need category name!")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pools {
		if p.Name == name {
			failure(c, "Pool already exists!")
			return
		}
	}
	p := trading.Pool{ID: b.id(), Name: name, UpdatedAt: time.Now().Format(time.RFC3339)}
	b.pools[p.ID] = p
	ok(c, gin.H{"id": p.ID})
}

func (b *Backend) getPool(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	p, found := b.Pool(id)
	if !found {
		failure(c, "pool not found")
		return
	}
	ok(c, p)
}

func (b *Backend) updatePool(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	var body map[string]interface{}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.pools[id]
	if !found {
		failure(c, "pool not found")
		return
	}
	merged, err := mergeInto(p, body)
	if err != nil {
		failure(c, err.Error())
		return
	}
	merged.ID = id
	b.pools[id] = merged
	ok(c, gin.H{"id": id})
}

func (b *Backend) deletePool(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.pools[id]; !found {
		failure(c, "pool not found")
		return
	}
	delete(b.pools, id)
	delete(b.poolStocks, id)
	for ruleID, ids := range b.rulePools {
		b.rulePools[ruleID] = removeInt(ids, id)
	}
	ok(c, gin.H{"id": id})
}

// Stocks

func (b *Backend) listStocks(c *gin.Context) {
	b.mu.Lock()
	var codes []string
	if poolID, err := strconv.Atoi(c.Query("pool_id")); err == nil {
		codes = append(codes, b.poolStocks[poolID]...)
	} else {
		for code := range b.stocks {
			codes = append(codes, code)
		}
		sort.Strings(codes)
	}
	items := make([]trading.Stock, 0, len(codes))
	for _, code := range codes {
		items = append(items, b.stocks[code])
	}
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) addStockToPool(c *gin.Context) {
	var body struct {
		Code   string `json:"code"`
		PoolID int    `json:"pool_id"`
	}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.pools[body.PoolID]; !found {
		failure(c, "pool doesn't exist")
		return
	}
	if _, found := b.stocks[body.Code]; !found {
		failure(c, "stock doesn't exist")
		return
	}
	for _, code := range b.poolStocks[body.PoolID] {
		if code == body.Code {
			failure(c, "Registration already exists!")
			return
		}
	}
	b.addMember(body.PoolID, body.Code)
	ok(c, gin.H{"code": body.Code, "pool_id": body.PoolID})
}

func (b *Backend) getStock(c *gin.Context) {
	b.mu.Lock()
	s, found := b.stocks[c.Param("code")]
	b.mu.Unlock()
	if !found {
		failure(c, "stock not found")
		return
	}
	ok(c, s)
}

func (b *Backend) removeStock(c *gin.Context) {
	code := c.Param("code")
	var body struct {
		PoolID int `json:"pool_id"`
	}
	if c.Request.ContentLength > 0 && !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if body.PoolID != 0 {
		if !b.removeMember(body.PoolID, code) {
			failure(c, "stock is not in pool")
			return
		}
	} else {
		for poolID := range b.poolStocks {
			b.removeMember(poolID, code)
		}
	}
	ok(c, gin.H{"code": code})
}

func (b *Backend) stockRules(c *gin.Context) {
	code := c.Param("code")

	b.mu.Lock()
	s := b.stocks[code]
	var items []trading.StockRuleEarn
	for _, ruleID := range sortedKeys(b.rules) {
		for _, poolID := range b.rulePools[ruleID] {
			if containsString(b.poolStocks[poolID], code) {
				items = append(items, trading.StockRuleEarn{
					StockCode: code,
					StockName: s.Name,
					RuleID:    ruleID,
					RuleName:  b.rules[ruleID].Name,
				})
				break
			}
		}
	}
	b.mu.Unlock()

	if items == nil {
		items = []trading.StockRuleEarn{}
	}
	list(c, items, len(items))
}

// Rules

func (b *Backend) listRules(c *gin.Context) {
	ruleType := c.Query("rule_type")

	b.mu.Lock()
	items := make([]trading.Rule, 0, len(b.rules))
	for _, id := range sortedKeys(b.rules) {
		r := b.rules[id]
		if ruleType != "" && string(r.Type) != ruleType {
			continue
		}
		r.Pools = b.poolNames(id)
		items = append(items, r)
	}
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) poolNames(ruleID int) string {
	names := make([]string, 0, len(b.rulePools[ruleID]))
	for _, id := range b.rulePools[ruleID] {
		names = append(names, b.pools[id].Name)
	}
	return strings.Join(names, ",")
}

func (b *Backend) createRule(c *gin.Context) {
	var body map[string]interface{}
	if !bindBody(c, &body) {
		return
	}
	name, _ := body["name"].(string)
	if name == "" {
		failure(c, "need rule name!")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	r, err := mergeInto(trading.Rule{}, body)
	if err != nil {
		failure(c, err.Error())
		return
	}
	if r.Type == "" {
		r.Type = trading.RuleTypeAgent
	}
	r.ID = b.id()
	b.rules[r.ID] = r
	ok(c, gin.H{"id": r.ID})
}

func (b *Backend) getRule(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	r, found := b.rules[id]
	if found {
		r.Pools = b.poolNames(id)
	}
	b.mu.Unlock()

	if !found {
		failure(c, "rule not found")
		return
	}
	ok(c, r)
}

func (b *Backend) updateRule(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	var body map[string]interface{}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	r, found := b.rules[id]
	if !found {
		failure(c, "rule not found")
		return
	}
	merged, err := mergeInto(r, body)
	if err != nil {
		failure(c, err.Error())
		return
	}
	merged.ID = id
	b.rules[id] = merged
	ok(c, gin.H{"id": id})
}

func (b *Backend) deleteRule(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.rules[id]; !found {
		failure(c, "rule not found")
		return
	}
	delete(b.rules, id)
	delete(b.rulePools, id)
	ok(c, gin.H{"id": id})
}

func (b *Backend) rulePoolList(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	items := make([]trading.Pool, 0, len(b.rulePools[id]))
	for _, poolID := range b.rulePools[id] {
		if p, found := b.pools[poolID]; found {
			items = append(items, p)
		}
	}
	b.mu.Unlock()

	list(c, items, len(items))
}

func (b *Backend) bindPools(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	var body struct {
		PoolIDs []int `json:"pool_ids"`
	}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.rules[id]; !found {
		failure(c, "rule not found")
		return
	}
	for _, poolID := range body.PoolIDs {
		if _, found := b.pools[poolID]; !found {
			failure(c, "pool doesn't exist")
			return
		}
	}
	for _, poolID := range body.PoolIDs {
		if !containsInt(b.rulePools[id], poolID) {
			b.rulePools[id] = append(b.rulePools[id], poolID)
		}
	}
	ok(c, gin.H{"rule_id": id, "pool_ids": b.rulePools[id]})
}

func (b *Backend) unbindPool(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	var body struct {
		PoolID int `json:"pool_id"`
	}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !containsInt(b.rulePools[id], body.PoolID) {
		failure(c, "pool is not bound to rule")
		return
	}
	b.rulePools[id] = removeInt(b.rulePools[id], body.PoolID)
	ok(c, gin.H{"rule_id": id, "pool_id": body.PoolID})
}

// ruleCodes returns the stock codes of every pool bound to a rule, in
// binding order, optionally limited to one pool
func (b *Backend) ruleCodes(ruleID, poolID int) []string {
	var codes []string
	for _, pid := range b.rulePools[ruleID] {
		if poolID != 0 && pid != poolID {
			continue
		}
		for _, code := range b.poolStocks[pid] {
			if !containsString(codes, code) {
				codes = append(codes, code)
			}
		}
	}
	return codes
}

func (b *Backend) ruleStocks(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	poolID, _ := strconv.Atoi(c.Query("pool_id"))

	b.mu.Lock()
	codes := b.ruleCodes(id, poolID)
	items := make([]trading.StockRuleEarn, 0, len(codes))
	for _, code := range codes {
		s := b.stocks[code]
		items = append(items, trading.StockRuleEarn{
			Code:         code,
			Name:         s.Name,
			StockCode:    code,
			StockName:    s.Name,
			RuleID:       id,
			RuleName:     b.rules[id].Name,
			Earn:         s.Earn,
			AvgEarn:      s.AvgEarn,
			EarningRate:  s.EarningRate,
			TradingTimes: s.TradingTimes,
			Cap:          s.Cap,
		})
	}
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) ruleParamSet(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	params := b.ruleParams[id]
	b.mu.Unlock()

	if params == nil {
		params = map[string]interface{}{}
	}
	ok(c, gin.H{"items": params})
}

func (b *Backend) ruleTrading(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	items := append([]trading.RuleTrading{}, b.ruleTradings[id]...)
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) runRule(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	_, found := b.rules[id]
	n := len(b.ruleCodes(id, 0))
	b.mu.Unlock()

	if !found {
		failure(c, "rule not found")
		return
	}
	ok(c, gin.H{"rule_id": id, "stocks": n})
}

func (b *Backend) runRuleStock(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	code := c.Query("stock_code")
	if code == "" {
		failure(c, "need stock_code")
		return
	}
	ok(c, gin.H{"rule_id": id, "stock_code": code})
}

// Simulators

func (b *Backend) listSimulators(c *gin.Context) {
	ruleID, _ := strconv.Atoi(c.Query("rule_id"))

	b.mu.Lock()
	items := make([]trading.Simulator, 0, len(b.sims))
	for _, id := range sortedKeys(b.sims) {
		s := b.sims[id]
		if ruleID != 0 && s.RuleID != ruleID {
			continue
		}
		items = append(items, s)
	}
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) createSimulator(c *gin.Context) {
	var body map[string]interface{}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := mergeInto(trading.Simulator{}, body)
	if err != nil {
		failure(c, err.Error())
		return
	}
	if _, found := b.rules[s.RuleID]; !found {
		failure(c, "rule doesn't exist")
		return
	}
	s.ID = b.id()
	s.RuleName = b.rules[s.RuleID].Name
	if s.Status == "" {
		s.Status = trading.SimCreated
	}
	b.sims[s.ID] = s
	ok(c, gin.H{"id": s.ID})
}

func (b *Backend) getSimulator(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	s, found := b.Simulator(id)
	if !found {
		failure(c, "simulator not found")
		return
	}
	ok(c, s)
}

func (b *Backend) updateSimulator(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	var body map[string]interface{}
	if !bindBody(c, &body) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, found := b.sims[id]
	if !found {
		failure(c, "simulator not found")
		return
	}
	merged, err := mergeInto(s, body)
	if err != nil {
		failure(c, err.Error())
		return
	}
	merged.ID = id
	b.sims[id] = merged
	ok(c, gin.H{"id": id})
}

func (b *Backend) deleteSimulator(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.sims[id]; !found {
		failure(c, "simulator not found")
		return
	}
	delete(b.sims, id)
	delete(b.simTradings, id)
	ok(c, gin.H{"id": id})
}

func (b *Backend) runSimulator(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, found := b.sims[id]
	if !found {
		failure(c, "simulator not found")
		return
	}
	s.Status = trading.SimNormal
	s.UpdatedAt = time.Now().Format(time.RFC3339)
	b.sims[id] = s
	ok(c, gin.H{"id": id})
}

func (b *Backend) simulatorTrading(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}
	stock := c.Query("stock")
	tradingType := c.Query("trading_type")

	b.mu.Lock()
	items := make([]trading.SimTrading, 0)
	for _, t := range b.simTradings[id] {
		if stock != "" && t.Stock != stock {
			continue
		}
		if tradingType != "" && string(t.TradingType) != tradingType {
			continue
		}
		items = append(items, t)
	}
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) simulatorParamSet(c *gin.Context) {
	id, valid := intParam(c, "id")
	if !valid {
		return
	}

	b.mu.Lock()
	params := b.simParams[id]
	b.mu.Unlock()

	if params == nil {
		params = map[string]interface{}{}
	}
	ok(c, gin.H{"items": params})
}

func (b *Backend) listTradings(c *gin.Context) {
	b.mu.Lock()
	items := append([]trading.Trading{}, b.tradings...)
	b.mu.Unlock()

	list(c, page(c, items), len(items))
}

func (b *Backend) listEarns(c *gin.Context) {
	b.mu.Lock()
	items := append([]trading.TradeEarn{}, b.earns...)
	b.mu.Unlock()

	// the earnings chart endpoint answers with a bare array
	c.JSON(http.StatusOK, items)
}

func (b *Backend) getSimConfig(c *gin.Context) {
	ok(c, b.SimConfig())
}

func (b *Backend) updateSimConfig(c *gin.Context) {
	cfg := trading.DefaultSimulatorConfig()
	if !bindBody(c, &cfg) {
		return
	}

	b.mu.Lock()
	cfg.ID = 1
	cfg.UpdatedAt = time.Now().Format("2006-01-02T15:04:05")
	b.simConfig = cfg
	b.mu.Unlock()

	ok(c, cfg)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func removeInt(s []int, v int) []int {
	out := make([]int, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
