package fakeapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// pyTime formats like Python's isoformat without a zone, the way the
// backend stamps events
const pyTime = "2006-01-02T15:04:05.000000"

func (b *Backend) startExecution(c *gin.Context) {
	ruleID, valid := intParam(c, "id")
	if !valid {
		return
	}
	code := c.Param("code")

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.rules[ruleID]; !found {
		failure(c, "rule not found")
		return
	}

	exec := &execution{id: newExecutionID(), ruleID: ruleID, code: code}
	if b.script != nil {
		exec.script = *b.script
	} else {
		exec.script = b.defaultScript(ruleID, code)
	}
	b.executions[exec.id] = exec

	resp := gin.H{"code": "SUCCESS", "execution_id": exec.id, "rule_id": ruleID}
	if code != "" {
		resp["stock_code"] = code
	}
	c.JSON(http.StatusOK, resp)
}

// defaultScript replays a plausible run over the rule's stocks
func (b *Backend) defaultScript(ruleID int, code string) Script {
	now := time.Now()
	stamp := func() string {
		now = now.Add(time.Second)
		return now.Format(pyTime)
	}
	name := b.rules[ruleID].Name

	if code != "" {
		return Script{Events: []map[string]interface{}{
			{"type": "start", "message": "Starting " + name + " for " + code, "timestamp": stamp()},
			{"type": "log", "message": "Loading market data for " + code, "timestamp": stamp()},
			{"type": "stock_complete", "stock_code": code, "message": "Finished " + code, "result": map[string]interface{}{"indicating": false}, "timestamp": stamp()},
			{"type": "complete", "message": "Execution completed", "timestamp": stamp()},
		}}
	}

	codes := b.ruleCodes(ruleID, 0)
	events := []map[string]interface{}{
		{"type": "start", "message": "Starting " + name, "timestamp": stamp()},
		{"type": "info", "message": "Found " + strconv.Itoa(len(codes)) + " stocks", "stocks": codes, "timestamp": stamp()},
	}
	for i, c := range codes {
		events = append(events,
			map[string]interface{}{"type": "stock_start", "stock_code": c, "progress": strconv.Itoa(i+1) + "/" + strconv.Itoa(len(codes)), "message": "Processing " + c, "timestamp": stamp()},
			map[string]interface{}{"type": "streaming_text", "message": "Analyzing " + c, "timestamp": stamp()},
			map[string]interface{}{"type": "stock_complete", "stock_code": c, "message": "Finished " + c, "result": map[string]interface{}{"indicating": i%2 == 0}, "timestamp": stamp()},
		)
	}
	events = append(events, map[string]interface{}{"type": "complete", "message": "All stocks processed", "timestamp": stamp()})
	return Script{Events: events, Gap: 50 * time.Millisecond}
}

func (b *Backend) streamExecution(c *gin.Context) {
	execID := c.Query("execution_id")

	b.mu.Lock()
	exec, found := b.executions[execID]
	b.mu.Unlock()
	if !found {
		fail(c, http.StatusNotFound, "execution not found")
		return
	}

	ctx := c.Request.Context()
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	if exec.script.Raw != "" {
		if _, err := w.WriteString(exec.script.Raw); err != nil {
			return
		}
		w.Flush()
	}

	for _, event := range exec.script.Events {
		if exec.script.Gap > 0 {
			select {
			case <-time.After(exec.script.Gap):
			case <-ctx.Done():
				return
			}
		}
		if err := encodeEvent(w, event); err != nil {
			return
		}
		w.Flush()
	}

	if exec.script.Hold {
		<-ctx.Done()
	}
}
