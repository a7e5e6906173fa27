package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/xinguang/stock-console/pkg/trading"
)

// Execution identifies one run of a rule, over all its stocks or over a
// single stock
type Execution struct {
	ID        string
	RuleID    int
	StockCode string // empty for a whole-rule execution
}

// ExecutionService starts agent executions and opens their log streams
type ExecutionService struct {
	c *Client
}

// Executions returns the execution service
func (c *Client) Executions() *ExecutionService {
	return &ExecutionService{c: c}
}

// Start asks the backend to start an execution and returns its id. An empty
// code starts the whole-rule execution.
func (s *ExecutionService) Start(ctx context.Context, ruleID int, code string) (Execution, error) {
	path := ruleStartPath(ruleID)
	if code != "" {
		path = stockStartPath(ruleID, code)
	}

	env, err := s.c.call(ctx, request{method: http.MethodPost, path: path, body: trading.Patch{}})
	if err != nil {
		return Execution{}, err
	}

	exec := Execution{ID: env.ExecutionID, RuleID: ruleID, StockCode: code}
	if exec.ID == "" && isObject(env.Data) {
		// tolerate the id nested under data
		var nested struct {
			ExecutionID string `json:"execution_id"`
		}
		if err := json.Unmarshal(env.Data, &nested); err == nil {
			exec.ID = nested.ExecutionID
		}
	}
	if exec.ID == "" {
		return Execution{}, fmt.Errorf("%s: %w: missing execution_id", path, ErrUnexpectedShape)
	}
	return exec, nil
}

// Stream opens the server-sent event stream of an execution. The stream has
// no timeout; it ends when ctx is cancelled, the body is closed or the
// server finishes.
func (s *ExecutionService) Stream(ctx context.Context, exec Execution) (io.ReadCloser, error) {
	r := request{
		method:  http.MethodGet,
		path:    StreamPath(exec.RuleID, exec.StockCode),
		query:   Params{"execution_id": exec.ID},
		timeout: -1,
	}

	req, err := s.c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: r.method, URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, body)
	}

	s.c.log.WithFields(logrus.Fields{
		"execution_id": exec.ID,
		"rule_id":      exec.RuleID,
		"stock_code":   exec.StockCode,
	}).Debug("stream opened")

	return resp.Body, nil
}
