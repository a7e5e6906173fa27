package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Code is the envelope status code. The backend sends either a string
// ("SUCCESS", "FAILURE", "2201") or a number (200, 0).
type Code struct {
	Value   string
	Numeric bool
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Code) UnmarshalJSON(data []byte) error {
	c.Present = true
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		c.Value = "null"
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Value = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("code is neither string nor number: %s", data)
	}
	c.Value = n.String()
	c.Numeric = true
	return nil
}

// Success reports whether the code is one of the success sentinels:
// "SUCCESS", 200 or 0. A missing code counts as success.
func (c Code) Success() bool {
	if !c.Present {
		return true
	}
	if c.Numeric {
		n, err := strconv.ParseFloat(c.Value, 64)
		return err == nil && (n == 200 || n == 0)
	}
	return c.Value == "SUCCESS"
}

func (c Code) String() string {
	return c.Value
}

// envelope is the common response wrapper
type envelope struct {
	Code    Code            `json:"code"`
	Data    json.RawMessage `json:"data"`
	ErrMsg  string          `json:"errMsg"`
	Message string          `json:"message"`

	// start-execution responses carry their payload at the top level
	ExecutionID string `json:"execution_id"`
	RuleID      int    `json:"rule_id"`
	StockCode   string `json:"stock_code"`
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return &env, nil
}

// err builds the error of a non-success envelope
func (e *envelope) err() *APIError {
	msg := e.Message
	if msg == "" {
		msg = e.ErrMsg
	}
	if msg == "" {
		msg = msgRequestFailed
	}
	return &APIError{Code: e.Code.Value, Message: msg}
}

// listData is the {items, total} payload of list endpoints
type listData struct {
	Items json.RawMessage `json:"items"`
	Total *int            `json:"total"`
}

func isArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// classifyList maps a raw list response onto the tagged result:
// an envelope with items and total, a bare array (either the whole body or
// the envelope's data), or a failure.
func classifyList[T any](body []byte) ListResult[T] {
	if isArray(body) {
		return decodeLegacy[T](body)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return Failure[T]{Err: err}
	}
	if !env.Code.Success() {
		return Failure[T]{Err: env.err()}
	}

	if isArray(env.Data) {
		return decodeLegacy[T](env.Data)
	}
	if !isObject(env.Data) {
		return Failure[T]{Err: fmt.Errorf("%w: data is neither a list nor an object", ErrUnexpectedShape)}
	}

	var data listData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Failure[T]{Err: fmt.Errorf("%w: %v", ErrUnexpectedShape, err)}
	}
	if !isArray(data.Items) {
		return Failure[T]{Err: fmt.Errorf("%w: items is not a list", ErrUnexpectedShape)}
	}

	var items []T
	if err := json.Unmarshal(data.Items, &items); err != nil {
		return Failure[T]{Err: fmt.Errorf("%w: %v", ErrUnexpectedShape, err)}
	}
	if items == nil {
		items = []T{}
	}

	total := len(items)
	if data.Total != nil {
		total = *data.Total
	}
	return Success[T]{Items: items, Total: total}
}

func decodeLegacy[T any](raw []byte) ListResult[T] {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return Failure[T]{Err: fmt.Errorf("%w: %v", ErrUnexpectedShape, err)}
	}
	if items == nil {
		items = []T{}
	}
	return LegacyList[T]{Items: items}
}
