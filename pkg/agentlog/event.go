// Package agentlog follows the live log of an agent execution: it decodes
// the server-sent event stream, dispatches each event through a closed
// handler table and keeps the log lines and progress counters of the run.
package agentlog

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType is the discriminator of a stream event
type EventType int

const (
	EventUnknown EventType = iota
	EventStart
	EventInfo
	EventWarning
	EventLog
	EventStreamingText
	EventRemoteResult
	EventStockStart
	EventStockComplete
	EventStockError
	EventComplete
	EventError
)

var eventNames = map[EventType]string{
	EventUnknown:       "unknown",
	EventStart:         "start",
	EventInfo:          "info",
	EventWarning:       "warning",
	EventLog:           "log",
	EventStreamingText: "streaming_text",
	EventRemoteResult:  "remote_result",
	EventStockStart:    "stock_start",
	EventStockComplete: "stock_complete",
	EventStockError:    "stock_error",
	EventComplete:      "complete",
	EventError:         "error",
}

var eventTypes = func() map[string]EventType {
	m := make(map[string]EventType, len(eventNames))
	for t, name := range eventNames {
		if t != EventUnknown {
			m[name] = t
		}
	}
	return m
}()

// EventTypes returns every declared event type, EventUnknown included
func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventNames))
	for t := EventUnknown; t <= EventError; t++ {
		out = append(out, t)
	}
	return out
}

// ParseEventType maps a wire discriminator to its type. Anything not
// declared is EventUnknown.
func ParseEventType(s string) EventType {
	if t, ok := eventTypes[s]; ok {
		return t
	}
	return EventUnknown
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the event ends the execution
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// Event is one decoded stream message
type Event struct {
	Type      EventType
	RawType   string // as sent, kept for unknown types
	Message   string
	StockCode string
	Stocks    []string // set by info events listing the run's stocks
	Progress  string   // "i/n" on stock_start
	Error     string
	Result    json.RawMessage
	Timestamp time.Time // zero when the server sent none
}

type wireEvent struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	StockCode string          `json:"stock_code"`
	Stocks    []string        `json:"stocks"`
	Progress  json.RawMessage `json:"progress"`
	Error     string          `json:"error"`
	Result    json.RawMessage `json:"result"`
	Timestamp string          `json:"timestamp"`
}

// timestamp layouts the backend is known to send; zone-less ones are local
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseEvent decodes one JSON event payload
func ParseEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, err
	}

	e := Event{
		Type:      ParseEventType(w.Type),
		RawType:   w.Type,
		Message:   w.Message,
		StockCode: w.StockCode,
		Stocks:    w.Stocks,
		Error:     w.Error,
		Result:    w.Result,
		Timestamp: parseTimestamp(w.Timestamp),
	}

	// progress is "i/n" but tolerate a bare number
	if len(w.Progress) > 0 && string(w.Progress) != "null" {
		var s string
		if json.Unmarshal(w.Progress, &s) == nil {
			e.Progress = s
		} else {
			e.Progress = string(w.Progress)
		}
	}
	return e, nil
}
