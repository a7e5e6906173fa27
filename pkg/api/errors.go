package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	msgRequestFailed   = "request failed"
	msgNetworkFailed   = "network connection failed"
	msgUnauthorized    = "unauthorized"
	msgForbidden       = "forbidden"
	msgNotFound        = "not found"
	msgServerError     = "server error"
	msgUnexpectedShape = "unexpected response from server"
)

var (
	// ErrUnexpectedShape is returned when a response is neither an
	// envelope nor a bare array of the expected records
	ErrUnexpectedShape = errors.New("unexpected response shape")

	// ErrNotFound is returned when a single-record read has no data
	ErrNotFound = errors.New("record not found")
)

// TransportError is a network-level failure: no HTTP response was read
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", msgNetworkFailed, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx HTTP status or a non-success envelope code
type APIError struct {
	Status  int    // HTTP status, 0 for an envelope failure on a 2xx response
	Code    string // envelope code, if any
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error (code %s): %s", e.Code, e.Message)
	}
	return "api error: " + e.Message
}

// statusError maps an HTTP status to a user-facing message. Unlisted
// statuses use the body's message when there is one.
func statusError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	switch status {
	case http.StatusUnauthorized:
		e.Message = msgUnauthorized
	case http.StatusForbidden:
		e.Message = msgForbidden
	case http.StatusNotFound:
		e.Message = msgNotFound
	case http.StatusInternalServerError:
		e.Message = msgServerError
	default:
		var payload struct {
			Message string          `json:"message"`
			Detail  json.RawMessage `json:"detail"`
		}
		if json.Unmarshal(body, &payload) != nil {
			e.Message = msgRequestFailed
			break
		}
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = detailMessage(payload.Detail)
		}
		if e.Message == "" {
			e.Message = msgRequestFailed
		}
	}
	return e
}

// detailMessage reads a FastAPI "detail": either a string or a list of
// validation errors, of which the first is used.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	var items []struct {
		Loc []interface{} `json:"loc"`
		Msg string        `json:"msg"`
	}
	if json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return ""
	}
	first := items[0]
	if n := len(first.Loc); n > 0 && first.Msg != "" {
		return fmt.Sprintf("%v: %s", first.Loc[n-1], first.Msg)
	}
	return first.Msg
}

// Message returns the text a user should see for err
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return msgNetworkFailed
	}
	if errors.Is(err, ErrUnexpectedShape) {
		return msgUnexpectedShape
	}
	return err.Error()
}
