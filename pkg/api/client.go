// Package api is the HTTP client of the stock-agent backend. Every entity
// family (pools, stocks, rules, simulators) gets a service over one Client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is where the backend listens in a local install
	DefaultBaseURL = "http://localhost:8000/api"

	// DefaultTimeout bounds every ordinary request
	DefaultTimeout = 30 * time.Second

	// DefaultRuleRunTimeout bounds synchronous agent runs
	DefaultRuleRunTimeout = 30 * time.Minute

	// DefaultSimulatorRunTimeout bounds simulator runs
	DefaultSimulatorRunTimeout = 10 * time.Minute

	requestIDHeader = "X-Request-ID"
)

// Client talks to the backend. It holds no per-request state and is safe
// for concurrent use.
type Client struct {
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	ruleRun   time.Duration
	simRun    time.Duration
	now       func() time.Time
	log       logrus.FieldLogger
	newID     func() string
	userAgent string
}

// Option is a function that configures the Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its own Timeout
// should be zero so that streams stay open.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets the default per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRunTimeouts sets the timeouts of rule runs and simulator runs
func WithRunTimeouts(rule, simulator time.Duration) Option {
	return func(c *Client) {
		if rule > 0 {
			c.ruleRun = rule
		}
		if simulator > 0 {
			c.simRun = simulator
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithClock sets the clock used for cache-busting timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a new backend client
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no client-wide timeout: streams must stay open, calls get a context deadline
		client:  &http.Client{},
		timeout: DefaultTimeout,
		ruleRun: DefaultRuleRunTimeout,
		simRun:  DefaultSimulatorRunTimeout,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	c.log = c.log.WithField("component", "api")

	return c
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Params is a set of query parameters. Empty values are dropped.
type Params map[string]string

// Clone returns an independent copy
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy with key set to value
func (p Params) With(key, value string) Params {
	out := p.Clone()
	out[key] = value
	return out
}

// WithInt returns a copy with key set to an integer value
func (p Params) WithInt(key string, value int) Params {
	return p.With(key, strconv.Itoa(value))
}

func (p Params) values() url.Values {
	v := url.Values{}
	for k, val := range p {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// request describes a single call
type request struct {
	method  string
	path    string
	query   Params
	body    interface{}
	timeout time.Duration // 0 uses the client default, <0 disables
}

func (c *Client) buildURL(path string, query Params, method string) string {
	v := query.values()
	// every GET is cache-busted
	if method == http.MethodGet {
		v.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	u := c.baseURL + path
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.buildURL(r.path, r.query, r.method), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	return req, nil
}

// setHeaders sets the required headers
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, c.newID())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// send performs the call and returns the body of a 2xx response
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	timeout := r.timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     r.method,
		"path":       r.path,
		"request_id": req.Header.Get(requestIDHeader),
	})
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return nil, &TransportError{Method: r.method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: r.method, URL: req.URL.String(), Err: err}
	}

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("request done")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// call sends the request and unwraps the success envelope
func (c *Client) call(ctx context.Context, r request) (*envelope, error) {
	body, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if !env.Code.Success() {
		return nil, env.err()
	}
	return env, nil
}

// mutate sends a write and returns the envelope's data
func (c *Client) mutate(ctx context.Context, r request) (json.RawMessage, error) {
	env, err := c.call(ctx, r)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// fetchOne reads a single record from the envelope's data
func fetchOne[T any](ctx context.Context, c *Client, path string, query Params) (T, error) {
	var out T
	env, err := c.call(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return out, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("%s: %w: %v", path, ErrUnexpectedShape, err)
	}
	return out, nil
}

// fetchList reads a list endpoint and classifies the response shape
func fetchList[T any](ctx context.Context, c *Client, path string, query Params) ListResult[T] {
	body, err := c.send(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return Failure[T]{Err: err}
	}
	return classifyList[T](body)
}
