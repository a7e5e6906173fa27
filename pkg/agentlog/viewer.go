package agentlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/logging"
	"github.com/xinguang/stock-console/pkg/notify"
)

// State is the lifecycle state of a viewer
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateCompleted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored
}

// MsgConnectionLost is shown when the stream fails without an error event
const MsgConnectionLost = "Connection to server lost"

var (
	// ErrConnectionLost is returned by Run when the stream broke or ended
	// before a terminal event
	ErrConnectionLost = errors.New("connection to server lost")

	// ErrExecutionFailed is returned by Run after an error event
	ErrExecutionFailed = errors.New("execution failed")

	// ErrNotOpen is returned by Run before a successful Open
	ErrNotOpen = errors.New("viewer is not open")
)

// Target selects what is executed: every stock of a rule, or one stock
type Target struct {
	RuleID    int
	StockCode string
}

// SingleStock reports whether the target is one stock
func (t Target) SingleStock() bool {
	return t.StockCode != ""
}

func (t Target) String() string {
	if t.SingleStock() {
		return fmt.Sprintf("rule %d / %s", t.RuleID, t.StockCode)
	}
	return fmt.Sprintf("rule %d", t.RuleID)
}

// Backend starts executions and opens their streams. *api.ExecutionService
// implements it.
type Backend interface {
	Start(ctx context.Context, ruleID int, code string) (api.Execution, error)
	Stream(ctx context.Context, exec api.Execution) (io.ReadCloser, error)
}

// Options configures a Viewer
type Options struct {
	Notifier notify.Notifier
	Logger   logrus.FieldLogger
	Clock    func() time.Time

	// OnLine is called with every appended log line, outside the lock
	OnLine func(line string)
}

// Snapshot is a copy of the viewer state. Progress counters are zero in
// single-stock mode.
type Snapshot struct {
	Target       Target
	State        State
	ExecutionID  string
	Lines        []string
	CurrentStock string
	Completed    []string
	Total        int
	ShowProgress bool
	Err          string
	Closed       bool
}

// Viewer is the state of one execution log
type Viewer struct {
	target  Target
	backend Backend
	notify  notify.Notifier
	log     *logrus.Entry
	now     func() time.Time
	onLine  func(string)

	mu        sync.Mutex
	state     State
	exec      api.Execution
	lines     []string
	current   string
	completed []string
	done      map[string]bool
	total     int
	errMsg    string
	closed    bool
	body      io.ReadCloser
	dec       *Decoder
	cancel    context.CancelFunc
}

// NewViewer creates an idle viewer for target
func NewViewer(b Backend, target Target, opts Options) *Viewer {
	n := opts.Notifier
	if n == nil {
		n = notify.Discard
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Viewer{
		target:  target,
		backend: b,
		notify:  n,
		log:     logging.Component(opts.Logger, "agentlog").WithField("target", target.String()),
		now:     now,
		onLine:  opts.OnLine,
		done:    make(map[string]bool),
	}
}

// Open requests an execution id and opens its stream, moving the viewer
// through connecting to streaming. A failure moves it to errored.
func (v *Viewer) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed || v.state != StateIdle {
		v.mu.Unlock()
		return fmt.Errorf("open %s: viewer is %s", v.target, v.state)
	}
	v.state = StateConnecting
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	exec, err := v.backend.Start(ctx, v.target.RuleID, v.target.StockCode)
	if err != nil {
		v.fail(api.Message(err), err)
		return fmt.Errorf("start execution: %w", err)
	}
	v.log.WithField("execution_id", exec.ID).Info("execution started")

	body, err := v.backend.Stream(ctx, exec)
	if err != nil {
		v.mu.Lock()
		v.exec = exec
		v.mu.Unlock()
		v.fail(MsgConnectionLost, err)
		return fmt.Errorf("open stream: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.exec = exec
	if v.closed {
		body.Close()
		return nil
	}
	v.body = body
	v.dec = NewDecoder(body, v.log)
	v.state = StateStreaming
	return nil
}

// Run reads the stream until a terminal event, the end of the stream or
// Close. It returns nil after a complete event or Close.
func (v *Viewer) Run() error {
	v.mu.Lock()
	dec := v.dec
	v.mu.Unlock()
	if dec == nil {
		return ErrNotOpen
	}

	for {
		event, err := dec.Next()
		if err != nil {
			if v.isClosed() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				err = ErrConnectionLost
			}
			v.fail(MsgConnectionLost, err)
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}

		state := v.Apply(event)
		switch {
		case state == StateCompleted:
			return nil
		case state == StateErrored:
			return fmt.Errorf("%w: %s", ErrExecutionFailed, v.Snapshot().Err)
		case v.isClosed():
			return nil
		}
	}
}

// Follow opens the viewer and runs it
func (v *Viewer) Follow(ctx context.Context) error {
	if err := v.Open(ctx); err != nil {
		return err
	}
	return v.Run()
}

// effect is what an event changes besides the log
type effect struct {
	state State
	level notify.Level
	note  string
}

type handler func(v *Viewer, e Event, fx *effect)

// handlers holds one entry per event type. Callers hold v.mu.
var handlers = map[EventType]handler{
	EventUnknown:       logOnly,
	EventStart:         logOnly,
	EventWarning:       logOnly,
	EventLog:           logOnly,
	EventStreamingText: logOnly,
	EventRemoteResult:  logOnly,
	EventInfo: func(v *Viewer, e Event, _ *effect) {
		if e.Stocks != nil {
			v.total = len(e.Stocks)
		}
	},
	EventStockStart: func(v *Viewer, e Event, _ *effect) {
		v.current = e.StockCode
	},
	EventStockComplete: stockDone,
	// failed stocks are counted as done
	EventStockError: stockDone,
	EventComplete: func(v *Viewer, _ Event, fx *effect) {
		fx.state = StateCompleted
		fx.level = notify.LevelSuccess
		fx.note = "All stocks processed!"
		if v.target.SingleStock() {
			fx.note = "Execution completed"
		}
	},
	EventError: func(v *Viewer, e Event, fx *effect) {
		fx.state = StateErrored
		fx.level = notify.LevelError
		fx.note = e.Message
		if fx.note == "" {
			fx.note = e.Error
		}
		if fx.note == "" {
			fx.note = "Execution failed"
		}
		v.errMsg = fx.note
	},
}

func logOnly(*Viewer, Event, *effect) {}

func stockDone(v *Viewer, e Event, _ *effect) {
	if e.StockCode != "" && !v.done[e.StockCode] {
		v.done[e.StockCode] = true
		v.completed = append(v.completed, e.StockCode)
	}
	v.current = ""
}

// Apply processes one event and returns the resulting state. Events are
// ignored once the viewer is closed or terminal.
func (v *Viewer) Apply(e Event) State {
	v.mu.Lock()
	if v.closed || v.state.Terminal() {
		state := v.state
		v.mu.Unlock()
		return state
	}
	if v.state != StateStreaming {
		v.state = StateStreaming
	}

	line := v.format(e)
	v.lines = append(v.lines, line)

	fx := effect{state: StateStreaming}
	h, ok := handlers[e.Type]
	if !ok {
		h = logOnly
	}
	h(v, e, &fx)

	if e.Type == EventUnknown {
		v.log.WithField("type", e.RawType).Debug("unhandled event type")
	}

	v.state = fx.state
	if fx.state.Terminal() {
		v.release()
	}
	state := v.state
	v.mu.Unlock()

	v.emit(line)
	if fx.note != "" {
		v.notify.Notify(notify.Notification{Level: fx.level, Message: fx.note, Time: v.now()})
	}
	return state
}

func (v *Viewer) format(e Event) string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = v.now()
	}
	return fmt.Sprintf("[%s] %s", ts.Format("15:04:05"), e.Message)
}

func (v *Viewer) emit(line string) {
	if v.onLine != nil {
		v.onLine(line)
	}
}

// fail moves a live viewer to errored with a notification
func (v *Viewer) fail(msg string, cause error) {
	v.mu.Lock()
	if v.closed || v.state.Terminal() {
		v.mu.Unlock()
		return
	}
	v.state = StateErrored
	v.errMsg = msg
	v.release()
	v.mu.Unlock()

	v.log.WithError(cause).Error("execution log failed")
	v.notify.Notify(notify.Notification{Level: notify.LevelError, Message: msg, Time: v.now()})
}

// release closes the stream. Callers hold v.mu.
func (v *Viewer) release() {
	if v.body != nil {
		v.body.Close()
		v.body = nil
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

// Close releases the stream. No state changes happen afterwards, even for
// events already buffered. The backend execution is not cancelled.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.release()
	v.log.Debug("viewer closed")
}

func (v *Viewer) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// State returns the current state
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Target returns what the viewer executes
func (v *Viewer) Target() Target {
	return v.target
}

// Snapshot returns a copy of the viewer state
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		Target:      v.target,
		State:       v.state,
		ExecutionID: v.exec.ID,
		Lines:       append([]string(nil), v.lines...),
		Err:         v.errMsg,
		Closed:      v.closed,
	}
	if !v.target.SingleStock() {
		s.ShowProgress = true
		s.CurrentStock = v.current
		s.Completed = append([]string{}, v.completed...)
		s.Total = v.total
	}
	return s
}
