// Package notify delivers short-lived user notifications about the outcome
// of list mutations and executions.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xinguang/stock-console/pkg/ui"
)

// Level is the severity of a notification
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel parses info, success or error. An empty string is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return LevelInfo, nil
	case "success":
		return LevelSuccess, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown notification level: %s", s)
}

// Notification is a single transient message
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Success sends a success notification
func Success(n Notifier, format string, args ...interface{}) {
	send(n, LevelSuccess, format, args...)
}

// Error sends an error notification
func Error(n Notifier, format string, args ...interface{}) {
	send(n, LevelError, format, args...)
}

// Info sends an info notification
func Info(n Notifier, format string, args ...interface{}) {
	send(n, LevelInfo, format, args...)
}

func send(n Notifier, level Level, format string, args ...interface{}) {
	if n == nil {
		return
	}
	n.Notify(Notification{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		Time:    time.Now(),
	})
}

// Discard drops every notification
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) {}

// Console prints notifications through a ui.Printer
type Console struct {
	mu      sync.Mutex
	printer *ui.Printer
}

// NewConsole creates a console notifier
func NewConsole(p *ui.Printer) *Console {
	return &Console{printer: p}
}

// Notify implements Notifier
func (c *Console) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch n.Level {
	case LevelSuccess:
		c.printer.Success("%s", n.Message)
	case LevelError:
		c.printer.Error("%s", n.Message)
	default:
		c.printer.Info("%s", n.Message)
	}
}

// Logger records notifications in the log
type Logger struct {
	log logrus.FieldLogger
}

// NewLogger creates a logging notifier
func NewLogger(log logrus.FieldLogger) *Logger {
	return &Logger{log: log.WithField("component", "notify")}
}

// Notify implements Notifier
func (l *Logger) Notify(n Notification) {
	entry := l.log.WithField("level_name", n.Level.String())
	if n.Level == LevelError {
		entry.Warn(n.Message)
		return
	}
	entry.Info(n.Message)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Count returns how many notifications of the level were recorded
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}
