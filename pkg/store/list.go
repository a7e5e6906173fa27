// Package store keeps the client-side copy of backend lists. Each List owns
// the items, total and loading flag of one list view and exposes fetch and
// mutation operations that keep the copy in step with the backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/logging"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/trading"
)

// ErrNotSupported is returned by mutations the backend does not offer for
// a list
var ErrNotSupported = errors.New("operation not supported")

// Source binds a List to the backend. List is required; a nil mutation
// makes the matching List method return ErrNotSupported.
type Source[T any, K comparable] struct {
	List   func(ctx context.Context, params api.Params) api.ListResult[T]
	Create func(ctx context.Context, fields trading.Patch) error
	Update func(ctx context.Context, key K, patch trading.Patch) error
	Delete func(ctx context.Context, key K) error
}

// State is a point-in-time copy of a list
type State[T any] struct {
	Items   []T
	Total   int
	Loading bool
}

// Options configures a List
type Options struct {
	Notifier notify.Notifier
	Logger   logrus.FieldLogger

	// Params are used by Mount until SetParams or Fetch replaces them
	Params api.Params

	// Deps are the parameter keys whose change triggers a re-fetch in
	// SetParams, e.g. a foreign key such as pool_id
	Deps []string
}

// List is the local copy of one backend list
type List[T any, K comparable] struct {
	noun   string // singular, lower case
	plural string
	src    Source[T, K]
	key    func(T) K
	deps   []string
	notify notify.Notifier
	log    *logrus.Entry

	mu      sync.Mutex
	items   []T
	total   int
	loading bool
	params  api.Params
	mounted bool
}

// NewList creates a list. noun names one record ("pool") and is used in
// notifications; key extracts the record's primary key.
func NewList[T any, K comparable](noun string, src Source[T, K], key func(T) K, opts Options) *List[T, K] {
	n := opts.Notifier
	if n == nil {
		n = notify.Discard
	}
	return &List[T, K]{
		noun:   noun,
		plural: plural(noun),
		src:    src,
		key:    key,
		deps:   opts.Deps,
		notify: n,
		log:    logging.Component(opts.Logger, "store").WithField("list", noun),
		items:  []T{},
		params: opts.Params.Clone(),
	}
}

func plural(noun string) string {
	switch {
	case strings.HasSuffix(noun, "s"):
		return noun
	case strings.HasSuffix(noun, "y"):
		return strings.TrimSuffix(noun, "y") + "ies"
	default:
		return noun + "s"
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Fetch reads the list with params and replaces the local copy. params
// become the last-used parameters. A failed read empties the list and
// sends one error notification; Fetch never returns an error.
func (l *List[T, K]) Fetch(ctx context.Context, params api.Params) {
	l.mu.Lock()
	l.params = params.Clone()
	l.loading = true
	l.mu.Unlock()

	l.apply(l.src.List(ctx, params))
}

func (l *List[T, K]) apply(r api.ListResult[T]) {
	var (
		items []T
		total int
		err   error
	)

	switch v := r.(type) {
	case api.Success[T]:
		items, total = v.Items, v.Total
	case api.LegacyList[T]:
		items, total = v.Items, len(v.Items)
	case api.Failure[T]:
		err = v.Err
	default:
		err = fmt.Errorf("%w: %T", api.ErrUnexpectedShape, r)
	}
	if items == nil {
		items = []T{}
	}

	l.mu.Lock()
	l.items = items
	l.total = total
	l.loading = false
	l.mu.Unlock()

	if err != nil {
		l.log.WithError(err).Error("fetch failed")
		notify.Error(l.notify, "Failed to fetch %s: %s", l.plural, api.Message(err))
		return
	}
	l.log.WithField("total", total).Debug("fetched")
}

// Refresh re-reads the list with the last-used parameters
func (l *List[T, K]) Refresh(ctx context.Context) {
	l.Fetch(ctx, l.Params())
}

// Mount performs the first fetch. Later calls do nothing and return false.
func (l *List[T, K]) Mount(ctx context.Context) bool {
	l.mu.Lock()
	if l.mounted {
		l.mu.Unlock()
		return false
	}
	l.mounted = true
	params := l.params.Clone()
	l.mu.Unlock()

	l.Fetch(ctx, params)
	return true
}

// SetParams replaces the parameters and re-fetches when one of the declared
// dependency keys changed. It reports whether a fetch happened.
func (l *List[T, K]) SetParams(ctx context.Context, params api.Params) bool {
	l.mu.Lock()
	changed := false
	for _, dep := range l.deps {
		if l.params[dep] != params[dep] {
			changed = true
			break
		}
	}
	l.params = params.Clone()
	l.mu.Unlock()

	if !changed {
		return false
	}
	l.Fetch(ctx, params)
	return true
}

// Add creates a record and re-fetches the list once with the last-used
// parameters, so server-computed fields are shown. A failure is notified
// and returned.
func (l *List[T, K]) Add(ctx context.Context, fields trading.Patch) error {
	if l.src.Create == nil {
		return fmt.Errorf("add %s: %w", l.noun, ErrNotSupported)
	}
	if err := l.src.Create(ctx, fields); err != nil {
		return l.failed("add", err)
	}

	notify.Success(l.notify, "%s added successfully", title(l.noun))
	l.Refresh(ctx)
	return nil
}

// Update changes a record and merges patch into the matching local item.
// The list is not re-fetched unless the patch cannot be merged locally.
func (l *List[T, K]) Update(ctx context.Context, key K, patch trading.Patch) error {
	if l.src.Update == nil {
		return fmt.Errorf("update %s: %w", l.noun, ErrNotSupported)
	}
	if err := l.src.Update(ctx, key, patch); err != nil {
		return l.failed("update", err)
	}

	notify.Success(l.notify, "%s updated successfully", title(l.noun))

	if err := l.merge(key, patch); err != nil {
		l.log.WithError(err).WithField("key", key).Warn("local merge failed, re-fetching")
		l.Refresh(ctx)
	}
	return nil
}

func (l *List[T, K]) merge(key K, patch trading.Patch) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, item := range l.items {
		if l.key(item) != key {
			continue
		}
		merged, err := trading.Merge(item, patch)
		if err != nil {
			return err
		}
		items := append([]T(nil), l.items...)
		items[i] = merged
		l.items = items
		return nil
	}
	return nil
}

// Delete removes a record and drops the matching local item
func (l *List[T, K]) Delete(ctx context.Context, key K) error {
	if l.src.Delete == nil {
		return fmt.Errorf("delete %s: %w", l.noun, ErrNotSupported)
	}
	if err := l.src.Delete(ctx, key); err != nil {
		return l.failed("delete", err)
	}

	notify.Success(l.notify, "%s deleted successfully", title(l.noun))
	l.Remove(key)
	return nil
}

// Remove drops the item with key from the local copy only. It reports
// whether an item was removed.
func (l *List[T, K]) Remove(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, item := range l.items {
		if l.key(item) == key {
			items := make([]T, 0, len(l.items)-1)
			items = append(items, l.items[:i]...)
			items = append(items, l.items[i+1:]...)
			l.items = items
			if l.total > 0 {
				l.total--
			}
			return true
		}
	}
	return false
}

func (l *List[T, K]) failed(op string, err error) error {
	l.log.WithError(err).Errorf("%s failed", op)
	notify.Error(l.notify, "Failed to %s %s: %s", op, l.noun, api.Message(err))
	return fmt.Errorf("%s %s: %w", op, l.noun, err)
}

// Snapshot returns a copy of the current state
func (l *List[T, K]) Snapshot() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State[T]{
		Items:   append([]T{}, l.items...),
		Total:   l.total,
		Loading: l.loading,
	}
}

// Items returns a copy of the items
func (l *List[T, K]) Items() []T {
	return l.Snapshot().Items
}

// Total returns the total count
func (l *List[T, K]) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Loading reports whether a fetch is in flight
func (l *List[T, K]) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Params returns a copy of the last-used parameters
func (l *List[T, K]) Params() api.Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Clone()
}

// Find returns the item with key
func (l *List[T, K]) Find(key K) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if l.key(item) == key {
			return item, true
		}
	}
	var zero T
	return zero, false
}
