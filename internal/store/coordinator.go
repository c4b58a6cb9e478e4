// Package store holds the task store coordinator: the single owner of the
// canonical task collection and of the per-category sets of identifiers with
// an intent in flight.
//
// The collection only ever changes with data returned by the backend. Views
// read it through Snapshot or Subscribe and act on it through the intent
// methods.
package store

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/taskboard/internal/store")

// Options configures a Coordinator.
type Options struct {
	Logger          *slog.Logger
	Metrics         *telemetry.Metrics
	Now             func() time.Time
	NotificationTTL time.Duration
}

// Coordinator owns the canonical task collection.
type Coordinator struct {
	backend Backend
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu        sync.Mutex
	tasks     []*model.Task
	pending   map[Category]map[string]int
	loading   int
	lastError string
	toasts    notifier
	version   uint64
	subs      map[int]chan Snapshot
	nextSub   int
}

// New creates a Coordinator with an empty collection. Call Load to fill it.
func New(backend Backend, opts Options) *Coordinator {
	c := &Coordinator{
		backend: backend,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		tasks:   []*model.Task{},
		pending: make(map[Category]map[string]int),
		toasts:  notifier{ttl: opts.NotificationTTL},
		subs:    make(map[int]chan Snapshot),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.toasts.ttl <= 0 {
		c.toasts.ttl = DefaultNotificationTTL
	}
	c.metrics.TrackPending(c.PendingCount)
	return c
}

// Snapshot returns a deep copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	now := c.now()

	tasks := make([]model.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		tasks = append(tasks, *t.Clone())
	}

	pending := make(map[Category][]string, len(Categories))
	for _, cat := range Categories {
		ids := make([]string, 0, len(c.pending[cat]))
		for id := range c.pending[cat] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		pending[cat] = ids
	}

	return Snapshot{
		Tasks:         tasks,
		Pending:       pending,
		Loading:       c.loading > 0,
		LastError:     c.lastError,
		Notifications: c.toasts.live(now),
		Version:       c.version,
		TakenAt:       now,
	}
}

// Subscribe returns a channel that receives the latest snapshot after every
// state change, starting with the current one. Slow readers only ever see the
// most recent snapshot. The returned func unsubscribes and closes the channel.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- c.snapshotLocked()
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

// commitLocked bumps the version and broadcasts the new state.
func (c *Coordinator) commitLocked() {
	c.version++
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot; we are the only sender.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// ClearError empties the last-error slot.
func (c *Coordinator) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastError == "" {
		return
	}
	c.lastError = ""
	c.commitLocked()
}

// Notifications returns the notifications that have not expired yet.
func (c *Coordinator) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toasts.live(c.now())
}

// DismissNotification removes a notification before it expires.
func (c *Coordinator) DismissNotification(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.toasts.dismiss(id) {
		return false
	}
	c.commitLocked()
	return true
}

// PendingCount returns the number of identifiers pending across categories.
func (c *Coordinator) PendingCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, ids := range c.pending {
		n += int64(len(ids))
	}
	return n
}

// markPending adds key to the category's set. Markers are counted, so an id
// with two overlapping intents stays pending until both finish.
func (c *Coordinator) markPending(cat Category, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[cat] == nil {
		c.pending[cat] = make(map[string]int)
	}
	c.pending[cat][key]++
	c.commitLocked()
}

func (c *Coordinator) releasePending(cat Category, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.pending[cat][key] - 1; n > 0 {
		c.pending[cat][key] = n
	} else {
		delete(c.pending[cat], key)
	}
	c.commitLocked()
}

func (c *Coordinator) indexLocked(id string) int {
	return slices.IndexFunc(c.tasks, func(t *model.Task) bool { return t.ID == id })
}

// replaceLocked swaps in the backend's version of a task. A task deleted in
// the meantime stays deleted.
func (c *Coordinator) replaceLocked(t *model.Task) {
	if i := c.indexLocked(t.ID); i >= 0 {
		c.tasks[i] = t.Clone()
	}
}

func (c *Coordinator) prependLocked(t *model.Task) {
	c.tasks = append([]*model.Task{t.Clone()}, c.tasks...)
}

func (c *Coordinator) removeLocked(id string) {
	if i := c.indexLocked(id); i >= 0 {
		c.tasks = slices.Delete(c.tasks, i, i+1)
	}
}

// fail surfaces a backend failure: last-error slot, error notification, log.
func (c *Coordinator) fail(ctx context.Context, intent string, err error) {
	msg := err.Error()

	c.mu.Lock()
	c.lastError = msg
	c.toasts.push(LevelError, msg, c.now())
	c.commitLocked()
	c.mu.Unlock()

	c.logger.WarnContext(ctx, "intent failed",
		slog.String("intent", intent),
		slog.String("code", string(model.CodeOf(err))),
		slog.Any("error", err),
	)
}

// reject reports a validation failure. It never reaches the backend or the
// last-error slot.
func (c *Coordinator) reject(ctx context.Context, intent string, verr *model.ValidationError, start time.Time) error {
	c.logger.DebugContext(ctx, "validation failed", slog.String("intent", intent), slog.Any("error", verr))
	c.metrics.RecordIntent(ctx, intent, telemetry.OutcomeInvalid, start)
	return verr
}

// intent describes one dispatch: its name for spans and metrics, and the
// pending marker it holds while in flight.
type intent struct {
	name     string
	category Category
	key      string
	// empty is the failure reported when the backend answers with neither a
	// task nor an error. Nil for intents that expect no task back.
	empty error
}

// dispatch marks the intent pending, calls the backend and reconciles the
// result. apply runs under the lock with the backend's task; message builds
// the success notification. The pending marker is released on every path.
//
// The backend call is detached from ctx cancellation: once dispatched, an
// intent runs to completion.
func (c *Coordinator) dispatch(
	ctx context.Context,
	in intent,
	call func(ctx context.Context) (*model.Task, error),
	apply func(t *model.Task),
	message func(t *model.Task) string,
) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "Coordinator."+in.name,
		trace.WithAttributes(
			attribute.String("intent.category", string(in.category)),
			attribute.String("intent.key", in.key),
		),
	)
	defer span.End()
	start := time.Now()

	c.markPending(in.category, in.key)
	defer c.releasePending(in.category, in.key)

	task, err := call(context.WithoutCancel(ctx))
	if err == nil && task == nil && in.empty != nil {
		err = in.empty
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, in.name, err)
		c.metrics.RecordIntent(ctx, in.name, telemetry.OutcomeError, start)
		return nil, err
	}

	c.reconcile(task, apply, message)

	c.logger.InfoContext(ctx, "intent applied",
		slog.String("intent", in.name),
		slog.String("key", in.key),
	)
	c.metrics.RecordIntent(ctx, in.name, telemetry.OutcomeOK, start)

	if task == nil {
		return nil, nil
	}
	return task.Clone(), nil
}

// reconcile applies a backend result under the lock. The lock is released
// even if apply or message panics.
func (c *Coordinator) reconcile(task *model.Task, apply func(t *model.Task), message func(t *model.Task) string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apply(task)
	c.toasts.push(LevelSuccess, message(task), c.now())
	c.commitLocked()
}

func fixed(msg string) func(*model.Task) string {
	return func(*model.Task) string { return msg }
}
