// Package tracker owns the "track this order" lifecycle: look an order up by
// number, keep its trajectory and items fresh from the change feed, and keep
// exactly one live subscription per tracker.
package tracker

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evmakov/OrderPort/internal/changefeed"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/evmakov/OrderPort/internal/notify"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
	"github.com/pkg/errors"
)

// User-facing notice texts (the portal surface is bilingual, matching the
// statuses in models).
const (
	textNotFound          = "未找到该订单"
	textSearchFailed      = "查询失败，请稍后重试"
	textOrderUpdated      = "订单状态已更新"
	textNewTrajectory     = "新的物流动态"
	textLiveUnavailable   = "实时更新暂不可用"
	defaultIndicatorDelay = 1500 * time.Millisecond
)

type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateFound     State = "found"
	StateNotFound  State = "not_found"
	StateError     State = "error"
)

// Store is the read side of the order store.
type Store interface {
	FindOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListTrajectories(ctx context.Context, orderID uint64) ([]*models.TrajectoryPoint, error)
	ListItems(ctx context.Context, orderID uint64) ([]*models.OrderItem, error)
}

// Subscription is one live change-feed listener.
type Subscription interface {
	Events() <-chan changefeed.Event
	Close()
}

// SubscribeFunc opens a change-feed subscription scoped to an order. A nil
// return means live updates are unavailable; the tracker degrades to a
// static session instead of failing the search.
type SubscribeFunc func(ctx context.Context, orderID uint64) Subscription

// Session is the ephemeral client-side bundle for the currently tracked
// order. Trajectory is newest-first.
type Session struct {
	Order      *models.Order
	Trajectory []*models.TrajectoryPoint
	Items      []*models.OrderItem
}

type Tracker struct {
	store     Store
	subscribe SubscribeFunc
	notifier  notify.Notifier

	indicatorDelay time.Duration

	mu       sync.Mutex
	gen      uint64 // session generation; stale fetches and events check it before mutating
	state    State
	searched bool
	session  *Session
	sub      Subscription

	updating      bool
	updatingSeq   uint64
	updatingTimer *time.Timer
}

func New(store Store, subscribe SubscribeFunc, notifier notify.Notifier, indicatorDelay time.Duration) *Tracker {
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	if indicatorDelay <= 0 {
		indicatorDelay = defaultIndicatorDelay
	}
	return &Tracker{
		store:          store,
		subscribe:      subscribe,
		notifier:       notifier,
		indicatorDelay: indicatorDelay,
		state:          StateIdle,
	}
}

// Search resolves an order by number and replaces the current session with a
// fresh one. Empty input is a silent no-op that leaves the prior session
// untouched. Any prior subscription is released before a new one is made, so
// at most one is live at any time.
func (t *Tracker) Search(ctx context.Context, orderNumber string) (*Session, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return t.Session(), nil
	}

	t.mu.Lock()
	t.gen++
	myGen := t.gen
	t.releaseLocked()
	t.session = nil
	t.state = StateSearching
	t.mu.Unlock()

	order, err := t.store.FindOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			t.commitFailure(myGen, StateNotFound)
			t.notifier.Notify(notify.LevelError, textNotFound)
			return nil, err
		}
		t.commitFailure(myGen, StateError)
		t.notifier.Notify(notify.LevelError, textSearchFailed)
		return nil, errors.Wrap(err, "find order")
	}

	// Secondary fetches run concurrently; a failure degrades to an empty
	// list and the order still displays.
	var wg sync.WaitGroup
	var trajectory []*models.TrajectoryPoint
	var items []*models.OrderItem
	wg.Add(2)
	go func() {
		defer wg.Done()
		ps, err := t.store.ListTrajectories(ctx, order.ID)
		if err != nil {
			slog.Warn("list trajectories failed, showing empty timeline", "order_id", order.ID, "error", err.Error())
			return
		}
		trajectory = ps
	}()
	go func() {
		defer wg.Done()
		its, err := t.store.ListItems(ctx, order.ID)
		if err != nil {
			slog.Warn("list items failed, showing empty manifest", "order_id", order.ID, "error", err.Error())
			return
		}
		items = its
	}()
	wg.Wait()

	sortNewestFirst(trajectory)

	t.mu.Lock()
	if t.gen != myGen {
		// Released or superseded while the fetch was in flight: discard.
		t.mu.Unlock()
		return nil, nil
	}
	t.session = &Session{Order: order, Trajectory: trajectory, Items: items}
	t.state = StateFound
	t.searched = true

	var sub Subscription
	if t.subscribe != nil {
		sub = t.subscribe(ctx, order.ID)
	}
	t.sub = sub
	snap := t.snapshotLocked()
	t.mu.Unlock()

	if sub != nil {
		go t.consume(myGen, sub)
	} else if t.subscribe != nil {
		t.notifier.Notify(notify.LevelWarning, textLiveUnavailable)
	}

	return snap, nil
}

func (t *Tracker) commitFailure(myGen uint64, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != myGen {
		return
	}
	t.session = nil
	t.state = state
	t.searched = true
}

// Release tears the session down: the subscription is closed, the indicator
// timer dies, and any in-flight fetch result is discarded. Safe to call with
// nothing held.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.releaseLocked()
	t.session = nil
	t.state = StateIdle
	t.searched = false
}

func (t *Tracker) releaseLocked() {
	if t.sub != nil {
		t.sub.Close()
		t.sub = nil
	}
	if t.updatingTimer != nil {
		t.updatingTimer.Stop()
		t.updatingTimer = nil
	}
	t.updating = false
	t.updatingSeq++
}

func (t *Tracker) consume(myGen uint64, sub Subscription) {
	for ev := range sub.Events() {
		t.apply(myGen, ev)
	}
}

// apply merges one change-feed event into the session. Events tagged with a
// stale generation are dropped so deliveries racing Release are harmless.
func (t *Tracker) apply(myGen uint64, ev changefeed.Event) {
	t.mu.Lock()
	if t.gen != myGen || t.session == nil {
		t.mu.Unlock()
		return
	}

	var text string
	switch ev.Kind {
	case changefeed.KindOrderUpdated:
		if ev.Order == nil {
			t.mu.Unlock()
			return
		}
		// Only the order snapshot is replaced; items and trajectory stay.
		t.session.Order = ev.Order
		text = textOrderUpdated
	case changefeed.KindTrajectoryInserted:
		if ev.Point == nil {
			t.mu.Unlock()
			return
		}
		t.session.Trajectory = append([]*models.TrajectoryPoint{ev.Point}, t.session.Trajectory...)
		// Inserts are normally newer than everything held, but the feed's
		// ordering is not guaranteed.
		if len(t.session.Trajectory) > 1 && t.session.Trajectory[1].Timestamp.After(ev.Point.Timestamp) {
			sortNewestFirst(t.session.Trajectory)
		}
		text = textNewTrajectory
	default:
		t.mu.Unlock()
		return
	}

	t.markUpdatingLocked()
	t.mu.Unlock()

	t.notifier.Notify(notify.LevelSuccess, text)
}

// markUpdatingLocked sets the transient "updating" indicator and schedules
// its auto-clear. A newer event supersedes the pending clear, so rapid
// consecutive events extend the indicator instead of flickering it.
func (t *Tracker) markUpdatingLocked() {
	t.updating = true
	t.updatingSeq++
	seq := t.updatingSeq
	if t.updatingTimer != nil {
		t.updatingTimer.Stop()
	}
	t.updatingTimer = time.AfterFunc(t.indicatorDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.updatingSeq != seq {
			return
		}
		t.updating = false
		t.updatingTimer = nil
	})
}

// State reports the top-level search state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Searched reports whether at least one lookup has completed, which is what
// distinguishes "no result" from "not searched yet".
func (t *Tracker) Searched() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.searched
}

// Updating reports the transient indicator.
func (t *Tracker) Updating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updating
}

// Subscribed reports whether a live listener is attached.
func (t *Tracker) Subscribed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sub != nil
}

// Session returns a copy-safe snapshot of the current session, or nil.
func (t *Tracker) Session() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() *Session {
	if t.session == nil {
		return nil
	}
	snap := &Session{
		Order:      t.session.Order,
		Trajectory: append([]*models.TrajectoryPoint(nil), t.session.Trajectory...),
		Items:      append([]*models.OrderItem(nil), t.session.Items...),
	}
	return snap
}

func sortNewestFirst(points []*models.TrajectoryPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})
}
