// Package mapview owns the external map engine's load → construct →
// configure → destroy lifecycle. The engine itself (tiles, marker drawing)
// is an external collaborator behind the Engine/Map interfaces; this package
// only guarantees that loads are shared, teardown never races a load, and a
// configuration error never leaves the loading overlay up forever.
package mapview

import (
	"context"
	"sync"

	"github.com/evmakov/OrderPort/internal/geo"
	"github.com/evmakov/OrderPort/internal/notify"
	"github.com/pkg/errors"
)

const textMapLoadFailed = "地图加载失败"

type Credentials struct {
	APIKey        string
	SecurityToken string
	Style         string
	DefaultZoom   int
}

// EngineLoader performs the (expensive, async) SDK load. It is called at
// most once per adapter no matter how many views mount concurrently.
type EngineLoader func(ctx context.Context, creds Credentials) (Engine, error)

type Engine interface {
	CreateMap(opts MapOptions) (Map, error)
}

type MapOptions struct {
	Style string
	Zoom  int
}

type Map interface {
	SetMarkers(points []geo.Point, start, end *geo.Point)
	Destroy()
}

type inflight struct {
	done   chan struct{}
	engine Engine
	err    error
}

// Adapter holds the load state that the original kept in a module-level
// singleton; here it is owned, injected state with reference counting for
// concurrent mounts.
type Adapter struct {
	loader   EngineLoader
	creds    Credentials
	notifier notify.Notifier

	mu        sync.Mutex
	refs      int
	load      *inflight
	m         Map
	loading   bool
	errText   string
	points    []geo.Point
	start     *geo.Point
	end       *geo.Point
	searching bool
}

func New(loader EngineLoader, creds Credentials, notifier notify.Notifier) *Adapter {
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	return &Adapter{loader: loader, creds: creds, notifier: notifier}
}

// Mount registers a view. The first mount kicks off the engine load; later
// mounts piggyback on the same in-flight load.
func (a *Adapter) Mount(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs++

	if a.m != nil || a.load != nil {
		return
	}
	if a.creds.APIKey == "" {
		// Configuration error: surface once, never spin the overlay.
		a.loading = false
		a.errText = "map credentials are not configured"
		a.notifier.Notify(notify.LevelError, textMapLoadFailed)
		return
	}

	l := &inflight{done: make(chan struct{})}
	a.load = l
	a.loading = true

	go func() {
		engine, err := a.loader(ctx, a.creds)
		l.engine, l.err = engine, err
		a.finishLoad(l)
		close(l.done)
	}()
}

func (a *Adapter) finishLoad(l *inflight) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.load != l {
		// A teardown (or reset) invalidated this load; discard the result.
		return
	}
	a.load = nil
	a.loading = false

	if a.refs == 0 {
		// The last view unmounted while the load was in flight: nothing to
		// construct, nothing to show.
		return
	}
	if l.err != nil {
		a.errText = l.err.Error()
		a.notifier.Notify(notify.LevelError, textMapLoadFailed)
		return
	}

	m, err := l.engine.CreateMap(MapOptions{Style: a.creds.Style, Zoom: a.creds.DefaultZoom})
	if err != nil {
		a.errText = err.Error()
		a.notifier.Notify(notify.LevelError, textMapLoadFailed)
		return
	}
	a.m = m
	a.m.SetMarkers(a.points, a.start, a.end)
}

// Unmount releases one view reference. When the last one goes, the map is
// destroyed and any still-in-flight load becomes discard-on-arrival.
func (a *Adapter) Unmount() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refs == 0 {
		return
	}
	a.refs--
	if a.refs > 0 {
		return
	}
	if a.m != nil {
		a.m.Destroy()
		a.m = nil
	}
	a.load = nil
	a.loading = false
}

// SetPoints updates the plotted point set and optional start/end markers.
func (a *Adapter) SetPoints(points []geo.Point, start, end *geo.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.points = points
	a.start, a.end = start, end
	if a.m != nil {
		a.m.SetMarkers(points, start, end)
	}
}

// SetSearching toggles the loading-overlay hint. It never blocks the map.
func (a *Adapter) SetSearching(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searching = v
}

func (a *Adapter) Searching() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.searching
}

func (a *Adapter) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Err returns the surfaced load/configuration error text, if any.
func (a *Adapter) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errText
}

// Ready reports whether a map instance is constructed.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m != nil
}

// WaitReady blocks until the in-flight load settles or ctx ends. Mainly a
// test convenience.
func (a *Adapter) WaitReady(ctx context.Context) error {
	a.mu.Lock()
	l := a.load
	a.mu.Unlock()
	if l == nil {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait map load")
	}
}
