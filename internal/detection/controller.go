package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wayfinder/internal/depth"
	"github.com/banshee-data/wayfinder/internal/guidance"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/perception"
	"github.com/banshee-data/wayfinder/internal/sensors"
	"github.com/banshee-data/wayfinder/internal/timeutil"
	"github.com/google/uuid"
)

// SubscriberBuffer is the per-subscriber channel capacity. Results beyond it
// are dropped for that subscriber.
const SubscriberBuffer = 8

// Selector picks and opens a sensing strategy.
type Selector interface {
	Select() (sensors.Source, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func() (sensors.Source, error)

func (f SelectorFunc) Select() (sensors.Source, error) { return f() }

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the clock used for ticks and timestamps.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// Controller runs detection sessions. All methods are safe for concurrent use.
type Controller struct {
	cfg      Config
	selector Selector
	clock    timeutil.Clock

	mu         sync.Mutex
	state      State
	generation uint64
	session    *Session
	source     sensors.Source
	cancel     context.CancelFunc
	arbiter    *guidance.Arbiter
	last       Result
	base       Stats // counters at session start

	busy atomic.Bool

	subsMu sync.Mutex
	subs   map[string]chan Result

	ticks         atomic.Uint64
	misses        atomic.Uint64
	skipped       atomic.Uint64
	discarded     atomic.Uint64
	warnings      atomic.Uint64
	lastTickNanos atomic.Int64
}

// NewController creates an Idle controller.
func NewController(cfg Config, selector Selector, opts ...Option) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	c := &Controller{
		cfg:      cfg,
		selector: selector,
		clock:    timeutil.RealClock{},
		subs:     make(map[string]chan Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last = Result{Event: EventStopped, Timestamp: c.clock.Now()}
	return c
}

// Start selects a sensing strategy and begins ticking. It is a no-op when
// already Active. The session ends when Stop is called or ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateActive {
		return nil
	}

	src, err := c.selector.Select()
	if err != nil {
		return fmt.Errorf("start detection: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.generation++
	gen := c.generation
	c.state = StateActive
	c.source = src
	c.cancel = cancel
	c.arbiter = guidance.NewArbiter(c.cfg.Warning)
	c.base = c.counters()
	c.session = &Session{
		ID:        uuid.NewString(),
		Strategy:  src.Kind(),
		StartedAt: c.clock.Now(),
	}

	go func() {
		if err := src.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("detection: %s source stopped: %v", src.Kind(), err)
		}
	}()

	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	go c.run(runCtx, ticker, gen)

	monitoring.Logf("detection: session %s started with %s", c.session.ID, src.Kind())
	c.publishLocked(Result{
		Event:     EventStarted,
		SessionID: c.session.ID,
		Strategy:  src.Kind(),
		Timestamp: c.session.StartedAt,
	})
	return nil
}

func (c *Controller) run(ctx context.Context, ticker timeutil.Ticker, gen uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.stopGeneration(gen)
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				continue
			}
			c.tick(gen)
		}
	}
}

// Stop ends the session. It is a no-op when Idle and does not wait for an
// in-flight tick; that tick's result is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	src := c.stopLocked()
	c.mu.Unlock()
	closeSource(src)
}

func (c *Controller) stopGeneration(gen uint64) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	src := c.stopLocked()
	c.mu.Unlock()
	closeSource(src)
}

func (c *Controller) stopLocked() sensors.Source {
	if c.state != StateActive {
		return nil
	}
	c.generation++
	c.cancel()

	src := c.source
	sessionStats := c.counters().Sub(c.base)
	res := Result{
		Event:     EventStopped,
		SessionID: c.session.ID,
		Strategy:  c.session.Strategy,
		Timestamp: c.clock.Now(),
		Stats:     &sessionStats,
	}
	monitoring.Logf("detection: session %s stopped", c.session.ID)

	c.state = StateIdle
	c.session = nil
	c.source = nil
	c.cancel = nil
	c.arbiter = nil
	c.publishLocked(res)
	return src
}

func closeSource(src sensors.Source) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		monitoring.Logf("detection: closing %s source: %v", src.Kind(), err)
	}
}

// Tick runs one detection pass over the most recent frame and publishes the
// result. A call that overlaps a running tick returns immediately, as does a
// call while Idle or when no new frame is available.
func (c *Controller) Tick() {
	c.tick(0)
}

// tick runs one pass for session generation want, or for whichever session
// is current when want is zero.
func (c *Controller) tick(want uint64) {
	if !c.busy.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		return
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	if c.state != StateActive || (want != 0 && c.generation != want) {
		c.mu.Unlock()
		return
	}
	gen, src := c.generation, c.source
	c.mu.Unlock()

	start := c.clock.Now()
	frame, err := acquire(src)
	if err != nil {
		c.misses.Add(1)
		monitoring.Debugf("detection: %v", err)
		return
	}

	obstacles := perception.Extract(frame, c.cfg.Perception)
	eval := guidance.Recommend(obstacles, c.cfg.Path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.generation != gen {
		c.discarded.Add(1)
		return
	}

	now := c.clock.Now()
	warning := c.arbiter.Arbitrate(obstacles, now)
	var dir *guidance.Direction
	if eval != nil {
		d := eval.Direction
		dir = &d
	}

	c.session.Obstacles = obstacles
	c.session.Direction = dir
	if warning != nil {
		c.session.LastWarningAt = warning.EmittedAt
		c.warnings.Add(1)
	}
	c.ticks.Add(1)
	c.lastTickNanos.Store(int64(c.clock.Since(start)))

	c.publishLocked(Result{
		Event:      EventTick,
		SessionID:  c.session.ID,
		Strategy:   c.session.Strategy,
		Timestamp:  now,
		Obstacles:  obstacles,
		Evaluation: eval,
		Direction:  dir,
		Warning:    warning,
	})
}

func acquire(src sensors.Source) (*depth.Frame, error) {
	f, ok := src.AcquireFrame()
	if !ok {
		return nil, ErrFrameAcquisitionMiss
	}
	return f, nil
}

// publishLocked records res as the latest result and offers it to every
// subscriber without blocking. c.mu must be held.
func (c *Controller) publishLocked(res Result) {
	c.last = res

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

// Subscribe returns a channel that receives every published Result.
func (c *Controller) Subscribe() (string, <-chan Result) {
	id := uuid.NewString()
	ch := make(chan Result, SubscriberBuffer)
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscriber channel.
func (c *Controller) Unsubscribe(id string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// Close stops any session and closes every subscriber channel.
func (c *Controller) Close() {
	c.Stop()
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the active session, or nil when Idle.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	s.Obstacles = slices.Clone(s.Obstacles)
	return &s
}

// Result returns the most recently published result.
func (c *Controller) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() Stats {
	s := c.counters()
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if counter, ok := src.(interface{ FrameCounts() (uint64, uint64) }); ok {
		s.FramesStored, s.FramesDropped = counter.FrameCounts()
	}
	if counter, ok := src.(interface{ Counts() (uint64, uint64) }); ok {
		s.DatagramsReceived, s.DatagramsRejected = counter.Counts()
	}
	if counter, ok := src.(interface{ Failures() uint64 }); ok {
		s.SnapshotFailures = counter.Failures()
	}
	if reporter, ok := src.(interface{ DeviceStatus() map[string]any }); ok {
		s.DeviceStatus = reporter.DeviceStatus()
	}
	return s
}

func (c *Controller) counters() Stats {
	return Stats{
		Ticks:            c.ticks.Load(),
		FrameMisses:      c.misses.Load(),
		SkippedTicks:     c.skipped.Load(),
		DiscardedResults: c.discarded.Load(),
		Warnings:         c.warnings.Load(),
		LastTickDuration: time.Duration(c.lastTickNanos.Load()),
	}
}

// Summary describes the nearest obstacle and the recommended direction.
func (c *Controller) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return "Detection is not running."
	}
	var dir guidance.Direction
	if c.session.Direction != nil {
		dir = *c.session.Direction
	}

	nearest, ok := perception.Nearest(c.session.Obstacles)
	if !ok {
		return "No obstacles detected. Path is clear."
	}

	var b strings.Builder
	n := len(c.session.Obstacles)
	if n == 1 {
		b.WriteString("1 obstacle detected. ")
	} else {
		fmt.Fprintf(&b, "%d obstacles detected. ", n)
	}
	fmt.Fprintf(&b, "Nearest: %s. Recommended: %s.", guidance.DescribeObstacle(nearest), guidance.DescribeDirection(dir))
	return b.String()
}
