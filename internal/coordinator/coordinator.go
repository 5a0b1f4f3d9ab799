// Package coordinator polls a heat pump transport on a fixed cadence, keeps the
// latest normalized values as an immutable snapshot and routes writes back to
// the device.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"xtherma_bridge/internal/mapper"
	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/types"
)

// SettleWindow is how long a written value is reported instead of what the
// device returns, giving the device time to apply it.
const SettleWindow = 30 * time.Second

var (
	ErrUnknownKey = errors.New("unknown key")
	ErrClosed     = errors.New("coordinator closed")
)

// Transport is a connection to the heat pump. Implementations serialize their
// own I/O; the coordinator never calls them concurrently.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Poll(ctx context.Context) ([]types.Reading, error)
	Write(ctx context.Context, key string, raw int) error
	UpdateInterval() time.Duration
}

// RateLimiter is implemented by transports that must not be polled more
// often than a minimum spacing, including out-of-schedule refreshes.
type RateLimiter interface {
	MinPollSpacing() time.Duration
}

// State is the lifecycle state of the coordinator.
type State int

const (
	Idle State = iota
	Polling
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// UpdateFailed wraps the transport error of a failed poll.
type UpdateFailed struct {
	Err error
}

func (e *UpdateFailed) Error() string {
	return "error communicating with device: " + e.Err.Error()
}

func (e *UpdateFailed) Unwrap() error {
	return e.Err
}

// Reason returns a short label for the failure cause.
func (e *UpdateFailed) Reason() string {
	return types.Reason(e.Err)
}

// Snapshot is an immutable view of all values at one point in time.
// Keys are lowercase.
type Snapshot struct {
	Values    map[string]float64
	UpdatedAt time.Time
}

// Get returns the value of key.
func (s *Snapshot) Get(key string) (float64, bool) {
	v, ok := s.Values[strings.ToLower(key)]
	return v, ok
}

type pendingWrite struct {
	value        float64
	blockedUntil time.Time
}

// Stats are cumulative counters of coordinator activity.
type Stats struct {
	Polls             uint64
	Failures          map[string]uint64
	Writes            uint64
	WriteFailures     uint64
	LastPollDuration  time.Duration
	LastSuccessfulAt  time.Time
	PendingWriteCount int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithSettleWindow overrides SettleWindow.
func WithSettleWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.settle = d }
}

// WithWriteHook registers fn to receive every write attempt.
func WithWriteHook(fn func(types.WriteRecord)) Option {
	return func(c *Coordinator) { c.writeHooks = append(c.writeHooks, fn) }
}

// Coordinator owns the polling loop and the current snapshot.
type Coordinator struct {
	transport  Transport
	regs       *registers.Map
	logger     *slog.Logger
	now        func() time.Time
	settle     time.Duration
	writeHooks []func(types.WriteRecord)

	// opMu serializes polls and writes.
	opMu sync.Mutex

	snapshot atomic.Pointer[Snapshot]

	mu          sync.Mutex
	pending     map[string]pendingWrite
	listeners   map[int]func()
	nextID      int
	state       State
	lastErr     error
	lastSuccess bool
	lastStart   time.Time
	stats       Stats

	refresh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a coordinator in the Idle state with an empty snapshot.
func New(t Transport, regs *registers.Map, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport: t,
		regs:      regs,
		logger:    logger,
		now:       time.Now,
		settle:    SettleWindow,
		pending:   make(map[string]pendingWrite),
		listeners: make(map[int]func()),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		stats:     Stats{Failures: make(map[string]uint64)},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&Snapshot{Values: map[string]float64{}})
	return c
}

// Run polls on the transport's update interval until ctx is cancelled or
// Close is called. Ticks arriving while a poll or write is in progress are
// skipped.
func (c *Coordinator) Run(ctx context.Context) error {
	interval := c.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// deferred fires a refresh request held back by the transport's rate limit.
	var (
		deferred  *time.Timer
		deferredC <-chan time.Time
	)
	stopDeferred := func() {
		if deferred != nil {
			deferred.Stop()
			deferred, deferredC = nil, nil
		}
	}
	defer stopDeferred()

	refresh := func() {
		if wait := c.refreshDelay(); wait > 0 {
			if deferred == nil {
				c.logger.Debug("Refresh deferred by rate limit", "wait", wait)
				deferred = time.NewTimer(wait)
				deferredC = deferred.C
			}
			return
		}
		stopDeferred()
		c.Refresh(ctx)
		ticker.Reset(interval)
	}

	c.logger.Info("Polling started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-ticker.C:
			if !c.opMu.TryLock() {
				c.logger.Debug("Poll skipped, previous operation still running")
				continue
			}
			c.pollLocked(ctx)
			c.opMu.Unlock()
			stopDeferred()
		case <-c.refresh:
			refresh()
		case <-deferredC:
			deferred, deferredC = nil, nil
			refresh()
		}
	}
}

// refreshDelay returns how long an out-of-schedule poll must wait to respect
// the transport's minimum poll spacing.
func (c *Coordinator) refreshDelay() time.Duration {
	rl, ok := c.transport.(RateLimiter)
	if !ok {
		return 0
	}
	c.mu.Lock()
	last := c.lastStart
	c.mu.Unlock()
	if last.IsZero() {
		return 0
	}
	return rl.MinPollSpacing() - c.now().Sub(last)
}

func (c *Coordinator) interval() time.Duration {
	if d := c.transport.UpdateInterval(); d > 0 {
		return d
	}
	return SettleWindow
}

// Refresh polls immediately, waiting for any running operation to finish.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.pollLocked(ctx)
}

// RequestRefresh asks Run for an out-of-schedule poll. Requests made while
// one is already queued are coalesced. For a RateLimiter transport the poll
// waits until the minimum spacing since the last poll has passed.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) pollLocked(ctx context.Context) error {
	c.setState(Polling)

	ctx, cancel := context.WithTimeout(ctx, c.interval())
	defer cancel()

	start := c.now()
	c.mu.Lock()
	c.lastStart = start
	c.mu.Unlock()

	readings, err := c.transport.Poll(ctx)
	elapsed := c.now().Sub(start)

	if err != nil {
		failed := &UpdateFailed{Err: err}
		c.mu.Lock()
		c.state = Failed
		c.lastErr = failed
		c.lastSuccess = false
		c.stats.Polls++
		c.stats.Failures[failed.Reason()]++
		c.stats.LastPollDuration = elapsed
		c.mu.Unlock()

		c.logger.Warn("Poll failed", "reason", failed.Reason(), "error", err)
		c.notify()
		return failed
	}

	now := c.now()
	values := make(map[string]float64, len(readings))

	c.mu.Lock()
	for _, r := range readings {
		key := strings.ToLower(r.Key)
		if key == "" || r.Value == "" {
			c.logger.Error("Entry has no key or value", "key", r.Key)
			continue
		}

		if pw, ok := c.pending[key]; ok {
			if now.Before(pw.blockedUntil) {
				values[key] = pw.value
				continue
			}
			delete(c.pending, key)
		}

		v, err := mapper.ParseValue(r.Value, r.Factor)
		if err != nil {
			c.logger.Warn("Unparseable value", "key", key, "value", r.Value, "error", err)
			continue
		}
		values[key] = v
	}
	for key, pw := range c.pending {
		if !now.Before(pw.blockedUntil) {
			delete(c.pending, key)
		}
	}

	c.snapshot.Store(&Snapshot{Values: values, UpdatedAt: now})
	c.state = Ready
	c.lastErr = nil
	c.lastSuccess = true
	c.stats.Polls++
	c.stats.LastPollDuration = elapsed
	c.stats.LastSuccessfulAt = now
	c.mu.Unlock()

	c.logger.Debug("Poll complete", "values", len(values), "readings", len(readings), "duration", elapsed)
	c.notify()
	return nil
}

// Write sends a display value for key to the device. On success the value is
// reported for the settle window regardless of what the device returns.
func (c *Coordinator) Write(ctx context.Context, key string, display float64) error {
	if c.isClosed() {
		return ErrClosed
	}

	d, ok := c.regs.Lookup(key)
	if !ok {
		return ErrUnknownKey
	}
	if !d.Writable {
		return types.ErrReadOnly
	}
	if err := d.Check(display); err != nil {
		return err
	}

	raw := d.Factor.Invert(display)

	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.transport.Write(ctx, d.Key, raw)
	for _, hook := range c.writeHooks {
		hook(types.WriteRecord{Key: d.Key, Display: display, Raw: raw, Err: err})
	}

	c.mu.Lock()
	c.stats.Writes++
	if err != nil {
		c.stats.WriteFailures++
		c.mu.Unlock()
		c.logger.Error("Write failed", "key", d.Key, "value", display, "error", err)
		return err
	}

	c.pending[d.Key] = pendingWrite{value: display, blockedUntil: c.now().Add(c.settle)}

	old := c.snapshot.Load()
	values := maps.Clone(old.Values)
	values[d.Key] = display
	c.snapshot.Store(&Snapshot{Values: values, UpdatedAt: old.UpdatedAt})
	c.mu.Unlock()

	c.logger.Info("Value written", "key", d.Key, "value", display, "raw", raw)
	c.notify()
	return nil
}

// Read returns the current value of key.
func (c *Coordinator) Read(key string) (float64, bool) {
	return c.snapshot.Load().Get(key)
}

// Snapshot returns the current snapshot. It must not be modified.
func (c *Coordinator) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Descriptors returns the register table served by the coordinator.
func (c *Coordinator) Descriptors() []registers.Descriptor {
	return c.regs.Descriptors()
}

// Lookup returns the descriptor of key.
func (c *Coordinator) Lookup(key string) (registers.Descriptor, bool) {
	return c.regs.Lookup(key)
}

// AddListener registers fn to be called after every poll cycle and every
// successful write. The returned function removes it.
func (c *Coordinator) AddListener(fn func()) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// LastUpdateSuccess reports whether the most recent poll succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// LastError returns the error of the most recent poll, or nil.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats returns a copy of the activity counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Failures = maps.Clone(c.stats.Failures)
	s.PendingWriteCount = len(c.pending)
	return s
}

// Close stops Run and disconnects the transport. It does not interrupt an
// in-flight request.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Disconnect()
		c.logger.Info("Coordinator closed")
	})
	return err
}

func (c *Coordinator) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
