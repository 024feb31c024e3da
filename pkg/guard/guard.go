package guard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/types"
)

// DefaultMarker is logged once when the startup procedure succeeds
const DefaultMarker = "Initialized successfully"

// Procedure is the startup work guarded by a Guard
type Procedure func(ctx context.Context, ev types.TriggerEvent) error

// Observer receives guard events, e.g. for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	TriggerObserved(guard string, ev types.TriggerEvent, suppressed bool)
	InitFinished(guard string, elapsed time.Duration, err error)
}

// Option configures a Guard
type Option func(*Guard)

// WithLogger replaces the component logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// WithMarker sets the message logged on successful initialization
func WithMarker(marker string) Option {
	return func(g *Guard) {
		if marker != "" {
			g.marker = marker
		}
	}
}

// WithObserver attaches an Observer
func WithObserver(o Observer) Option {
	return func(g *Guard) { g.observer = o }
}

// Guard gates a Procedure so it runs exactly once
type Guard struct {
	name     string
	proc     Procedure
	logger   zerolog.Logger
	marker   string
	observer Observer

	state      atomic.Int32
	requests   atomic.Int64
	suppressed atomic.Int64
	runs       atomic.Int64
	done       chan struct{}

	// written only by the winning caller
	mu         sync.RWMutex
	trigger    *types.TriggerEvent
	startedAt  time.Time
	finishedAt time.Time
	err        error
}

// New creates a Guard named name around proc
func New(name string, proc Procedure, opts ...Option) *Guard {
	g := &Guard{
		name:   name,
		proc:   proc,
		logger: logging.GetLogger("guard").With().Str("guard", name).Logger(),
		marker: DefaultMarker,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the guard name
func (g *Guard) Name() string {
	return g.name
}

// RequestInit runs the procedure if, and only if, this is the first request.
// It reports whether this call ran the procedure and, if so, the procedure's
// error. All other calls return (false, nil) immediately.
func (g *Guard) RequestInit(ctx context.Context, ev types.TriggerEvent) (bool, error) {
	g.requests.Add(1)

	// Check and set are one atomic step; nothing may yield in between.
	if !g.state.CompareAndSwap(int32(types.StateUninitialized), int32(types.StateInitializing)) {
		g.suppressed.Add(1)
		g.logger.Trace().
			Str("trigger", string(ev.Kind)).
			Str("source", ev.Source).
			Str("state", g.State().String()).
			Msg("Init already requested, skipping")
		if g.observer != nil {
			g.observer.TriggerObserved(g.name, ev, true)
		}
		return false, nil
	}

	if n := g.runs.Add(1); n != 1 {
		return false, errors.Newf(errors.ErrGuardReentered,
			"guard %q observed uninitialized %d times", g.name, n).
			WithDetail("guard", g.name)
	}

	if g.observer != nil {
		g.observer.TriggerObserved(g.name, ev, false)
	}

	return true, g.run(ctx, ev)
}

func (g *Guard) run(ctx context.Context, ev types.TriggerEvent) error {
	start := time.Now()
	g.mu.Lock()
	g.trigger = &ev
	g.startedAt = start
	g.mu.Unlock()

	err := g.call(ctx, ev)
	elapsed := time.Since(start)

	g.mu.Lock()
	g.finishedAt = start.Add(elapsed)
	g.err = err
	g.mu.Unlock()

	if err != nil {
		g.state.Store(int32(types.StateFailed))
		g.logger.Error().
			Err(err).
			Str("trigger", string(ev.Kind)).
			Str("source", ev.Source).
			Dur("duration", elapsed).
			Msg("Startup procedure failed")
	} else {
		g.state.Store(int32(types.StateInitialized))
		g.logger.Info().
			Str("trigger", string(ev.Kind)).
			Str("source", ev.Source).
			Dur("duration", elapsed).
			Msg(g.marker)
	}
	close(g.done)

	if g.observer != nil {
		g.observer.InitFinished(g.name, elapsed, err)
	}
	return err
}

// call invokes the procedure, turning a panic into an INIT_FAILED error
func (g *Guard) call(ctx context.Context, ev types.TriggerEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrInitFailed, "startup procedure %q panicked: %v", g.name, r).
				WithDetail("panic", fmt.Sprint(r))
		}
	}()

	if g.proc == nil {
		return nil
	}
	if err := g.proc(ctx, ev); err != nil {
		return errors.Wrapf(err, errors.ErrInitFailed, "startup procedure %q failed", g.name)
	}
	return nil
}

// IsInitialized reports whether the procedure completed successfully
func (g *Guard) IsInitialized() bool {
	return g.State() == types.StateInitialized
}

// State returns the current state
func (g *Guard) State() types.State {
	return types.State(g.state.Load())
}

// Done is closed once the procedure has finished, successfully or not
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// Err returns the procedure error once the guard is Failed
func (g *Guard) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// Wait blocks until the guard settles or ctx is done.
// It returns the procedure error, or ctx.Err() if ctx finished first.
func (g *Guard) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the guard
func (g *Guard) Status() types.GuardStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := types.GuardStatus{
		Name:       g.name,
		State:      g.State(),
		StartedAt:  g.startedAt,
		FinishedAt: g.finishedAt,
		Requests:   g.requests.Load(),
		Suppressed: g.suppressed.Load(),
		Runs:       g.runs.Load(),
	}
	if g.trigger != nil {
		ev := *g.trigger
		st.Trigger = &ev
	}
	if !g.finishedAt.IsZero() {
		st.Duration = g.finishedAt.Sub(g.startedAt)
	}
	if g.err != nil {
		st.Err = g.err.Error()
	}
	return st
}
