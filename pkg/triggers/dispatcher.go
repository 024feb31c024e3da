package triggers

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/registry"
	"github.com/arthur-debert/bootonce/pkg/types"
)

// DefaultQueueSize is the dispatcher queue capacity
const DefaultQueueSize = 32

// Handler consumes trigger events one at a time
type Handler func(ctx context.Context, ev types.TriggerEvent) error

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the queue capacity
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithDispatcherLogger replaces the component logger
func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithEventHook calls hook for every event accepted into the queue
func WithEventHook(hook func(types.TriggerEvent)) DispatcherOption {
	return func(d *Dispatcher) { d.hook = hook }
}

// Stats summarises what a Dispatcher has seen
type Stats struct {
	Total   int64                       `json:"total" yaml:"total"`
	Handled int64                       `json:"handled" yaml:"handled"`
	Failed  int64                       `json:"failed" yaml:"failed"`
	ByKind  map[types.TriggerKind]int64 `json:"by_kind" yaml:"by_kind"`
	First   *types.TriggerEvent         `json:"first,omitempty" yaml:"first,omitempty"`
	Sources []string                    `json:"sources" yaml:"sources"`
}

// Dispatcher fans trigger sources into a single handler
type Dispatcher struct {
	handler   Handler
	sources   registry.Registry[Source]
	logger    zerolog.Logger
	hook      func(types.TriggerEvent)
	queueSize int

	events  chan types.TriggerEvent
	closed  chan struct{}
	running atomic.Bool

	// closeMu orders Close against emitters registering in inflight, so
	// the drain can wait for every send that started before Close
	closeMu  sync.Mutex
	isClosed bool
	inflight sync.WaitGroup

	total   atomic.Int64
	handled atomic.Int64
	failed  atomic.Int64

	mu     sync.Mutex
	byKind map[types.TriggerKind]int64
	first  *types.TriggerEvent
}

// NewDispatcher creates a Dispatcher delivering events to handler
func NewDispatcher(handler Handler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handler:   handler,
		sources:   registry.New[Source](),
		logger:    logging.GetLogger("triggers.dispatcher"),
		queueSize: DefaultQueueSize,
		closed:    make(chan struct{}),
		byKind:    make(map[types.TriggerKind]int64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.events = make(chan types.TriggerEvent, d.queueSize)
	return d
}

// Register adds a source. Sources must be registered before Run.
func (d *Dispatcher) Register(src Source) error {
	if src == nil {
		return errors.New(errors.ErrTriggerInvalid, "nil trigger source")
	}
	if d.running.Load() {
		return errors.Newf(errors.ErrTriggerInvalid, "cannot register %q while dispatcher is running", src.Name())
	}
	if err := d.sources.Register(src.Name(), src); err != nil {
		return errors.Wrapf(err, errors.ErrTriggerInvalid, "register trigger source %q", src.Name())
	}
	d.logger.Debug().Str("source", src.Name()).Msg("Registered trigger source")
	return nil
}

// Source looks up a registered source by name
func (d *Dispatcher) Source(name string) (Source, error) {
	return d.sources.Get(name)
}

// Emit queues an event for the handler. It returns TRIGGER_INVALID for an
// unknown kind and TRIGGER_CLOSED once the dispatcher is closed.
func (d *Dispatcher) Emit(ctx context.Context, ev types.TriggerEvent) error {
	if !ev.Kind.Valid() {
		return errors.Newf(errors.ErrTriggerInvalid, "unknown trigger kind %q", ev.Kind).
			WithDetail("source", ev.Source)
	}

	d.closeMu.Lock()
	if d.isClosed {
		d.closeMu.Unlock()
		return errors.New(errors.ErrTriggerClosed, "dispatcher closed")
	}
	d.inflight.Add(1)
	d.closeMu.Unlock()
	defer d.inflight.Done()

	select {
	case d.events <- ev:
		d.accept(ev)
		return nil
	case <-d.closed:
		return errors.New(errors.ErrTriggerClosed, "dispatcher closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) accept(ev types.TriggerEvent) {
	d.total.Add(1)

	d.mu.Lock()
	d.byKind[ev.Kind]++
	d.mu.Unlock()

	if d.hook != nil {
		d.hook(ev)
	}
}

// Run starts every registered source and consumes the queue until ctx is
// cancelled or Close is called. Events already queued are handled before
// Run returns. A source error stops the dispatcher and is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New(errors.ErrTriggerInvalid, "dispatcher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(runCtx)

	for _, src := range d.sources.Values() {
		src := src
		eg.Go(func() error {
			emit := func(ctx context.Context, ev types.TriggerEvent) error {
				if ev.Source == "" {
					ev.Source = src.Name()
				}
				return d.Emit(ctx, ev)
			}
			if err := src.Run(egCtx, emit); err != nil {
				return errors.Wrapf(err, errors.ErrTriggerInvalid, "trigger source %q failed", src.Name())
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer cancel()
		d.consume(egCtx)
		return nil
	})

	err := eg.Wait()
	d.Close()
	d.logger.Debug().Int64("total", d.total.Load()).Msg("Dispatcher stopped")
	return err
}

func (d *Dispatcher) consume(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			d.handle(ctx, ev)
		case <-ctx.Done():
			d.Close()
			d.drain(context.WithoutCancel(ctx))
			return
		case <-d.closed:
			d.drain(ctx)
			return
		}
	}
}

// drain handles queued events until every Emit that began before Close
// has returned, then empties the queue
func (d *Dispatcher) drain(ctx context.Context) {
	settled := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(settled)
	}()

	for {
		select {
		case ev := <-d.events:
			d.handle(ctx, ev)
		case <-settled:
			for {
				select {
				case ev := <-d.events:
					d.handle(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// handle runs on the single consumer goroutine, so the first event it sees
// is the first event in queue order
func (d *Dispatcher) handle(ctx context.Context, ev types.TriggerEvent) {
	d.mu.Lock()
	if d.first == nil {
		first := ev
		d.first = &first
	}
	d.mu.Unlock()

	if d.handler == nil {
		return
	}
	d.handled.Add(1)
	if err := d.handler(ctx, ev); err != nil {
		d.failed.Add(1)
		d.logger.Error().
			Err(err).
			Str("trigger", string(ev.Kind)).
			Str("source", ev.Source).
			Msg("Trigger handler failed")
	}
}

// Close stops accepting events. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if !d.isClosed {
		d.isClosed = true
		close(d.closed)
	}
}

// Stats returns a snapshot of dispatcher counters
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	byKind := make(map[types.TriggerKind]int64, len(d.byKind))
	for k, v := range d.byKind {
		byKind[k] = v
	}
	st := Stats{
		Total:   d.total.Load(),
		Handled: d.handled.Load(),
		Failed:  d.failed.Load(),
		ByKind:  byKind,
		Sources: d.sources.List(),
	}
	if d.first != nil {
		first := *d.first
		st.First = &first
	}
	return st
}
