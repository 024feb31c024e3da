package triggers

import (
	"context"
	"sync"
	"time"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/types"
)

// Emitter hands an event to the Dispatcher
type Emitter func(ctx context.Context, ev types.TriggerEvent) error

// Source produces trigger events until its context is cancelled
type Source interface {
	// Name returns the unique registration name
	Name() string

	// Run emits events until ctx is done or the source is exhausted
	Run(ctx context.Context, emit Emitter) error
}

// feed is a queue of events pushed from outside a source's Run loop
type feed struct {
	events   chan types.TriggerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

func newFeed(size int) *feed {
	return &feed{
		events: make(chan types.TriggerEvent, size),
		stop:   make(chan struct{}),
	}
}

func (f *feed) push(ctx context.Context, ev types.TriggerEvent) error {
	select {
	case <-f.stop:
		return errors.New(errors.ErrTriggerClosed, "source stopped")
	default:
	}

	select {
	case f.events <- ev:
		return nil
	case <-f.stop:
		return errors.New(errors.ErrTriggerClosed, "source stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryPush queues ev only if there is room right now
func (f *feed) tryPush(ev types.TriggerEvent) bool {
	select {
	case <-f.stop:
		return false
	default:
	}

	select {
	case f.events <- ev:
		return true
	default:
		return false
	}
}

func (f *feed) run(ctx context.Context, emit Emitter) error {
	defer f.stopOnce.Do(func() { close(f.stop) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.events:
			if err := emit(ctx, ev); err != nil {
				if errors.IsErrorCode(err, errors.ErrTriggerClosed) || ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// ManualSource emits an event for every Fire call
type ManualSource struct {
	name string
	feed *feed
}

// NewManualSource creates a ManualSource
func NewManualSource(name string) *ManualSource {
	return &ManualSource{name: name, feed: newFeed(64)}
}

func (s *ManualSource) Name() string { return s.name }

// Fire requests initialization. It blocks only while the source's queue is
// full; it returns TRIGGER_CLOSED once the source has stopped.
func (s *ManualSource) Fire(ctx context.Context, payload map[string]string) error {
	ev := types.NewTriggerEvent(types.TriggerManual, s.name)
	for k, v := range payload {
		ev = ev.WithPayload(k, v)
	}
	return s.feed.push(ctx, ev)
}

func (s *ManualSource) Run(ctx context.Context, emit Emitter) error {
	return s.feed.run(ctx, emit)
}

// AuthStateSource emits an event for every auth-state change.
// A nil user means signed out; both directions are triggers.
type AuthStateSource struct {
	name string
	feed *feed
}

// NewAuthStateSource creates an AuthStateSource
func NewAuthStateSource(name string) *AuthStateSource {
	return &AuthStateSource{name: name, feed: newFeed(64)}
}

func (s *AuthStateSource) Name() string { return s.name }

// Publish reports an auth-state change
func (s *AuthStateSource) Publish(ctx context.Context, user *types.User) error {
	return s.feed.push(ctx, s.event(user))
}

// TryPublish reports an auth-state change without blocking. It returns false
// when the queue is full or the source has stopped. Callers running on the
// dispatcher's handler goroutine must use it instead of Publish.
func (s *AuthStateSource) TryPublish(user *types.User) bool {
	return s.feed.tryPush(s.event(user))
}

func (s *AuthStateSource) event(user *types.User) types.TriggerEvent {
	ev := types.NewTriggerEvent(types.TriggerAuthState, s.name)
	if user != nil {
		return ev.WithPayload("signed_in", "true").WithPayload("uid", user.UID)
	}
	return ev.WithPayload("signed_in", "false")
}

func (s *AuthStateSource) Run(ctx context.Context, emit Emitter) error {
	return s.feed.run(ctx, emit)
}

// ReadySource emits a single event once Signal has been called
type ReadySource struct {
	name  string
	ready chan struct{}
	once  sync.Once
}

// NewReadySource creates a ReadySource
func NewReadySource(name string) *ReadySource {
	return &ReadySource{name: name, ready: make(chan struct{})}
}

func (s *ReadySource) Name() string { return s.name }

// Signal marks the host ready; later calls do nothing
func (s *ReadySource) Signal() {
	s.once.Do(func() { close(s.ready) })
}

func (s *ReadySource) Run(ctx context.Context, emit Emitter) error {
	select {
	case <-ctx.Done():
		return nil
	case <-s.ready:
	}
	err := emit(ctx, types.NewTriggerEvent(types.TriggerReady, s.name))
	if errors.IsErrorCode(err, errors.ErrTriggerClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

// TimerSource emits a single event after a delay
type TimerSource struct {
	name  string
	delay time.Duration
}

// NewTimerSource creates a TimerSource
func NewTimerSource(name string, delay time.Duration) *TimerSource {
	return &TimerSource{name: name, delay: delay}
}

func (s *TimerSource) Name() string { return s.name }

func (s *TimerSource) Run(ctx context.Context, emit Emitter) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}
	ev := types.NewTriggerEvent(types.TriggerTimer, s.name).WithPayload("delay", s.delay.String())
	err := emit(ctx, ev)
	if errors.IsErrorCode(err, errors.ErrTriggerClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}
