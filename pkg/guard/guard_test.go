package guard

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testMarker = "Backend: Initialized successfully with config."

// lockedBuffer lets concurrent loggers share one buffer
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) count(substr string) int {
	return strings.Count(b.String(), substr)
}

func newCountingGuard(t *testing.T, proc Procedure) (*Guard, *atomic.Int64, *lockedBuffer) {
	t.Helper()
	var calls atomic.Int64
	logs := &lockedBuffer{}
	wrapped := func(ctx context.Context, ev types.TriggerEvent) error {
		calls.Add(1)
		if proc != nil {
			return proc(ctx, ev)
		}
		return nil
	}
	g := New("backend", wrapped,
		WithLogger(logging.NewCaptureLogger(logs)),
		WithMarker(testMarker),
	)
	return g, &calls, logs
}

func manual() types.TriggerEvent {
	return types.NewTriggerEvent(types.TriggerManual, "test")
}

func TestNewDefaults(t *testing.T) {
	g := New("x", nil)
	assert.Equal(t, "x", g.Name())
	assert.Equal(t, types.StateUninitialized, g.State())
	assert.False(t, g.IsInitialized())
	assert.NoError(t, g.Err())

	ran, err := g.RequestInit(context.Background(), manual())
	assert.True(t, ran)
	assert.NoError(t, err)
	assert.True(t, g.IsInitialized())
}

func TestRequestInitRunsExactlyOnce(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 100} {
		g, calls, logs := newCountingGuard(t, nil)

		ranCount := 0
		for i := 0; i < n; i++ {
			ran, err := g.RequestInit(context.Background(), manual())
			require.NoError(t, err)
			if ran {
				ranCount++
			}
		}

		assert.Equal(t, int64(1), calls.Load(), "n=%d", n)
		assert.Equal(t, 1, ranCount, "n=%d", n)
		assert.Equal(t, 1, logs.count(testMarker), "n=%d", n)

		st := g.Status()
		assert.Equal(t, int64(n), st.Requests)
		assert.Equal(t, int64(n-1), st.Suppressed)
		assert.Equal(t, int64(1), st.Runs)
	}
}

func TestRequestInitConcurrentTriggers(t *testing.T) {
	const triggers = 64

	// Hold the procedure open so every goroutine races against Initializing
	release := make(chan struct{})
	g, calls, logs := newCountingGuard(t, func(ctx context.Context, ev types.TriggerEvent) error {
		<-release
		return nil
	})

	var winners atomic.Int64
	var ready sync.WaitGroup
	ready.Add(triggers)
	start := make(chan struct{})

	var eg errgroup.Group
	for i := 0; i < triggers; i++ {
		eg.Go(func() error {
			ready.Done()
			<-start
			ran, err := g.RequestInit(context.Background(), manual())
			if ran {
				winners.Add(1)
			}
			return err
		})
	}

	ready.Wait()
	close(start)

	// Losers return while the winner is still inside the procedure
	require.Eventually(t, func() bool {
		return g.Status().Suppressed == triggers-1
	}, time.Second, time.Millisecond)
	assert.Equal(t, types.StateInitializing, g.State())
	assert.False(t, g.IsInitialized())

	close(release)
	require.NoError(t, eg.Wait())

	assert.Equal(t, int64(1), winners.Load())
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, logs.count(testMarker))
	assert.True(t, g.IsInitialized())
}

func TestThreeImmediateTriggers(t *testing.T) {
	g, calls, logs := newCountingGuard(t, nil)

	for _, kind := range []types.TriggerKind{types.TriggerReady, types.TriggerAuthState, types.TriggerManual} {
		_, err := g.RequestInit(context.Background(), types.NewTriggerEvent(kind, string(kind)))
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, logs.count(testMarker))

	st := g.Status()
	require.NotNil(t, st.Trigger)
	assert.Equal(t, types.TriggerReady, st.Trigger.Kind, "first trigger wins")
}

func TestRequestAfterInitializedIsNoop(t *testing.T) {
	g, calls, logs := newCountingGuard(t, nil)

	assert.False(t, g.IsInitialized())
	ran, err := g.RequestInit(context.Background(), manual())
	require.NoError(t, err)
	require.True(t, ran)
	require.NoError(t, g.Wait(context.Background()))

	before := logs.String()
	assert.True(t, g.IsInitialized())

	ran, err = g.RequestInit(context.Background(), manual())
	require.NoError(t, err)
	assert.False(t, ran)

	assert.True(t, g.IsInitialized())
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, logs.count(testMarker))
	assert.Equal(t, strings.Count(before, `"level":"info"`), logs.count(`"level":"info"`),
		"no new info line")
}

func TestProcedureFailureIsTerminal(t *testing.T) {
	boom := stderrors.New("config missing projectId")
	g, calls, logs := newCountingGuard(t, func(ctx context.Context, ev types.TriggerEvent) error {
		return boom
	})

	ran, err := g.RequestInit(context.Background(), manual())
	assert.True(t, ran)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInitFailed))
	assert.True(t, stderrors.Is(err, boom))

	ran, err = g.RequestInit(context.Background(), manual())
	assert.False(t, ran)
	assert.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "failures are never retried")
	assert.Equal(t, types.StateFailed, g.State())
	assert.False(t, g.IsInitialized())
	assert.Equal(t, 0, logs.count(testMarker))
	assert.Equal(t, 1, logs.count("Startup procedure failed"))

	assert.ErrorIs(t, g.Wait(context.Background()), boom)
	assert.Contains(t, g.Status().Err, "config missing projectId")
}

func TestProcedurePanicBecomesFailure(t *testing.T) {
	g, _, _ := newCountingGuard(t, func(ctx context.Context, ev types.TriggerEvent) error {
		panic("nil auth")
	})

	ran, err := g.RequestInit(context.Background(), manual())
	assert.True(t, ran)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInitFailed))
	assert.Equal(t, "nil auth", errors.GetErrorDetails(err)["panic"])
	assert.Equal(t, types.StateFailed, g.State())

	select {
	case <-g.Done():
	default:
		t.Fatal("Done should be closed after a panic")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	g, _, _ := newCountingGuard(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, types.StateUninitialized, g.State())
}

func TestWaitReturnsWhenAnotherGoroutineInitializes(t *testing.T) {
	g, _, _ := newCountingGuard(t, func(ctx context.Context, ev types.TriggerEvent) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	var eg errgroup.Group
	eg.Go(func() error {
		_, err := g.RequestInit(context.Background(), manual())
		return err
	})

	require.NoError(t, g.Wait(context.Background()))
	assert.True(t, g.IsInitialized())
	require.NoError(t, eg.Wait())
}

func TestStatusSnapshot(t *testing.T) {
	g, _, _ := newCountingGuard(t, nil)

	st := g.Status()
	assert.Equal(t, "backend", st.Name)
	assert.Equal(t, types.StateUninitialized, st.State)
	assert.Nil(t, st.Trigger)
	assert.True(t, st.StartedAt.IsZero())

	ev := types.NewTriggerEvent(types.TriggerAuthState, "auth").WithPayload("uid", "u1")
	_, err := g.RequestInit(context.Background(), ev)
	require.NoError(t, err)

	st = g.Status()
	assert.Equal(t, types.StateInitialized, st.State)
	require.NotNil(t, st.Trigger)
	assert.Equal(t, "u1", st.Trigger.Payload["uid"])
	assert.False(t, st.StartedAt.IsZero())
	assert.False(t, st.FinishedAt.Before(st.StartedAt))
	assert.Empty(t, st.Err)
}

type recordingObserver struct {
	mu         sync.Mutex
	observed   int
	suppressed int
	finished   []error
}

func (r *recordingObserver) TriggerObserved(guard string, ev types.TriggerEvent, suppressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed++
	if suppressed {
		r.suppressed++
	}
}

func (r *recordingObserver) InitFinished(guard string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, err)
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	g := New("app-logic", nil,
		WithObserver(obs),
		WithLogger(zerolog.Nop()),
	)

	for i := 0; i < 3; i++ {
		_, err := g.RequestInit(context.Background(), manual())
		require.NoError(t, err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 3, obs.observed)
	assert.Equal(t, 2, obs.suppressed)
	require.Len(t, obs.finished, 1)
	assert.NoError(t, obs.finished[0])
}

func TestWithMarkerIgnoresEmpty(t *testing.T) {
	g := New("x", nil, WithMarker(""))
	assert.Equal(t, DefaultMarker, g.marker)
}
