package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/bootonce/pkg/backend"
	"github.com/arthur-debert/bootonce/pkg/config"
	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/guard"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/metrics"
	"github.com/arthur-debert/bootonce/pkg/readiness"
	"github.com/arthur-debert/bootonce/pkg/session"
	"github.com/arthur-debert/bootonce/pkg/triggers"
	"github.com/arthur-debert/bootonce/pkg/types"
)

// Guard names
const (
	BackendGuard  = "backend"
	AppLogicGuard = "app_logic"
)

// Options configures an App
type Options struct {
	Config *config.Config

	// Logger is used by the guards; the marker line goes through it.
	// Every line carries the run id.
	Logger *zerolog.Logger

	// RunID tags this lifetime's log lines; a random UUID when empty
	RunID string

	// Metrics, when set, observes guards and dispatched triggers
	Metrics *metrics.Metrics

	// OnAppLogic runs once, on the first auth-state callback
	OnAppLogic func(ctx context.Context, user *types.User) error

	// OnAuthChange runs on every auth-state callback after the first
	OnAuthChange func(ctx context.Context, user *types.User)

	// OnSplashHidden runs once every readiness flag is set
	OnSplashHidden func(ctx context.Context) error
}

// Status is the typed snapshot of a bootstrap run
type Status struct {
	RunID         string            `json:"run_id" yaml:"run_id"`
	Backend       types.GuardStatus `json:"backend" yaml:"backend"`
	AppLogic      types.GuardStatus `json:"app_logic" yaml:"app_logic"`
	Splash        types.GuardStatus `json:"splash" yaml:"splash"`
	Readiness     map[string]bool   `json:"readiness" yaml:"readiness"`
	Dispatcher    triggers.Stats    `json:"dispatcher" yaml:"dispatcher"`
	ViewRefreshes int64             `json:"view_refreshes" yaml:"view_refreshes"`
	User          *types.User       `json:"user,omitempty" yaml:"user,omitempty"`
	ProjectID     string            `json:"project_id,omitempty" yaml:"project_id,omitempty"`

	// DataPath is the signed-in user's document prefix
	DataPath       string `json:"data_path,omitempty" yaml:"data_path,omitempty"`
	SignInAttempts int64  `json:"sign_in_attempts" yaml:"sign_in_attempts"`
	SignInRejected int64  `json:"sign_in_rejected" yaml:"sign_in_rejected"`
}

type authUserKey struct{}

// App owns one bootstrap lifetime
type App struct {
	cfg    *config.Config
	opts   Options
	runID  string
	logger zerolog.Logger

	backend    *guard.Guard
	appLogic   *guard.Guard
	dispatcher *triggers.Dispatcher
	readiness  *readiness.Gate

	auth   *triggers.AuthStateSource
	ready  *triggers.ReadySource
	manual *triggers.ManualSource

	viewRefreshes atomic.Int64

	mu       sync.RWMutex
	baseCtx  context.Context
	services *backend.Services
	session  *session.Session
	unsub    func()
	closed   bool

	runMu   sync.Mutex
	cancel  context.CancelFunc
	runDone chan struct{}
	runErr  error
}

// New builds an App from opts. Nothing runs until Start.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.ErrInvalidInput, "app needs a config")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	a := &App{
		cfg:     opts.Config,
		opts:    opts,
		runID:   runID,
		logger:  logging.GetLogger("app").With().Str("run_id", runID).Logger(),
		baseCtx: context.Background(),
	}

	guardLogger := logging.GetLogger("guard")
	if opts.Logger != nil {
		guardLogger = *opts.Logger
	}

	guardOpts := func(name, marker string) []guard.Option {
		logger := guardLogger.With().Str("guard", name).Str("run_id", runID).Logger()
		o := []guard.Option{guard.WithLogger(logger)}
		if opts.Metrics != nil {
			o = append(o, guard.WithObserver(opts.Metrics))
		}
		return append(o, guard.WithMarker(marker))
	}

	a.backend = guard.New(BackendGuard, a.initBackend, guardOpts(BackendGuard, opts.Config.Diagnostics.InitMarker)...)
	a.appLogic = guard.New(AppLogicGuard, a.initAppLogic, guardOpts(AppLogicGuard, "App logic initialized")...)
	a.readiness = readiness.New(opts.OnSplashHidden, guardOpts(readiness.GuardName, "Splash screen hidden")...)

	dispOpts := []triggers.DispatcherOption{triggers.WithQueueSize(opts.Config.Startup.QueueSize)}
	if opts.Metrics != nil {
		dispOpts = append(dispOpts, triggers.WithEventHook(opts.Metrics.ObserveTrigger))
	}
	a.dispatcher = triggers.NewDispatcher(a.handleTrigger, dispOpts...)

	sources, err := triggers.Build(opts.Config.Startup.Triggers, triggers.FactoryOptions{
		Delay: opts.Config.Startup.TimerDelay.Std(),
	})
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := a.dispatcher.Register(src); err != nil {
			return nil, err
		}
		switch s := src.(type) {
		case *triggers.AuthStateSource:
			a.auth = s
		case *triggers.ReadySource:
			a.ready = s
		case *triggers.ManualSource:
			a.manual = s
		}
	}

	a.logger.Debug().Strs("triggers", opts.Config.Startup.Triggers).Msg("App created")
	return a, nil
}

func (a *App) handleTrigger(ctx context.Context, ev types.TriggerEvent) error {
	_, err := a.backend.RequestInit(ctx, ev)
	return err
}

// initBackend is the guarded startup procedure
func (a *App) initBackend(ctx context.Context, ev types.TriggerEvent) error {
	done := logging.LogOperationStart(a.logger, "backend.initialize")
	defer done()

	svc, err := backend.Initialize(ctx, a.cfg.Backend)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.services = svc
	a.session = session.New(svc.Auth)
	a.mu.Unlock()

	if err := a.readiness.Mark(ctx, readiness.BackendInitialized); err != nil {
		a.logger.Warn().Err(err).Msg("Splash hook failed")
	}

	unsub := svc.Auth.OnAuthStateChanged(a.onAuthStateChanged)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		unsub()
		return nil
	}
	a.unsub = unsub
	a.mu.Unlock()
	return nil
}

func (a *App) onAuthStateChanged(user *types.User) {
	ctx := a.context()

	if user != nil {
		if err := a.readiness.Mark(ctx, readiness.UserAuthenticated); err != nil {
			a.logger.Warn().Err(err).Msg("Splash hook failed")
		}
	} else {
		a.readiness.Clear(readiness.UserAuthenticated)
	}

	// The auth-state source is itself a trigger; after init it is suppressed.
	// This may run on the dispatcher goroutine, so it must not block.
	if a.auth != nil && !a.auth.TryPublish(user) {
		a.logger.Debug().Msg("Auth state trigger dropped")
	}

	ev := types.NewTriggerEvent(types.TriggerAuthState, "backend.auth")
	if user != nil {
		ev = ev.WithPayload("uid", user.UID)
	}
	ran, err := a.appLogic.RequestInit(context.WithValue(ctx, authUserKey{}, user), ev)
	if err != nil {
		a.logger.Error().Err(err).Msg("App logic initialization failed")
		return
	}
	if !ran {
		a.viewRefreshes.Add(1)
		if a.opts.OnAuthChange != nil {
			a.opts.OnAuthChange(ctx, user)
		}
	}
}

func (a *App) initAppLogic(ctx context.Context, ev types.TriggerEvent) error {
	if a.opts.OnAppLogic == nil {
		return nil
	}
	user, _ := ctx.Value(authUserKey{}).(*types.User)
	return a.opts.OnAppLogic(ctx, user)
}

func (a *App) context() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.baseCtx
}

// Start runs the dispatcher in the background until ctx is done or Close
func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.runDone != nil {
		return errors.New(errors.ErrInvalidInput, "app already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.runDone = make(chan struct{})

	a.mu.Lock()
	a.baseCtx = runCtx
	a.mu.Unlock()

	go func() {
		defer close(a.runDone)
		err := a.dispatcher.Run(runCtx)
		a.runMu.Lock()
		a.runErr = err
		a.runMu.Unlock()
	}()
	a.logger.Debug().Strs("sources", a.dispatcher.Stats().Sources).Msg("App started")
	return nil
}

// Close stops the dispatcher, handling queued triggers first, and returns
// the dispatcher error if any
func (a *App) Close() error {
	a.runMu.Lock()
	cancel, done := a.cancel, a.runDone
	a.runMu.Unlock()

	a.mu.Lock()
	a.closed = true
	unsub := a.unsub
	a.unsub = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.runErr
}

// Wait blocks until the backend guard settles
func (a *App) Wait(ctx context.Context) error {
	return a.backend.Wait(ctx)
}

// RequestInit triggers the backend guard directly, bypassing the dispatcher
func (a *App) RequestInit(ctx context.Context, ev types.TriggerEvent) (bool, error) {
	return a.backend.RequestInit(ctx, ev)
}

// Emit queues a trigger event through the dispatcher
func (a *App) Emit(ctx context.Context, ev types.TriggerEvent) error {
	return a.dispatcher.Emit(ctx, ev)
}

// RunID returns the id stamped on this lifetime's log lines
func (a *App) RunID() string { return a.runID }

// IsInitialized reports whether the backend is initialized
func (a *App) IsInitialized() bool {
	return a.backend.IsInitialized()
}

// AuthSource returns the configured auth-state source, or nil
func (a *App) AuthSource() *triggers.AuthStateSource { return a.auth }

// ReadySource returns the configured ready source, or nil
func (a *App) ReadySource() *triggers.ReadySource { return a.ready }

// ManualSource returns the configured manual source, or nil
func (a *App) ManualSource() *triggers.ManualSource { return a.manual }

// Readiness returns the splash gate
func (a *App) Readiness() *readiness.Gate { return a.readiness }

// Session returns the sign-in session, available once the backend is up
func (a *App) Session() (*session.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, errors.New(errors.ErrNotInitialized, "backend is not initialized")
	}
	return a.session, nil
}

// SignIn authenticates through p once the backend is up
func (a *App) SignIn(ctx context.Context, p session.Provider) (*types.User, error) {
	s, err := a.Session()
	if err != nil {
		return nil, err
	}
	return s.SignIn(ctx, p)
}

// SignOut signs the current user out
func (a *App) SignOut() error {
	s, err := a.Session()
	if err != nil {
		return err
	}
	return s.SignOut()
}

// Status returns a snapshot of the whole run
func (a *App) Status() Status {
	st := Status{
		RunID:         a.runID,
		Backend:       a.backend.Status(),
		AppLogic:      a.appLogic.Status(),
		Splash:        a.readiness.Status(),
		Readiness:     a.readiness.Snapshot(),
		Dispatcher:    a.dispatcher.Stats(),
		ViewRefreshes: a.viewRefreshes.Load(),
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.services != nil {
		st.ProjectID = a.services.ProjectID
		st.User = a.services.Auth.CurrentUser()
		if st.User != nil {
			st.DataPath = a.services.UserPath(st.User.UID)
		}
	}
	if a.session != nil {
		st.SignInAttempts = a.session.Attempts()
		st.SignInRejected = a.session.Rejected()
	}
	return st
}
