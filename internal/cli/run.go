package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/bootonce/pkg/app"
	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/metrics"
	"github.com/arthur-debert/bootonce/pkg/readiness"
	"github.com/arthur-debert/bootonce/pkg/session"
	"github.com/arthur-debert/bootonce/pkg/types"
)

type runOptions struct {
	auth     int
	manual   int
	burst    int
	ready    bool
	signIn   string
	loadData bool
	timeout  time.Duration
}

func newRunCmd(g *globals) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:     "run",
		Short:   MsgRunShort,
		Long:    MsgRunLong,
		Example: MsgRunExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, initErr := runApp(cmd.Context(), g, opts)
			r, err := g.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if st != nil {
				if err := r.RenderStatus(*st); err != nil {
					return err
				}
			}
			return initErr
		},
	}

	cmd.Flags().IntVar(&opts.auth, "auth", 0, "Publish N signed-out auth-state callbacks")
	cmd.Flags().IntVar(&opts.manual, "manual", 0, "Fire N manual triggers through the manual source")
	cmd.Flags().IntVar(&opts.burst, "burst", 0, "Request initialization from N goroutines at once")
	cmd.Flags().BoolVar(&opts.ready, "ready", false, "Signal that the host is ready")
	cmd.Flags().StringVar(&opts.signIn, "sign-in", "", "Sign in as this user id once the backend is up")
	cmd.Flags().BoolVar(&opts.loadData, "load-data", false, "Mark watchlist data and live prices as loaded")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "How long to wait for startup to settle")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringSlice("triggers", nil, "Trigger sources to start (auth, ready, manual, timer)")

	return cmd
}

// runApp drives one bootstrap lifetime and returns its final status with
// the initialization error, if any
func runApp(parent context.Context, g *globals, opts *runOptions) (*app.Status, error) {
	if parent == nil {
		parent = context.Background()
	}
	cfg := g.cfg

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	a, err := app.New(app.Options{Config: cfg, Metrics: m})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var eg errgroup.Group
	if m != nil {
		eg.Go(func() error {
			if err := m.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				log.Warn().Err(err).Msg("Metrics server failed")
			}
			return nil
		})
	}

	if err := a.Start(ctx); err != nil {
		return nil, err
	}

	stop := func() error {
		err := a.Close()
		cancel()
		_ = eg.Wait()
		return err
	}

	if err := fire(ctx, a, opts); err != nil {
		_ = stop()
		return nil, err
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, opts.timeout)
	initErr := a.Wait(waitCtx)
	waitCancel()

	if initErr == nil {
		initErr = afterInit(ctx, a, opts)
	}
	if err := stop(); err != nil && initErr == nil {
		initErr = err
	}

	st := a.Status()
	return &st, initErr
}

// fire sends the requested triggers. Delivery errors are logged, not
// fatal: the guard decides the outcome. Asking for a source that is not
// enabled is TRIGGER_INVALID.
func fire(ctx context.Context, a *app.App, opts *runOptions) error {
	fired := false

	if opts.ready {
		src := a.ReadySource()
		if src == nil {
			return errors.New(errors.ErrTriggerInvalid, "--ready needs the ready source in [startup] triggers")
		}
		src.Signal()
		fired = true
	}

	if opts.auth > 0 {
		src := a.AuthSource()
		if src == nil {
			return errors.New(errors.ErrTriggerInvalid, "--auth needs the auth source in [startup] triggers")
		}
		for i := 0; i < opts.auth; i++ {
			if err := src.Publish(ctx, nil); err != nil {
				log.Warn().Err(err).Msg("Auth callback not delivered")
			}
		}
		fired = true
	}

	if opts.manual > 0 {
		src := a.ManualSource()
		if src == nil {
			return errors.New(errors.ErrTriggerInvalid, "--manual needs the manual source in [startup] triggers")
		}
		for i := 0; i < opts.manual; i++ {
			if err := src.Fire(ctx, nil); err != nil {
				log.Warn().Err(err).Msg("Manual trigger not delivered")
			}
		}
		fired = true
	}

	if opts.burst > 0 {
		var eg errgroup.Group
		for i := 0; i < opts.burst; i++ {
			eg.Go(func() error {
				_, err := a.RequestInit(ctx, types.NewTriggerEvent(types.TriggerManual, "cli.burst"))
				return err
			})
		}
		// the winner's procedure error is reported by Wait
		_ = eg.Wait()
		fired = true
	}

	if !fired {
		_, _ = a.RequestInit(ctx, types.NewTriggerEvent(types.TriggerManual, "cli"))
	}
	return nil
}

func afterInit(ctx context.Context, a *app.App, opts *runOptions) error {
	if opts.signIn != "" {
		if _, err := a.SignIn(ctx, session.StaticProvider(types.User{UID: opts.signIn})); err != nil {
			return err
		}
	}
	if opts.loadData {
		for _, f := range []readiness.Flag{readiness.AppDataLoaded, readiness.LivePricesLoaded} {
			if err := a.Readiness().Mark(ctx, f); err != nil {
				return err
			}
		}
	}
	return nil
}
