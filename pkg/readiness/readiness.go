package readiness

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/guard"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/types"
)

// Flag names one readiness condition
type Flag string

const (
	BackendInitialized Flag = "backend_initialized"
	UserAuthenticated  Flag = "user_authenticated"
	AppDataLoaded      Flag = "app_data_loaded"
	LivePricesLoaded   Flag = "live_prices_loaded"
)

// Flags lists every condition in the order they are usually satisfied
var Flags = []Flag{BackendInitialized, UserAuthenticated, AppDataLoaded, LivePricesLoaded}

// GuardName is the name of the guard wrapping the ready hook
const GuardName = "splash"

// Valid reports whether f is a known flag
func (f Flag) Valid() bool {
	for _, k := range Flags {
		if k == f {
			return true
		}
	}
	return false
}

// Hook runs when every flag is set
type Hook func(ctx context.Context) error

// Gate collects readiness flags
type Gate struct {
	mu     sync.Mutex
	set    map[Flag]bool
	once   *guard.Guard
	logger zerolog.Logger
}

// New creates a Gate calling onReady the first time all flags are set.
// opts configure the guard around onReady.
func New(onReady Hook, opts ...guard.Option) *Gate {
	g := &Gate{
		set:    make(map[Flag]bool, len(Flags)),
		logger: logging.GetLogger("readiness"),
	}
	proc := func(ctx context.Context, _ types.TriggerEvent) error {
		if onReady == nil {
			return nil
		}
		return onReady(ctx)
	}
	opts = append([]guard.Option{guard.WithMarker("Splash screen hidden")}, opts...)
	g.once = guard.New(GuardName, proc, opts...)
	return g
}

// Mark sets f. If that completes the set, the ready hook is requested and
// its error, if this call ran it, is returned.
func (g *Gate) Mark(ctx context.Context, f Flag) error {
	if !f.Valid() {
		return errors.Newf(errors.ErrInvalidInput, "unknown readiness flag %q", f)
	}

	g.mu.Lock()
	g.set[f] = true
	ready := g.readyLocked()
	g.mu.Unlock()

	g.logger.Debug().Str("flag", string(f)).Bool("ready", ready).Msg("Readiness flag set")
	if !ready {
		return nil
	}

	ev := types.NewTriggerEvent(types.TriggerReady, "readiness").WithPayload("flag", string(f))
	_, err := g.once.RequestInit(ctx, ev)
	return err
}

// Clear unsets f, e.g. user_authenticated after sign-out
func (g *Gate) Clear(f Flag) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.set, f)
}

// Ready reports whether every flag is set
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyLocked()
}

func (g *Gate) readyLocked() bool {
	for _, f := range Flags {
		if !g.set[f] {
			return false
		}
	}
	return true
}

// Pending lists the flags not yet set, in Flags order
func (g *Gate) Pending() []Flag {
	g.mu.Lock()
	defer g.mu.Unlock()
	var pending []Flag
	for _, f := range Flags {
		if !g.set[f] {
			pending = append(pending, f)
		}
	}
	return pending
}

// Snapshot returns every flag with its current value
func (g *Gate) Snapshot() map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]bool, len(Flags))
	for _, f := range Flags {
		out[string(f)] = g.set[f]
	}
	return out
}

// Dismissed reports whether the ready hook has completed successfully
func (g *Gate) Dismissed() bool {
	return g.once.IsInitialized()
}

// Status returns the snapshot of the guard around the ready hook
func (g *Gate) Status() types.GuardStatus {
	return g.once.Status()
}
