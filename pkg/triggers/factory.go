package triggers

import (
	"time"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/registry"
)

// Built-in source names, usable in the [startup] triggers list
const (
	AuthSourceName   = "auth"
	ReadySourceName  = "ready"
	ManualSourceName = "manual"
	TimerSourceName  = "timer"
)

// FactoryOptions carries settings a factory may need
type FactoryOptions struct {
	// Delay is used by the timer source
	Delay time.Duration
}

// Factory builds a Source
type Factory func(opts FactoryOptions) (Source, error)

var factories = registry.New[Factory]()

func init() {
	registry.MustRegister(factories, AuthSourceName, func(FactoryOptions) (Source, error) {
		return NewAuthStateSource(AuthSourceName), nil
	})
	registry.MustRegister(factories, ReadySourceName, func(FactoryOptions) (Source, error) {
		return NewReadySource(ReadySourceName), nil
	})
	registry.MustRegister(factories, ManualSourceName, func(FactoryOptions) (Source, error) {
		return NewManualSource(ManualSourceName), nil
	})
	registry.MustRegister(factories, TimerSourceName, func(opts FactoryOptions) (Source, error) {
		if opts.Delay <= 0 {
			return nil, errors.Newf(errors.ErrTriggerInvalid, "timer source needs a positive delay, got %s", opts.Delay)
		}
		return NewTimerSource(TimerSourceName, opts.Delay), nil
	})
}

// Factories lists the names of all known source factories
func Factories() []string {
	return factories.List()
}

// Build creates one source per name, in the given order
func Build(names []string, opts FactoryOptions) ([]Source, error) {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		factory, err := factories.Get(name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrTriggerInvalid, "unknown trigger source %q", name).
				WithDetail("known", factories.List())
		}
		src, err := factory(opts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
