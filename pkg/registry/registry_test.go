package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/bootonce/pkg/errors"
)

type source struct {
	name string
	kind string
}

func TestRegister(t *testing.T) {
	reg := New[source]()

	t.Run("valid item", func(t *testing.T) {
		require.NoError(t, reg.Register("auth", source{name: "auth", kind: "auth_state"}))
		assert.Equal(t, 1, reg.Count())
	})

	t.Run("empty name", func(t *testing.T) {
		err := reg.Register("", source{})
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput), err)
	})

	t.Run("duplicate", func(t *testing.T) {
		err := reg.Register("auth", source{name: "other"})
		assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyExists), err)
		assert.Equal(t, "auth", errors.GetErrorDetails(err)["name"])

		got, _ := reg.Get("auth")
		assert.Equal(t, "auth_state", got.kind, "original item is kept")
	})
}

func TestGetAndRemove(t *testing.T) {
	reg := New[source]()
	require.NoError(t, reg.Register("ready", source{name: "ready"}))

	got, err := reg.Get("ready")
	require.NoError(t, err)
	assert.Equal(t, "ready", got.name)

	_, err = reg.Get("missing")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))

	require.NoError(t, reg.Remove("ready"))
	assert.False(t, reg.Has("ready"))
	assert.True(t, errors.IsErrorCode(reg.Remove("ready"), errors.ErrNotFound))
}

func TestListAndValuesAreSorted(t *testing.T) {
	reg := New[source]()
	for _, name := range []string{"timer", "auth", "manual"} {
		require.NoError(t, reg.Register(name, source{name: name}))
	}

	assert.Equal(t, []string{"auth", "manual", "timer"}, reg.List())

	var names []string
	for _, s := range reg.Values() {
		names = append(names, s.name)
	}
	assert.Equal(t, []string{"auth", "manual", "timer"}, names)
}

func TestHas(t *testing.T) {
	reg := New[source]()
	_ = reg.Register("auth", source{})

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"existing item", "auth", true},
		{"non-existing item", "ready", false},
		{"empty name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Has(tt.key))
		})
	}
}

func TestConcurrentRegister(t *testing.T) {
	reg := New[int]()
	const goroutines = 10
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				assert.NoError(t, reg.Register(fmt.Sprintf("g%d_%d", id, i), i))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, reg.Count())
	assert.Len(t, reg.Values(), goroutines*perGoroutine)
}

func TestMustRegister(t *testing.T) {
	reg := New[source]()

	assert.NotPanics(t, func() { MustRegister(reg, "auth", source{}) })
	assert.True(t, reg.Has("auth"))
	assert.Panics(t, func() { MustRegister(reg, "auth", source{}) })
}
