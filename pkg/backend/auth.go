package backend

import (
	"sync"

	"github.com/arthur-debert/bootonce/pkg/types"
)

// AuthListener is called with the current user, or nil when signed out
type AuthListener func(user *types.User)

// Auth holds the signed-in user and notifies listeners of changes
type Auth struct {
	mu        sync.Mutex
	current   *types.User
	listeners map[int]AuthListener
	nextID    int
}

// NewAuth creates a signed-out Auth
func NewAuth() *Auth {
	return &Auth{listeners: make(map[int]AuthListener)}
}

// CurrentUser returns a copy of the signed-in user, or nil
func (a *Auth) CurrentUser() *types.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	u := *a.current
	return &u
}

// OnAuthStateChanged registers l and immediately calls it with the current
// state. The returned func unsubscribes.
func (a *Auth) OnAuthStateChanged(l AuthListener) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = l
	current := a.current
	a.mu.Unlock()

	l(copyUser(current))

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// SignIn records user as signed in and notifies listeners
func (a *Auth) SignIn(user types.User) {
	a.set(&user)
}

// SignOut clears the user and notifies listeners
func (a *Auth) SignOut() {
	a.set(nil)
}

func (a *Auth) set(user *types.User) {
	a.mu.Lock()
	a.current = user
	listeners := make([]AuthListener, 0, len(a.listeners))
	for id := 0; id < a.nextID; id++ {
		if l, ok := a.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	a.mu.Unlock()

	// Called outside the lock so listeners may read CurrentUser
	for _, l := range listeners {
		l(copyUser(user))
	}
}

func copyUser(u *types.User) *types.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
