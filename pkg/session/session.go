package session

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/bootonce/pkg/backend"
	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/types"
)

// Provider authenticates a user, e.g. through a popup flow
type Provider interface {
	Authenticate(ctx context.Context) (*types.User, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (*types.User, error)

// Authenticate calls f
func (f ProviderFunc) Authenticate(ctx context.Context) (*types.User, error) {
	return f(ctx)
}

// StaticProvider always authenticates as user
func StaticProvider(user types.User) Provider {
	return ProviderFunc(func(ctx context.Context) (*types.User, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := user
		return &u, nil
	})
}

// Session performs sign-in and sign-out against an Auth
type Session struct {
	auth       *backend.Auth
	logger     zerolog.Logger
	inProgress atomic.Bool
	attempts   atomic.Int64
	rejected   atomic.Int64
}

// New creates a Session for auth
func New(auth *backend.Auth) *Session {
	return &Session{
		auth:   auth,
		logger: logging.GetLogger("session"),
	}
}

// SignIn authenticates through p and records the user. An attempt made
// while another is in flight fails with SIGNIN_IN_PROGRESS.
func (s *Session) SignIn(ctx context.Context, p Provider) (*types.User, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.rejected.Add(1)
		s.logger.Warn().Msg("Sign-in already in progress, ignoring duplicate request")
		return nil, errors.New(errors.ErrSignInInProgress, "sign-in already in progress")
	}
	defer s.inProgress.Store(false)
	s.attempts.Add(1)

	if p == nil {
		return nil, errors.New(errors.ErrInvalidInput, "no sign-in provider")
	}

	user, err := p.Authenticate(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Sign-in failed")
		return nil, errors.Wrap(err, errors.ErrSignInFailed, "sign-in failed")
	}
	if user == nil || user.UID == "" {
		return nil, errors.New(errors.ErrSignInFailed, "provider returned no user")
	}

	s.auth.SignIn(*user)
	s.logger.Info().Str("uid", user.UID).Msg("Signed in")
	return user, nil
}

// SignOut clears the current user
func (s *Session) SignOut() error {
	user := s.auth.CurrentUser()
	if user == nil {
		return errors.New(errors.ErrNotSignedIn, "no user is signed in")
	}
	s.auth.SignOut()
	s.logger.Info().Str("uid", user.UID).Msg("Signed out")
	return nil
}

// CurrentUser returns the signed-in user, or nil
func (s *Session) CurrentUser() *types.User {
	return s.auth.CurrentUser()
}

// InProgress reports whether a sign-in attempt is running
func (s *Session) InProgress() bool {
	return s.inProgress.Load()
}

// Attempts returns how many sign-in attempts were started
func (s *Session) Attempts() int64 {
	return s.attempts.Load()
}

// Rejected returns how many overlapping attempts were refused
func (s *Session) Rejected() int64 {
	return s.rejected.Load()
}
