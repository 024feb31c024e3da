package backend

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/bootonce/pkg/config"
	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/types"
)

func TestInitialize(t *testing.T) {
	svc, err := Initialize(context.Background(), config.Backend{
		APIKey:    "key",
		ProjectID: "asx-watchlist-app",
	})
	require.NoError(t, err)

	assert.Equal(t, "asx-watchlist-app", svc.ProjectID)
	assert.Equal(t, "asx-watchlist-app", svc.AppID)
	assert.Equal(t, "asx-watchlist-app.firebaseapp.com", svc.AuthDomain)
	assert.Equal(t, "asx-watchlist-app.appspot.com", svc.StorageBucket)
	assert.NotNil(t, svc.Auth)
	assert.False(t, svc.InitializedAt.IsZero())
	assert.Equal(t, "artifacts/asx-watchlist-app/users/u1", svc.UserPath("u1"))
}

func TestInitializeKeepsExplicitValues(t *testing.T) {
	svc, err := Initialize(context.Background(), config.Backend{
		APIKey:        "key",
		ProjectID:     "p",
		AppID:         "1:671:web:abc",
		AuthDomain:    "auth.example.com",
		StorageBucket: "bucket",
	})
	require.NoError(t, err)
	assert.Equal(t, "1:671:web:abc", svc.AppID)
	assert.Equal(t, "auth.example.com", svc.AuthDomain)
	assert.Equal(t, "bucket", svc.StorageBucket)
}

func TestInitializeRejectsIncompleteConfig(t *testing.T) {
	_, err := Initialize(context.Background(), config.Backend{APIKey: "key"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))
}

func TestInitializeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Initialize(ctx, config.Backend{APIKey: "k", ProjectID: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthListeners(t *testing.T) {
	auth := NewAuth()

	var mu sync.Mutex
	var seen []*types.User
	unsubscribe := auth.OnAuthStateChanged(func(u *types.User) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, u)
	})

	auth.SignIn(types.User{UID: "u1", Email: "a@example.com"})
	require.NotNil(t, auth.CurrentUser())
	assert.Equal(t, "u1", auth.CurrentUser().UID)

	auth.SignOut()
	assert.Nil(t, auth.CurrentUser())

	unsubscribe()
	auth.SignIn(types.User{UID: "u2"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3, "initial state, sign in, sign out")
	assert.Nil(t, seen[0])
	assert.Equal(t, "u1", seen[1].UID)
	assert.Nil(t, seen[2])
}

func TestAuthListenerMayReadState(t *testing.T) {
	auth := NewAuth()
	var inside *types.User
	auth.OnAuthStateChanged(func(u *types.User) {
		inside = auth.CurrentUser()
	})

	auth.SignIn(types.User{UID: "u9"})
	require.NotNil(t, inside)
	assert.Equal(t, "u9", inside.UID)
}

func TestCurrentUserIsACopy(t *testing.T) {
	auth := NewAuth()
	auth.SignIn(types.User{UID: "u1"})

	u := auth.CurrentUser()
	u.UID = "changed"
	assert.Equal(t, "u1", auth.CurrentUser().UID)
}
