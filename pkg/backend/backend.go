package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/arthur-debert/bootonce/pkg/config"
)

// Services is what a successful Initialize produces
type Services struct {
	ProjectID     string
	AppID         string
	AuthDomain    string
	StorageBucket string
	Auth          *Auth
	InitializedAt time.Time
}

// Initialize is the startup procedure. It fails with CONFIG_INVALID when
// the api key or project id is missing and never retries on its own.
func Initialize(ctx context.Context, cfg config.Backend) (*Services, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Services{
		ProjectID:     cfg.ProjectID,
		AppID:         cfg.AppID,
		AuthDomain:    cfg.AuthDomain,
		StorageBucket: cfg.StorageBucket,
		Auth:          NewAuth(),
		InitializedAt: time.Now(),
	}
	if svc.AppID == "" {
		svc.AppID = cfg.ProjectID
	}
	if svc.AuthDomain == "" {
		svc.AuthDomain = fmt.Sprintf("%s.firebaseapp.com", cfg.ProjectID)
	}
	if svc.StorageBucket == "" {
		svc.StorageBucket = fmt.Sprintf("%s.appspot.com", cfg.ProjectID)
	}
	return svc, nil
}

// UserPath returns the per-user document prefix used by the watchlist data
func (s *Services) UserPath(uid string) string {
	return fmt.Sprintf("artifacts/%s/users/%s", s.AppID, uid)
}
