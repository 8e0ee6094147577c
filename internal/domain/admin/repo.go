package admin

import "context"

type Repository interface {
	// Get returns the settings row, creating defaults if none exists yet.
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}
