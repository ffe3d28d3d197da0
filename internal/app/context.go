package app

import (
	"context"
	"errors"
	"fmt"

	"alfcoach/internal/config"
	"alfcoach/internal/repo"
)

// ResolveConfig loads the coach config from the workspace DB, seeding the
// default config on first use so every command sees the same gates.
func ResolveConfig(ctx context.Context, coachName string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	seed := config.Default(coachName)
	if err := r.UpsertConfig(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed coach config: %w", err)
	}
	return seed, nil
}
