package ports

import (
	"context"

	"github.com/bnema/screeps-cli/internal/domain"
)

type ProfileRepository interface {
	Get(ctx context.Context, name string) (domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) error
	Delete(ctx context.Context, name string) error
}
