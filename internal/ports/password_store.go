package ports

import (
	"context"

	"github.com/bnema/screeps-cli/internal/domain"
)

// PasswordStore keeps server passwords outside the config file. Get returns
// an error wrapping domain.ErrPasswordNotFound for unknown keys.
type PasswordStore interface {
	Get(ctx context.Context, key domain.CredentialKey) (string, error)
	Put(ctx context.Context, key domain.CredentialKey, password string) error
	Delete(ctx context.Context, key domain.CredentialKey) error
}
