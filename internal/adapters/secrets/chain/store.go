package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/screeps-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/screeps-cli/internal/adapters/secrets/pass"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
)

// Store reads and writes the primary backend first and falls back to the
// secondary one when the primary fails.
type Store struct {
	primary  ports.PasswordStore
	fallback ports.PasswordStore
}

var _ ports.PasswordStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary password store is nil")
	errNilFallbackStore = errors.New("fallback password store is nil")
)

func NewStore(primary ports.PasswordStore, fallback ports.PasswordStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(credentialsPath string) (*Store, error) {
	return NewStore(passstore.NewStore(), filestore.NewStore(credentialsPath))
}

func (s *Store) Put(ctx context.Context, key domain.CredentialKey, password string) error {
	err := s.primary.Put(ctx, key, password)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Put(ctx, key, password)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key domain.CredentialKey) (string, error) {
	password, err := s.primary.Get(ctx, key)
	if err == nil {
		return password, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackPassword, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackPassword, nil
	}

	if errors.Is(err, domain.ErrPasswordNotFound) || errors.Is(err, passstore.ErrUnavailable) {
		if errors.Is(fallbackErr, domain.ErrPasswordNotFound) {
			return "", fmt.Errorf("password for %q: %w", key.Path(), domain.ErrPasswordNotFound)
		}
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Delete removes the password from both backends so no stale copy survives.
func (s *Store) Delete(ctx context.Context, key domain.CredentialKey) error {
	primaryErr := s.primary.Delete(ctx, key)
	if primaryErr != nil && shouldSkipFallback(primaryErr) {
		return primaryErr
	}
	if errors.Is(primaryErr, passstore.ErrUnavailable) {
		primaryErr = nil
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	if primaryErr != nil || fallbackErr != nil {
		return fmt.Errorf("delete password: %w", errors.Join(primaryErr, fallbackErr))
	}

	return nil
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
