package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
)

var ErrMissingUsername = errors.New("no username configured")

// Service manages saved server profiles and their passwords.
type Service struct {
	repo  ports.ProfileRepository
	store ports.PasswordStore
}

func NewService(repo ports.ProfileRepository, store ports.PasswordStore) *Service {
	return &Service{
		repo:  repo,
		store: store,
	}
}

// SaveLogin stores the password before the profile so a profile never points
// at a missing password. A replaced profile's old password is removed.
func (s *Service) SaveLogin(ctx context.Context, cmd SaveLoginCommand) error {
	profile := cmd.Profile
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}

	settings, err := profile.Settings(cmd.Password)
	if err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}
	key := domain.CredentialKeyFor(settings)

	previous, err := s.repo.Get(ctx, profile.Name)
	hadPrevious := err == nil
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return fmt.Errorf("get profile: %w", err)
	}

	if err := s.store.Put(ctx, key, cmd.Password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		if rollbackErr := s.store.Delete(ctx, key); rollbackErr != nil {
			return fmt.Errorf("save profile and rollback stored password: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save profile: %w", err)
	}

	if !hadPrevious {
		return nil
	}

	previousKey, err := credentialKey(previous)
	if err != nil || previousKey == key || s.keyInUse(ctx, previousKey) {
		return nil
	}
	if err := s.store.Delete(ctx, previousKey); err != nil {
		return fmt.Errorf("delete previous password: %w", err)
	}
	return nil
}

// RemoveProfile deletes the profile, then its password unless another
// profile logs into the same account.
func (s *Service) RemoveProfile(ctx context.Context, name string) error {
	profile, err := s.repo.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	key, err := credentialKey(profile)
	if err != nil || s.keyInUse(ctx, key) {
		return nil
	}

	if err := s.store.Delete(ctx, key); err != nil {
		if restoreErr := s.repo.Save(ctx, profile); restoreErr != nil {
			return fmt.Errorf("delete password and restore profile: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete password: %w", err)
	}
	return nil
}

func (s *Service) Profiles(ctx context.Context) ([]ProfileView, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	views := make([]ProfileView, 0, len(profiles))
	for _, profile := range profiles {
		view := ProfileView{Profile: profile}
		if key, err := credentialKey(profile); err == nil {
			_, err := s.store.Get(ctx, key)
			view.HasPassword = err == nil
		}
		views = append(views, view)
	}
	return views, nil
}

// ResolveSettings builds connection settings from a saved profile with
// overrides applied on top. A missing profile is fine when the overrides
// name a user.
func (s *Service) ResolveSettings(ctx context.Context, name string, overrides SettingsOverrides) (domain.ConnectionSettings, error) {
	profile, err := s.repo.Get(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return domain.ConnectionSettings{}, fmt.Errorf("get profile: %w", err)
	}
	profileFound := err == nil

	profile = overrides.apply(profile)
	if strings.TrimSpace(profile.Username) == "" {
		if !profileFound {
			return domain.ConnectionSettings{}, fmt.Errorf("profile %q: %w", name, domain.ErrProfileNotFound)
		}
		return domain.ConnectionSettings{}, ErrMissingUsername
	}

	password := overrides.Password
	if password == "" {
		key, err := credentialKey(profile)
		if err != nil {
			return domain.ConnectionSettings{}, fmt.Errorf("resolve profile %q: %w", name, err)
		}
		password, err = s.store.Get(ctx, key)
		if err != nil {
			return domain.ConnectionSettings{}, fmt.Errorf("load password: %w", err)
		}
	}

	settings, err := profile.Settings(password)
	if err != nil {
		return domain.ConnectionSettings{}, fmt.Errorf("resolve profile %q: %w", name, err)
	}
	return settings, nil
}

func (s *Service) keyInUse(ctx context.Context, key domain.CredentialKey) bool {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		// Unknown: keep the password.
		return true
	}
	for _, profile := range profiles {
		if other, err := credentialKey(profile); err == nil && other == key {
			return true
		}
	}
	return false
}

func credentialKey(profile domain.Profile) (domain.CredentialKey, error) {
	settings, err := profile.Settings("")
	if err != nil {
		return domain.CredentialKey{}, err
	}
	return domain.CredentialKeyFor(settings), nil
}
