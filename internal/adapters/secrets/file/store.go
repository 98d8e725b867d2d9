package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	storeDirMode   = 0o700
	storeFileMode  = 0o600
	credentialsVer = 1
)

type credentialsFile struct {
	Version     int              `toml:"version"`
	Credentials []credentialItem `toml:"credentials"`
}

type credentialItem struct {
	Server   string `toml:"server"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Store keeps passwords in a single owner-only TOML file. It is the
// fallback when no password manager is available.
type Store struct {
	path string
	mu   sync.RWMutex
}

var _ ports.PasswordStore = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

func (s *Store) Put(ctx context.Context, key domain.CredentialKey, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(file.Credentials, matches(key))
	item := credentialItem{Server: key.Server, Username: key.Username, Password: password}
	if idx >= 0 {
		file.Credentials[idx] = item
	} else {
		file.Credentials = append(file.Credentials, item)
	}

	return s.write(file)
}

func (s *Store) Get(ctx context.Context, key domain.CredentialKey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateKey(key); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return "", err
	}

	idx := slices.IndexFunc(file.Credentials, matches(key))
	if idx < 0 {
		return "", fmt.Errorf("credentials file entry %q: %w", key.Path(), domain.ErrPasswordNotFound)
	}

	return file.Credentials[idx].Password, nil
}

func (s *Store) Delete(ctx context.Context, key domain.CredentialKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	before := len(file.Credentials)
	file.Credentials = slices.DeleteFunc(file.Credentials, matches(key))
	if len(file.Credentials) == before {
		return nil
	}

	return s.write(file)
}

func (s *Store) read() (credentialsFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return credentialsFile{Version: credentialsVer}, nil
		}
		return credentialsFile{}, fmt.Errorf("read credentials file: %w", err)
	}

	var file credentialsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return credentialsFile{}, fmt.Errorf("decode credentials file: %w", err)
	}
	if file.Version > credentialsVer {
		return credentialsFile{}, fmt.Errorf("unsupported credentials file version %d (current %d)", file.Version, credentialsVer)
	}

	return file, nil
}

func (s *Store) write(file credentialsFile) error {
	file.Version = credentialsVer

	if err := os.MkdirAll(filepath.Dir(s.path), storeDirMode); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode credentials file: %w", err)
	}

	if err := os.WriteFile(s.path, data, storeFileMode); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.path, storeFileMode); err != nil {
		return fmt.Errorf("chmod credentials file: %w", err)
	}

	return nil
}

func validateKey(key domain.CredentialKey) error {
	if key.Server == "" || key.Username == "" {
		return errors.New("credential key needs a server and a username")
	}
	return nil
}

func matches(key domain.CredentialKey) func(credentialItem) bool {
	return func(item credentialItem) bool {
		return item.Server == key.Server && item.Username == key.Username
	}
}
