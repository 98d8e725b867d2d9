package domain

import (
	"errors"
	"strings"
)

const DefaultProfileName = "default"

// Profile is a saved server login without its password.
type Profile struct {
	Name      string
	ServerURL string
	Username  string
	Shard     string
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return errors.New("profile username is required")
	}
	if _, err := NewConnectionSettings(p.ServerURL, p.Username, "", p.Shard); err != nil {
		return err
	}
	return nil
}

func (p Profile) Settings(password string) (ConnectionSettings, error) {
	return NewConnectionSettings(p.ServerURL, p.Username, password, p.Shard)
}

// CredentialKey identifies one stored password.
type CredentialKey struct {
	Server   string
	Username string
}

func CredentialKeyFor(settings ConnectionSettings) CredentialKey {
	return CredentialKey{Server: settings.ServerKey(), Username: settings.Username}
}

// Path is the key as a slash separated path, usable as a pass entry name.
func (k CredentialKey) Path() string {
	server := strings.Trim(k.Server, "/")
	server = strings.NewReplacer(":", "_", "/", "_").Replace(server)
	return "scrs/" + server + "/" + k.Username
}
