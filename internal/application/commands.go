package application

import "github.com/bnema/screeps-cli/internal/domain"

type SaveLoginCommand struct {
	Profile  domain.Profile
	Password string
}

// SettingsOverrides replace profile fields when non-empty.
type SettingsOverrides struct {
	ServerURL string
	Username  string
	Password  string
	Shard     string
}

func (o SettingsOverrides) apply(profile domain.Profile) domain.Profile {
	if o.ServerURL != "" {
		profile.ServerURL = o.ServerURL
	}
	if o.Username != "" {
		profile.Username = o.Username
	}
	if o.Shard != "" {
		profile.Shard = o.Shard
	}
	return profile
}
