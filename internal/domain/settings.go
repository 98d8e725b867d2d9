package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const DefaultServerURL = "https://screeps.com/api/"

type ConnectionSettings struct {
	APIURL   *url.URL
	Username string
	Password string
	Shard    string
}

func NewConnectionSettings(rawURL string, username string, password string, shard string) (ConnectionSettings, error) {
	if rawURL == "" {
		rawURL = DefaultServerURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ConnectionSettings{}, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ConnectionSettings{}, errors.New("server url must use http or https")
	}
	if parsed.Host == "" {
		return ConnectionSettings{}, errors.New("server url host is required")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	return ConnectionSettings{
		APIURL:   parsed,
		Username: username,
		Password: password,
		Shard:    shard,
	}, nil
}

// CredentialsEqual reports whether a token issued for s is valid for other.
func (s ConnectionSettings) CredentialsEqual(other ConnectionSettings) bool {
	return s.ServerKey() == other.ServerKey() && s.Username == other.Username && s.Password == other.Password
}

func (s ConnectionSettings) ServerKey() string {
	if s.APIURL == nil {
		return ""
	}
	return s.APIURL.Host + s.APIURL.Path
}

func (s ConnectionSettings) String() string {
	server := ""
	if s.APIURL != nil {
		server = s.APIURL.String()
	}
	return fmt.Sprintf("ConnectionSettings{server: %s, username: %s, password: <redacted>, shard: %s}", server, s.Username, s.Shard)
}
