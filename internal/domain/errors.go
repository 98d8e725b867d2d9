package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrPasswordNotFound = errors.New("password not found")

	ErrNoToken      = errors.New("no auth token available")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalidRoom  = errors.New("invalid room")
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	default:
		return false
	}
}

type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	input := e.Input
	if len(input) > 120 {
		input = input[:120] + "..."
	}
	return fmt.Sprintf("parse server message %q: %v", input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
