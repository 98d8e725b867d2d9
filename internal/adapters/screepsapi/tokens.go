package screepsapi

import "sync"

// TokenStore is shared by every HTTP executor and the websocket session.
// Clear starts a new epoch: tokens obtained by requests that began before it
// are dropped by SetAt.
type TokenStore struct {
	mu    sync.Mutex
	token string
	set   bool
	epoch uint64
}

func (s *TokenStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set
}

func (s *TokenStore) Set(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.set = token, true
}

// Current returns the token together with the epoch it belongs to.
func (s *TokenStore) Current() (token string, ok bool, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set, s.epoch
}

// Epoch identifies the credentials the current token belongs to.
func (s *TokenStore) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// SetAt stores token only if no Clear happened since epoch was read.
func (s *TokenStore) SetAt(epoch uint64, token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.token, s.set = token, true
	return true
}

func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.set = "", false
	s.epoch++
}

// CompareAndClear clears the store only if it still holds the given token,
// so a rejected stale token never discards a fresher one.
func (s *TokenStore) CompareAndClear(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && s.token == token {
		s.token, s.set = "", false
	}
}
