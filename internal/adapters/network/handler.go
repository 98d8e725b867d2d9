package network

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/screeps-cli/internal/adapters/notify"
	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	DefaultPoolSize         = 5
	DefaultRateLimitBackoff = 5 * time.Second

	// DefaultMaxRateLimitRetries is what the CLI configures. A zero
	// MaxRateLimitRetries retries forever.
	DefaultMaxRateLimitRetries = 12
)

type Config struct {
	Settings            domain.ConnectionSettings
	Cache               ports.TerrainCache
	Notify              ports.Notify
	HTTPClient          *http.Client
	Tokens              *screepsapi.TokenStore
	Limiter             *rate.Limiter
	Dialer              *websocket.Dialer
	PoolSize            int
	RateLimitBackoff    time.Duration
	MaxRateLimitRetries int
	HandshakeTimeout    time.Duration
	Logger              *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Notify == nil {
		c.Notify = notify.Noop{}
	}
	if c.Tokens == nil {
		c.Tokens = &screepsapi.TokenStore{}
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = DefaultRateLimitBackoff
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Handler is the foreground's view of the network session. Send and Poll
// never block. A session that exited or crashed is restarted by the next
// Send, carrying over its undelivered events and requests.
type Handler struct {
	cfg      Config
	client   *screepsapi.Client
	settings *settingsCell
	logger   *slog.Logger

	mu      sync.Mutex
	latest  domain.ConnectionSettings
	session *session
}

var _ ports.Connection = (*Handler)(nil)

func NewHandler(cfg Config) *Handler {
	cfg = cfg.withDefaults()
	return &Handler{
		cfg:      cfg,
		client:   screepsapi.NewClient(cfg.HTTPClient, cfg.Tokens, cfg.Limiter),
		settings: newSettingsCell(cfg.Settings),
		logger:   cfg.Logger.With(slog.String("component", "network")),
		latest:   cfg.Settings,
	}
}

func (h *Handler) Tokens() *screepsapi.TokenStore {
	return h.cfg.Tokens
}

func (h *Handler) Send(req domain.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := req.(domain.ChangeSettingsRequest); ok {
		// Cleared before routing so no executor reuses the previous
		// account's token, even while older requests are still in flight.
		if !h.latest.CredentialsEqual(r.Settings) {
			h.cfg.Tokens.Clear()
			h.logger.Debug("credentials changed, token cleared")
		}
		h.latest = r.Settings
	}

	if h.session != nil && h.session.inbox.push(req) {
		return
	}

	h.restart(req)
}

// Poll returns the next event. When the session has exited and every event
// has been delivered, the handler becomes disconnected.
func (h *Handler) Poll() (domain.NetworkEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session == nil {
		return nil, false
	}

	evt, ok, closed := h.session.events.tryPop()
	if ok {
		return evt, true
	}
	if closed {
		leftover := h.session.inbox.drain()
		h.session = nil
		if len(leftover) > 0 {
			h.logger.Info("restarting session with undelivered requests", slog.Int("requests", len(leftover)))
			h.restart(leftover...)
		}
	}
	return nil, false
}

// Close asks the session to exit and waits for it.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	s := h.session
	if s != nil {
		s.inbox.push(domain.ExitRequest{})
	}
	h.mu.Unlock()

	if s == nil {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("close network session: %w", ctx.Err())
	}
}

func (h *Handler) restart(reqs ...domain.Request) {
	old := h.session
	next := newSession()

	if old != nil {
		h.logger.Warn("network session stopped, restarting")
		for _, evt := range old.events.drain() {
			next.events.push(evt)
		}
		for _, pending := range old.inbox.drain() {
			next.inbox.push(pending)
		}
	}
	for _, req := range reqs {
		next.inbox.push(req)
	}

	h.settings.store(h.latest)
	h.session = next
	go next.run(h.cfg, h.client, h.settings, h.latest, h.logger)
}

// kill stops the session as if it had crashed.
func (h *Handler) kill() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	h.session.cancel()
	return h.session.done
}
