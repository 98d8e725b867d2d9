package network

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/domain"
)

// session is one lifetime of the background network goroutines. Cancelling
// its context drops every in-flight request.
type session struct {
	inbox  *mailbox[domain.Request]
	events *mailbox[domain.NetworkEvent]
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func newSession() *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		inbox:  newMailbox[domain.Request](),
		events: newMailbox[domain.NetworkEvent](),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *session) run(cfg Config, client *screepsapi.Client, settings *settingsCell, initial domain.ConnectionSettings, logger *slog.Logger) {
	graceful := false
	defer func() {
		s.inbox.close()
		if graceful {
			s.wg.Wait()
		}
		s.cancel()
		s.events.close()
		close(s.done)
		if err := cfg.Notify.Wakeup(); err != nil {
			logger.Debug("wake foreground after session exit", slog.Any("error", err))
		}
	}()
	defer s.recoverPanic(logger, "session")

	out := emitter{events: s.events, notify: cfg.Notify, logger: logger}
	httpQueue := newMailbox[domain.Request]()
	wsQueue := newMailbox[domain.Request]()

	pool := &httpPool{
		size:       cfg.PoolSize,
		queue:      httpQueue,
		settings:   settings,
		client:     client,
		cache:      cfg.Cache,
		out:        out,
		backoff:    cfg.RateLimitBackoff,
		maxRetries: cfg.MaxRateLimitRetries,
		logger:     logger.With(slog.String("executor", "http")),
		spawn:      s.spawn(logger),
	}
	ws := &wsExecutor{
		queue:            wsQueue,
		settings:         initial,
		client:           client,
		dialer:           cfg.Dialer,
		out:              out,
		handshakeTimeout: cfg.HandshakeTimeout,
		logger:           logger.With(slog.String("executor", "websocket")),
		spawn:            s.spawn(logger),
	}

	spawn := s.spawn(logger)
	spawn("http pool", func() { pool.run(s.ctx) })
	spawn("websocket executor", func() { ws.run(s.ctx) })

	for {
		req, err := s.inbox.pop(s.ctx)
		if err != nil {
			return
		}

		httpReq, wsReq := domain.Route(req)
		if httpReq != nil {
			httpQueue.push(httpReq)
		}
		if wsReq != nil {
			wsQueue.push(wsReq)
		}

		if _, ok := req.(domain.ExitRequest); ok {
			logger.Debug("network session exiting")
			graceful = true
			return
		}
	}
}

// spawn starts fn on its own goroutine. A panic in fn is logged and tears
// the whole session down so the handler restarts it.
func (s *session) spawn(logger *slog.Logger) func(name string, fn func()) {
	return func(name string, fn func()) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.recoverPanic(logger, name)
			fn()
		}()
	}
}

func (s *session) recoverPanic(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("network goroutine panicked",
			slog.String("goroutine", name),
			slog.Any("error", fmt.Errorf("%v", r)),
			slog.String("stack", string(debug.Stack())),
		)
		s.cancel()
	}
}
