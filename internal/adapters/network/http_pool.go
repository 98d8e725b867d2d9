package network

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
)

const cacheWriteTimeout = 30 * time.Second

// httpExecutor is a pool slot. Holding one is the permission to run exactly
// one HTTP request.
type httpExecutor struct {
	id         int
	generation int
}

type httpPool struct {
	size       int
	executors  chan httpExecutor
	generation int

	queue      *mailbox[domain.Request]
	settings   *settingsCell
	client     *screepsapi.Client
	cache      ports.TerrainCache
	out        emitter
	backoff    time.Duration
	maxRetries int
	logger     *slog.Logger
	spawn      func(name string, fn func())
}

func (p *httpPool) fill() {
	for i := range p.size {
		p.executors <- httpExecutor{id: i, generation: p.generation}
	}
}

// run pairs each queued request with a free executor. Requests wait in the
// queue while every executor is busy.
func (p *httpPool) run(ctx context.Context) {
	p.executors = make(chan httpExecutor, p.size)
	p.fill()

	for {
		req, err := p.queue.pop(ctx)
		if err != nil {
			return
		}

		switch r := req.(type) {
		case domain.ExitRequest:
			p.drain(ctx)
			return
		case domain.ChangeSettingsRequest:
			p.changeSettings(ctx, r.Settings)
			continue
		}

		var exec httpExecutor
		select {
		case <-ctx.Done():
			return
		case exec = <-p.executors:
		}

		p.spawn("http executor", func() {
			p.execute(ctx, exec, req)
		})
	}
}

func (p *httpPool) execute(ctx context.Context, exec httpExecutor, req domain.Request) {
	settings := p.settings.load()
	logger := p.logger.With(slog.Int("executor", exec.id), slog.String("request", domain.RequestName(req)))

	var evt domain.NetworkEvent
	for attempt := 0; ; attempt++ {
		evt = p.handle(ctx, settings, req)
		if !domain.IsRateLimited(domain.EventError(evt)) {
			break
		}
		if p.maxRetries > 0 && attempt >= p.maxRetries {
			logger.Warn("rate limit retries exhausted", slog.Int("attempts", attempt+1))
			break
		}

		logger.Info("rate limited, backing off", slog.Duration("backoff", p.backoff))
		timer := time.NewTimer(p.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.release(exec)
			return
		case <-timer.C:
		}
	}

	if evt != nil {
		p.out.emit(evt)
	}
	p.release(exec)
}

func (p *httpPool) release(exec httpExecutor) {
	select {
	case p.executors <- exec:
	default:
		p.logger.Warn("return executor to pool", slog.Int("executor", exec.id), slog.Int("generation", exec.generation))
	}
}

func (p *httpPool) handle(ctx context.Context, settings domain.ConnectionSettings, req domain.Request) domain.NetworkEvent {
	switch r := req.(type) {
	case domain.LoginRequest:
		err := p.client.Login(ctx, settings)
		return domain.LoginEvent{Username: settings.Username, Err: err}
	case domain.MyInfoRequest:
		info, err := executeOrLogin(ctx, p.client, settings, func(ctx context.Context) (domain.MyInfo, error) {
			return p.client.MyInfo(ctx, settings)
		})
		return domain.MyInfoEvent{Info: info, Err: err}
	case domain.ShardListRequest:
		shards, err := p.client.ShardList(ctx, settings)
		return domain.ShardListEvent{Shards: shards, Err: err}
	case domain.RoomTerrainRequest:
		return p.roomTerrain(ctx, settings, r.Room)
	default:
		p.logger.Warn("unexpected request for http pool", slog.String("request", domain.RequestName(req)))
		return nil
	}
}

func (p *httpPool) roomTerrain(ctx context.Context, settings domain.ConnectionSettings, room domain.RoomName) domain.NetworkEvent {
	server := settings.ServerKey()
	if p.cache != nil {
		grid, found, err := p.cache.GetTerrain(ctx, server, settings.Shard, room)
		switch {
		case err != nil:
			p.logger.Warn("read terrain cache", slog.String("room", room.String()), slog.Any("error", err))
		case found:
			return domain.RoomTerrainEvent{Room: room, Terrain: grid}
		}
	}

	grid, err := p.client.RoomTerrain(ctx, settings, room)
	if err != nil {
		return domain.RoomTerrainEvent{Room: room, Err: err}
	}

	if p.cache != nil {
		p.spawn("terrain cache write", func() {
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
			defer cancel()
			if err := p.cache.SetTerrain(writeCtx, server, settings.Shard, room, grid); err != nil {
				p.logger.Warn("write terrain cache", slog.String("room", room.String()), slog.Any("error", err))
			}
		})
	}

	return domain.RoomTerrainEvent{Room: room, Terrain: grid}
}

// changeSettings waits for every in-flight request of the current
// generation, swaps the settings, then refills the pool. Tokens were already
// invalidated by Handler.Send.
func (p *httpPool) changeSettings(ctx context.Context, settings domain.ConnectionSettings) {
	if !p.drain(ctx) {
		return
	}

	p.settings.store(settings)

	p.generation++
	p.fill()
	p.logger.Debug("settings changed", slog.Int("generation", p.generation), slog.String("settings", settings.String()))
}

func (p *httpPool) drain(ctx context.Context) bool {
	for range p.size {
		select {
		case <-ctx.Done():
			return false
		case <-p.executors:
		}
	}
	return true
}
