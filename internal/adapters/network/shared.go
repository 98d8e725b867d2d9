package network

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
)

type settingsCell struct {
	current atomic.Pointer[domain.ConnectionSettings]
}

func newSettingsCell(settings domain.ConnectionSettings) *settingsCell {
	cell := &settingsCell{}
	cell.store(settings)
	return cell
}

func (c *settingsCell) load() domain.ConnectionSettings {
	return *c.current.Load()
}

func (c *settingsCell) store(settings domain.ConnectionSettings) {
	c.current.Store(&settings)
}

// emitter publishes events to the foreground and wakes it up.
type emitter struct {
	events *mailbox[domain.NetworkEvent]
	notify ports.Notify
	logger *slog.Logger
}

func (e emitter) emit(evt domain.NetworkEvent) {
	if !e.events.push(evt) {
		e.logger.Debug("dropping event for closed session", slog.String("event", eventName(evt)))
		return
	}

	if err := e.notify.Wakeup(); err != nil && !errors.Is(err, ports.ErrDisconnected) {
		e.logger.Warn("wake foreground", slog.Any("error", err))
	}
}

// executeOrLogin runs call and, when no token is available, logs in with the
// given settings and runs it once more. A failed login is returned as the
// call's error.
func executeOrLogin[T any](ctx context.Context, client *screepsapi.Client, settings domain.ConnectionSettings, call func(context.Context) (T, error)) (T, error) {
	result, err := call(ctx)
	if !errors.Is(err, domain.ErrNoToken) {
		return result, err
	}

	if loginErr := client.Login(ctx, settings); loginErr != nil {
		var zero T
		return zero, loginErr
	}

	return call(ctx)
}

type epochToken struct {
	token string
	epoch uint64
}

func ensureToken(ctx context.Context, client *screepsapi.Client, settings domain.ConnectionSettings) (epochToken, error) {
	return executeOrLogin(ctx, client, settings, func(context.Context) (epochToken, error) {
		token, ok, epoch := client.Tokens.Current()
		if !ok {
			return epochToken{}, domain.ErrNoToken
		}
		return epochToken{token: token, epoch: epoch}, nil
	})
}

func eventName(evt domain.NetworkEvent) string {
	switch evt.(type) {
	case domain.LoginEvent:
		return "login"
	case domain.MyInfoEvent:
		return "my_info"
	case domain.ShardListEvent:
		return "shard_list"
	case domain.RoomTerrainEvent:
		return "room_terrain"
	case domain.MapViewEvent:
		return "map_view"
	case domain.RoomViewEvent:
		return "room_view"
	case domain.WebsocketErrorEvent:
		return "websocket_error"
	case domain.WebsocketHTTPErrorEvent:
		return "websocket_http_error"
	case domain.WebsocketParseErrorEvent:
		return "websocket_parse_error"
	default:
		return "unknown"
	}
}
