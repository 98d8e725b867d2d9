package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/adapters/sockjs"
	"github.com/bnema/screeps-cli/internal/domain"
)

// wsReader owns the read side of one connection.
type wsReader struct {
	live   *wsConnection
	raw    chan<- rawMessage
	tokens *screepsapi.TokenStore
	out    emitter
	logger *slog.Logger
}

func (r wsReader) run(ctx context.Context) {
	conn := r.live.conn
	conn.SetPingHandler(func(data string) error {
		r.queue(ctx, rawMessage{connID: r.live.id, kind: rawPong, data: []byte(data)})
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if r.live.closing.Load() || ctx.Err() != nil {
				return
			}
			r.out.emit(domain.WebsocketErrorEvent{Err: fmt.Errorf("read websocket: %w", err)})
			r.queue(ctx, rawMessage{connID: r.live.id, kind: rawConnectionLost})
			return
		}

		frame, err := sockjs.ParseFrame(string(data))
		if err != nil {
			r.out.emit(domain.WebsocketParseErrorEvent{Err: err})
			continue
		}

		switch frame.Kind {
		case sockjs.FrameOpen, sockjs.FrameHeartbeat:
			continue
		case sockjs.FrameClose:
			r.out.emit(domain.WebsocketErrorEvent{Err: fmt.Errorf("server closed socket: %d %s", frame.CloseCode, frame.CloseReason)})
			r.queue(ctx, rawMessage{connID: r.live.id, kind: rawConnectionLost})
			return
		case sockjs.FrameMessages:
			for _, raw := range frame.Messages {
				r.dispatch(raw)
			}
		}
	}
}

func (r wsReader) dispatch(raw string) {
	msg, err := sockjs.ParseMessage(raw)
	if err != nil {
		r.out.emit(domain.WebsocketParseErrorEvent{Err: err})
		return
	}

	switch m := msg.(type) {
	case sockjs.MapViewUpdate:
		r.out.emit(domain.MapViewEvent{Room: m.Room, Update: m.Update})
	case sockjs.RoomUpdate:
		r.out.emit(domain.RoomViewEvent{Room: m.Room, Update: m.Update})
	case sockjs.AuthOK:
		if r.live.closing.Load() || !r.tokens.SetAt(r.live.epoch, m.Token) {
			r.logger.Debug("dropping token from superseded connection")
			return
		}
		r.logger.Debug("websocket token refreshed")
	case sockjs.AuthFailed:
		r.out.emit(domain.WebsocketHTTPErrorEvent{Err: domain.ErrUnauthorized})
	case sockjs.ChannelUpdate:
		r.logger.Debug("ignoring channel update", slog.String("channel", m.Channel))
	default:
		r.logger.Debug("ignoring server message", slog.String("message", fmt.Sprintf("%T", msg)))
	}
}

func (r wsReader) queue(ctx context.Context, msg rawMessage) {
	select {
	case r.raw <- msg:
	case <-ctx.Done():
	}
}
