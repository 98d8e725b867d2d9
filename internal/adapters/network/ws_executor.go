package network

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bnema/screeps-cli/internal/adapters/screepsapi"
	"github.com/bnema/screeps-cli/internal/adapters/sockjs"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/version"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 30 * time.Second
	writeTimeout            = 10 * time.Second
)

type wsState int

const (
	wsNoConnection wsState = iota
	wsConnecting
	wsAuthenticating
	wsAuthenticated
)

func (s wsState) String() string {
	switch s {
	case wsNoConnection:
		return "no_connection"
	case wsConnecting:
		return "connecting"
	case wsAuthenticating:
		return "authenticating"
	case wsAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

var errAuthFailed = errors.New("websocket authentication failed")

type rawKind int

const (
	rawPong rawKind = iota
	rawConnectionLost
)

// rawMessage is queued by a reader for the executor. Messages whose
// connID no longer matches the live connection are dropped.
type rawMessage struct {
	connID uint64
	kind   rawKind
	data   []byte
}

type wsConnection struct {
	id      uint64
	conn    *websocket.Conn
	epoch   uint64
	closing atomic.Bool
}

// wsExecutor owns the socket write side and the subscription state. Only its
// own goroutine touches these fields.
type wsExecutor struct {
	queue            *mailbox[domain.Request]
	settings         domain.ConnectionSettings
	client           *screepsapi.Client
	dialer           *websocket.Dialer
	out              emitter
	handshakeTimeout time.Duration
	logger           *slog.Logger
	spawn            func(name string, fn func())

	state  wsState
	live   *wsConnection
	nextID uint64
	raw    chan rawMessage

	wantMap       map[domain.RoomName]struct{}
	wantMapOrder  []domain.RoomName
	wantFocus     *domain.RoomName
	subscribedMap map[domain.RoomName]struct{}
	subscribedFoc *domain.RoomName
}

func (e *wsExecutor) run(ctx context.Context) {
	e.raw = make(chan rawMessage, 16)
	e.subscribedMap = map[domain.RoomName]struct{}{}
	e.wantMap = map[domain.RoomName]struct{}{}
	defer e.disconnect()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.raw:
			e.handleRaw(msg)
		case <-e.queue.ready:
			for {
				req, ok, closed := e.queue.tryPop()
				if closed {
					return
				}
				if !ok {
					break
				}
				if !e.handle(ctx, req) {
					return
				}
			}
		}
	}
}

// handle reports false when the executor should stop.
func (e *wsExecutor) handle(ctx context.Context, req domain.Request) bool {
	switch r := req.(type) {
	case domain.SetMapSubscribesRequest:
		e.wantMapOrder = r.Rooms.Rooms()
		e.wantMap = make(map[domain.RoomName]struct{}, len(e.wantMapOrder))
		for _, room := range e.wantMapOrder {
			e.wantMap[room] = struct{}{}
		}
		e.reconcile(ctx)
	case domain.SetFocusRoomRequest:
		e.wantFocus = r.Room
		e.reconcile(ctx)
	case domain.ChangeSettingsRequest:
		// Handler.Send has already cleared the token if the credentials
		// changed.
		e.settings = r.Settings
		e.disconnect()
	case domain.ExitRequest:
		return false
	default:
		e.logger.Warn("unexpected request for websocket executor", slog.String("request", domain.RequestName(req)))
	}
	return true
}

// reconcile brings the server-side subscriptions in line with the wanted
// ones: new subscriptions first, then stale ones are dropped. Local state
// changes only after each command is written.
func (e *wsExecutor) reconcile(ctx context.Context) {
	if err := e.ensureConnected(ctx); err != nil {
		e.logger.Warn("websocket connect failed", slog.Any("error", err))
		return
	}

	shard := e.settings.Shard
	for _, room := range e.wantMapOrder {
		if _, ok := e.subscribedMap[room]; ok {
			continue
		}
		if err := e.write(sockjs.SubscribeCommand(sockjs.MapViewChannel(shard, room))); err != nil {
			return
		}
		e.subscribedMap[room] = struct{}{}
	}

	stale := slices.SortedFunc(maps.Keys(e.subscribedMap), compareRooms)
	for _, room := range stale {
		if _, ok := e.wantMap[room]; ok {
			continue
		}
		if err := e.write(sockjs.UnsubscribeCommand(sockjs.MapViewChannel(shard, room))); err != nil {
			return
		}
		delete(e.subscribedMap, room)
	}

	if sameRoom(e.subscribedFoc, e.wantFocus) {
		return
	}
	if e.subscribedFoc != nil {
		if err := e.write(sockjs.UnsubscribeCommand(sockjs.RoomChannel(shard, *e.subscribedFoc))); err != nil {
			return
		}
		e.subscribedFoc = nil
	}
	if e.wantFocus != nil {
		if err := e.write(sockjs.SubscribeCommand(sockjs.RoomChannel(shard, *e.wantFocus))); err != nil {
			return
		}
		focus := *e.wantFocus
		e.subscribedFoc = &focus
	}
}

func (e *wsExecutor) ensureConnected(ctx context.Context) error {
	if e.state == wsAuthenticated && e.live != nil {
		return nil
	}

	e.state = wsConnecting
	conn, epoch, err := e.connect(ctx)
	if err != nil {
		e.state = wsNoConnection
		return err
	}

	e.nextID++
	live := &wsConnection{id: e.nextID, conn: conn, epoch: epoch}
	e.live = live
	e.state = wsAuthenticated
	e.subscribedMap = map[domain.RoomName]struct{}{}
	e.subscribedFoc = nil

	reader := wsReader{
		live:   live,
		raw:    e.raw,
		tokens: e.client.Tokens,
		out:    e.out,
		logger: e.logger.With(slog.Uint64("connection", live.id)),
	}
	e.spawn("websocket reader", func() { reader.run(ctx) })
	e.logger.Debug("websocket authenticated", slog.Uint64("connection", live.id))
	return nil
}

func (e *wsExecutor) connect(ctx context.Context) (*websocket.Conn, uint64, error) {
	current, err := ensureToken(ctx, e.client, e.settings)
	if err != nil {
		e.out.emit(domain.WebsocketHTTPErrorEvent{Err: err})
		return nil, 0, fmt.Errorf("obtain websocket token: %w", err)
	}

	endpoint, err := sockjs.SocketURL(e.settings.APIURL)
	if err != nil {
		e.out.emit(domain.WebsocketErrorEvent{Err: err})
		return nil, 0, err
	}

	conn, resp, err := e.dialer.DialContext(ctx, endpoint, http.Header{"User-Agent": {version.UserAgent()}})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		e.out.emit(domain.WebsocketErrorEvent{Err: err})
		return nil, 0, fmt.Errorf("dial websocket: %w", err)
	}

	e.state = wsAuthenticating
	newToken, err := e.authenticate(ctx, conn, current.token)
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, errAuthFailed) {
			e.client.Tokens.CompareAndClear(current.token)
			e.out.emit(domain.WebsocketHTTPErrorEvent{Err: fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)})
		} else {
			e.out.emit(domain.WebsocketErrorEvent{Err: err})
		}
		return nil, 0, err
	}

	if newToken != "" && !e.client.Tokens.SetAt(current.epoch, newToken) {
		_ = conn.Close()
		err := errors.New("credentials changed during websocket auth")
		e.out.emit(domain.WebsocketErrorEvent{Err: err})
		return nil, 0, err
	}
	return conn, current.epoch, nil
}

// authenticate sends the auth command and reads frames until the server
// accepts or rejects it. Pings are answered directly while waiting.
func (e *wsExecutor) authenticate(ctx context.Context, conn *websocket.Conn, token string) (string, error) {
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	if err := writeCommand(conn, sockjs.AuthCommand(token)); err != nil {
		return "", fmt.Errorf("send auth command: %w", err)
	}

	deadline := time.Now().Add(e.handshakeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("set handshake deadline: %w", err)
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read auth response: %w", err)
		}

		frame, err := sockjs.ParseFrame(string(data))
		if err != nil {
			e.logger.Debug("ignoring unparsable frame during auth", slog.Any("error", err))
			continue
		}
		if frame.Kind == sockjs.FrameClose {
			return "", fmt.Errorf("server closed socket during auth: %d %s", frame.CloseCode, frame.CloseReason)
		}

		for _, raw := range frame.Messages {
			msg, err := sockjs.ParseMessage(raw)
			if err != nil {
				e.logger.Debug("ignoring unparsable message during auth", slog.Any("error", err))
				continue
			}
			switch m := msg.(type) {
			case sockjs.AuthOK:
				return m.Token, nil
			case sockjs.AuthFailed:
				return "", errAuthFailed
			default:
				e.logger.Debug("ignoring message during auth", slog.String("message", fmt.Sprintf("%T", msg)))
			}
		}
	}
}

func (e *wsExecutor) write(command string) error {
	if e.live == nil {
		return errors.New("websocket not connected")
	}

	if err := writeCommand(e.live.conn, command); err != nil {
		e.out.emit(domain.WebsocketErrorEvent{Err: err})
		e.disconnect()
		return err
	}
	return nil
}

func writeCommand(conn *websocket.Conn, command string) error {
	data, err := sockjs.EncodeCommands(command)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write websocket command: %w", err)
	}
	return nil
}

func (e *wsExecutor) handleRaw(msg rawMessage) {
	if e.live == nil || msg.connID != e.live.id {
		return
	}

	switch msg.kind {
	case rawPong:
		if err := e.live.conn.WriteControl(websocket.PongMessage, msg.data, time.Now().Add(writeTimeout)); err != nil {
			e.logger.Debug("write pong", slog.Any("error", err))
		}
	case rawConnectionLost:
		e.logger.Info("websocket connection lost", slog.Uint64("connection", msg.connID))
		e.disconnect()
	}
}

// disconnect drops the live connection. The next subscription change
// reconnects and replays the wanted subscriptions.
func (e *wsExecutor) disconnect() {
	if e.live != nil {
		e.live.closing.Store(true)
		_ = e.live.conn.Close()
		e.live = nil
	}
	e.state = wsNoConnection
	e.subscribedMap = map[domain.RoomName]struct{}{}
	e.subscribedFoc = nil
}

func sameRoom(a, b *domain.RoomName) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func compareRooms(a, b domain.RoomName) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}
