package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports"
)

const (
	loginTimeout     = 90 * time.Second
	myInfoTTL        = 10 * time.Minute
	myInfoTimeout    = 90 * time.Second
	shardListTTL     = 6 * time.Hour
	shardListTimeout = 90 * time.Second
	terrainTTL       = 6 * time.Hour
	terrainTimeout   = 30 * time.Second
	viewRoomsRetry   = 90 * time.Second
)

type LoginState int

const (
	NotLoggedIn LoginState = iota
	TryingToLogin
	LoggedIn
)

func (s LoginState) String() string {
	switch s {
	case NotLoggedIn:
		return "not logged in"
	case TryingToLogin:
		return "logging in"
	case LoggedIn:
		return "logged in"
	default:
		return "unknown"
	}
}

type ErrorKind int

const (
	ErrorNotLoggedIn ErrorKind = iota
	ErrorOccurred
	ErrorWebsocket
	ErrorWebsocketParse
	ErrorRoomView
)

// ErrorEvent is a failure reported to the foreground while ingesting events.
type ErrorEvent struct {
	Kind ErrorKind
	Err  error
}

func (e ErrorEvent) Error() string {
	if e.Kind == ErrorNotLoggedIn {
		return "network request needs a login: " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e ErrorEvent) Unwrap() error {
	return e.Err
}

func requestError(err error) ErrorEvent {
	if errors.Is(err, domain.ErrNoToken) || errors.Is(err, domain.ErrUnauthorized) {
		return ErrorEvent{Kind: ErrorNotLoggedIn, Err: err}
	}
	return ErrorEvent{Kind: ErrorOccurred, Err: err}
}

// TerrainEntry is a fetched terrain. Grid is nil for rooms the server does
// not know.
type TerrainEntry struct {
	FetchedAt time.Time
	Grid      *domain.TerrainGrid
}

type MapViewEntry struct {
	FetchedAt time.Time
	Update    domain.MapViewUpdate
}

// DetailView holds the objects of the single focused room. Each object is
// kept as its top level JSON fields so updates can be merged field by field.
type DetailView struct {
	Room     domain.RoomName
	GameTime int64
	Objects  map[string]map[string]json.RawMessage
	Users    map[string]json.RawMessage
}

type MapCache struct {
	Terrain  map[domain.RoomName]TerrainEntry
	MapViews map[domain.RoomName]MapViewEntry
	Detail   *DetailView
}

func newMapCache() *MapCache {
	return &MapCache{
		Terrain:  map[domain.RoomName]TerrainEntry{},
		MapViews: map[domain.RoomName]MapViewEntry{},
	}
}

// MemCache is the foreground's view of network state. It is not safe for
// concurrent use; the frame loop owns it.
type MemCache struct {
	clock  ports.Clock
	logger *slog.Logger

	settings *domain.ConnectionSettings
	login    TimeoutValue[string]
	myInfo   TimeoutValue[domain.MyInfo]
	shards   TimeoutValue[[]domain.ShardInfo]
	rooms    *MapCache

	requestedRooms map[domain.RoomName]time.Time
	lastRooms      *domain.SelectedRooms
	lastFocus      *domain.RoomName
}

func NewMemCache(clock ports.Clock, logger *slog.Logger) *MemCache {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &MemCache{
		clock:          clock,
		logger:         logger.With(slog.String("component", "memcache")),
		rooms:          newMapCache(),
		requestedRooms: map[domain.RoomName]time.Time{},
	}
}

func (c *MemCache) LoginState() LoginState {
	if _, ok := c.login.Get(); ok {
		return LoggedIn
	}
	if c.login.ShouldRequest(c.clock.Now(), nil, loginTimeout) {
		return NotLoggedIn
	}
	return TryingToLogin
}

// Username is the name the last successful login used.
func (c *MemCache) Username() (string, bool) {
	return c.login.Get()
}

func (c *MemCache) Rooms() *MapCache {
	return c.rooms
}

// Align ingests every pending event from conn and returns a view that can
// issue requests through it. onError and onEvent may be nil.
func (c *MemCache) Align(conn ports.Connection, onError func(ErrorEvent), onEvent func(domain.NetworkEvent)) *NetworkedMemCache {
	if onError == nil {
		onError = func(ErrorEvent) {}
	}

	for {
		evt, ok := conn.Poll()
		if !ok {
			break
		}
		c.logger.Debug("network event", slog.String("event", fmt.Sprintf("%T", evt)))
		if onEvent != nil {
			onEvent(evt)
		}
		if errEvt, failed := c.apply(evt); failed {
			if errEvt.Kind == ErrorNotLoggedIn {
				c.login.Reset()
			}
			onError(errEvt)
		}
	}

	return &NetworkedMemCache{cache: c, conn: conn, onError: onError}
}

func (c *MemCache) apply(evt domain.NetworkEvent) (ErrorEvent, bool) {
	now := c.clock.Now()

	switch e := evt.(type) {
	case domain.LoginEvent:
		if err := c.login.Event(now, e.Username, e.Err); err != nil {
			return requestError(err), true
		}
	case domain.MyInfoEvent:
		if err := c.myInfo.Event(now, e.Info, e.Err); err != nil {
			return requestError(err), true
		}
		// The network session logs in on its own when a token is missing.
		if _, ok := c.login.Get(); !ok {
			_ = c.login.Event(now, e.Info.Username, nil)
		}
	case domain.ShardListEvent:
		if err := c.shards.Event(now, e.Shards, e.Err); err != nil {
			return requestError(err), true
		}
	case domain.RoomTerrainEvent:
		delete(c.requestedRooms, e.Room)
		switch {
		case errors.Is(e.Err, domain.ErrInvalidRoom):
			c.rooms.Terrain[e.Room] = TerrainEntry{FetchedAt: now}
		case e.Err != nil:
			return requestError(e.Err), true
		default:
			grid := e.Terrain
			c.rooms.Terrain[e.Room] = TerrainEntry{FetchedAt: now, Grid: &grid}
		}
	case domain.MapViewEvent:
		c.rooms.MapViews[e.Room] = MapViewEntry{FetchedAt: now, Update: e.Update}
	case domain.RoomViewEvent:
		if err := c.rooms.mergeRoomView(e.Room, e.Update); err != nil {
			return ErrorEvent{Kind: ErrorRoomView, Err: err}, true
		}
	case domain.WebsocketErrorEvent:
		return ErrorEvent{Kind: ErrorWebsocket, Err: e.Err}, true
	case domain.WebsocketHTTPErrorEvent:
		return requestError(e.Err), true
	case domain.WebsocketParseErrorEvent:
		return ErrorEvent{Kind: ErrorWebsocketParse, Err: e.Err}, true
	default:
		c.logger.Warn("unhandled network event", slog.String("event", fmt.Sprintf("%T", evt)))
	}

	return ErrorEvent{}, false
}

// mergeRoomView applies an update to the detail view. An update for another
// room replaces the view; a null object removes it; fields of an existing
// object are overwritten one by one.
func (m *MapCache) mergeRoomView(room domain.RoomName, update domain.RoomUpdate) error {
	if m.Detail == nil || m.Detail.Room != room {
		view := &DetailView{
			Room:     room,
			GameTime: update.GameTime,
			Objects:  make(map[string]map[string]json.RawMessage, len(update.Objects)),
			Users:    map[string]json.RawMessage{},
		}
		for id, raw := range update.Objects {
			if isNull(raw) {
				continue
			}
			fields, err := decodeObject(room, id, raw)
			if err != nil {
				return err
			}
			view.Objects[id] = fields
		}
		for id, raw := range update.Users {
			view.Users[id] = raw
		}
		m.Detail = view
		return nil
	}

	view := m.Detail
	if update.GameTime != 0 {
		view.GameTime = update.GameTime
	}
	for id, raw := range update.Objects {
		if isNull(raw) {
			delete(view.Objects, id)
			continue
		}

		fields, err := decodeObject(room, id, raw)
		if err != nil {
			return err
		}
		existing, ok := view.Objects[id]
		if !ok {
			view.Objects[id] = fields
			continue
		}
		for key, value := range fields {
			if isNull(value) {
				delete(existing, key)
				continue
			}
			existing[key] = value
		}
	}
	for id, raw := range update.Users {
		if isNull(raw) {
			delete(view.Users, id)
			continue
		}
		view.Users[id] = raw
	}
	return nil
}

func decodeObject(room domain.RoomName, id string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("object %s in room %s did not parse: %w", id, room, err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// NetworkedMemCache is a MemCache bound to a connection for one frame.
type NetworkedMemCache struct {
	cache   *MemCache
	conn    ports.Connection
	onError func(ErrorEvent)
}

func (n *NetworkedMemCache) LoginState() LoginState {
	return n.cache.LoginState()
}

func (n *NetworkedMemCache) Login() {
	n.conn.Send(domain.LoginRequest{})
	n.cache.login.Requested(n.cache.clock.Now())
}

// UpdateSettings hands new settings to the network session. Cached state
// that belongs to the previous account or server is dropped, and the next
// ViewRooms call subscribes again.
func (n *NetworkedMemCache) UpdateSettings(settings domain.ConnectionSettings) {
	c := n.cache
	previous := c.settings

	if previous == nil || !previous.CredentialsEqual(settings) {
		c.login.Reset()
		c.myInfo.Reset()
	}
	if previous == nil || previous.ServerKey() != settings.ServerKey() {
		c.shards.Reset()
	}
	if previous == nil || previous.ServerKey() != settings.ServerKey() || previous.Shard != settings.Shard {
		c.rooms = newMapCache()
		c.requestedRooms = map[domain.RoomName]time.Time{}
	}
	c.lastRooms = nil
	c.lastFocus = nil
	c.settings = &settings

	n.conn.Send(domain.ChangeSettingsRequest{Settings: settings})
}

func (n *NetworkedMemCache) MyInfo() (domain.MyInfo, bool) {
	now := n.cache.clock.Now()
	if n.cache.myInfo.ShouldRequest(now, ttl(myInfoTTL), myInfoTimeout) {
		n.conn.Send(domain.MyInfoRequest{})
		n.cache.myInfo.Requested(now)
	}
	return n.cache.myInfo.Get()
}

// ShardList returns a nil slice for servers without shards.
func (n *NetworkedMemCache) ShardList() ([]domain.ShardInfo, bool) {
	now := n.cache.clock.Now()
	if n.cache.shards.ShouldRequest(now, ttl(shardListTTL), shardListTimeout) {
		n.conn.Send(domain.ShardListRequest{})
		n.cache.shards.Requested(now)
	}
	return n.cache.shards.Get()
}

func (n *NetworkedMemCache) RoomTerrain(room domain.RoomName) (TerrainEntry, bool) {
	c := n.cache
	now := c.clock.Now()

	entry, ok := c.rooms.Terrain[room]
	if ok && entry.FetchedAt.Add(terrainTTL).After(now) {
		return entry, true
	}
	if sent, pending := c.requestedRooms[room]; pending && sent.Add(terrainTimeout).After(now) {
		return entry, ok
	}

	n.conn.Send(domain.RoomTerrainRequest{Room: room})
	c.requestedRooms[room] = now
	return entry, ok
}

// ViewRooms requests terrain for every visible room that has none, and
// updates the map and focus subscriptions when they changed since the last
// call. A terrain request without an answer is repeated after 90 seconds.
func (n *NetworkedMemCache) ViewRooms(rooms domain.SelectedRooms, focus *domain.RoomName) *MapCache {
	c := n.cache
	now := c.clock.Now()

	for _, room := range rooms.Rooms() {
		if _, ok := c.rooms.Terrain[room]; ok {
			continue
		}
		if sent, pending := c.requestedRooms[room]; pending && sent.Add(viewRoomsRetry).After(now) {
			continue
		}
		n.conn.Send(domain.RoomTerrainRequest{Room: room})
		c.requestedRooms[room] = now
	}

	if c.lastRooms == nil || *c.lastRooms != rooms {
		n.conn.Send(domain.SetMapSubscribesRequest{Rooms: rooms})
		selected := rooms
		c.lastRooms = &selected
	}

	if !sameFocus(c.lastFocus, focus) {
		var wanted *domain.RoomName
		if focus != nil {
			room := *focus
			wanted = &room
		}
		n.conn.Send(domain.SetFocusRoomRequest{Room: wanted})
		c.lastFocus = wanted
	}

	return c.rooms
}

func sameFocus(a, b *domain.RoomName) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
