package application

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/bnema/screeps-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheHarness struct {
	cache  *MemCache
	conn   *mocks.MockConnection
	now    time.Time
	errors []ErrorEvent
}

func newCacheHarness(t *testing.T) *cacheHarness {
	t.Helper()

	h := &cacheHarness{
		conn: mocks.NewMockConnection(t),
		now:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().RunAndReturn(func() time.Time { return h.now }).Maybe()
	h.cache = NewMemCache(clock, nil)
	return h
}

func (h *cacheHarness) align(events ...domain.NetworkEvent) *NetworkedMemCache {
	for _, evt := range events {
		h.conn.EXPECT().Poll().Return(evt, true).Once()
	}
	h.conn.EXPECT().Poll().Return(nil, false).Once()

	return h.cache.Align(h.conn, func(e ErrorEvent) {
		h.errors = append(h.errors, e)
	}, nil)
}

func (h *cacheHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func mustRoom(t *testing.T, name string) domain.RoomName {
	t.Helper()

	room, err := domain.ParseRoomName(name)
	require.NoError(t, err)
	return room
}

func TestMemCacheLoginState(t *testing.T) {
	h := newCacheHarness(t)
	assert.Equal(t, NotLoggedIn, h.cache.LoginState())

	h.conn.EXPECT().Send(domain.LoginRequest{}).Once()
	h.align().Login()
	assert.Equal(t, TryingToLogin, h.cache.LoginState())

	h.advance(91 * time.Second)
	assert.Equal(t, NotLoggedIn, h.cache.LoginState())

	h.align(domain.LoginEvent{Username: "alice"})
	assert.Equal(t, LoggedIn, h.cache.LoginState())
	username, ok := h.cache.Username()
	require.True(t, ok)
	assert.Equal(t, "alice", username)
	assert.Empty(t, h.errors)
}

func TestMemCacheNotLoggedInResetsLogin(t *testing.T) {
	h := newCacheHarness(t)

	h.align(domain.LoginEvent{Username: "alice"})
	require.Equal(t, LoggedIn, h.cache.LoginState())

	h.align(domain.MyInfoEvent{Err: domain.ErrNoToken})
	require.Len(t, h.errors, 1)
	assert.Equal(t, ErrorNotLoggedIn, h.errors[0].Kind)
	assert.ErrorIs(t, h.errors[0], domain.ErrNoToken)
	assert.Equal(t, NotLoggedIn, h.cache.LoginState())
}

func TestMemCacheFailedLoginReportsError(t *testing.T) {
	h := newCacheHarness(t)

	h.conn.EXPECT().Send(domain.LoginRequest{}).Once()
	h.align().Login()

	failure := &domain.APIError{StatusCode: 401, Message: "unauthorized"}
	h.align(domain.LoginEvent{Username: "alice", Err: failure})

	require.Len(t, h.errors, 1)
	assert.Equal(t, ErrorNotLoggedIn, h.errors[0].Kind)
	assert.Equal(t, NotLoggedIn, h.cache.LoginState())
}

func TestMemCacheMyInfoPolicy(t *testing.T) {
	h := newCacheHarness(t)

	h.conn.EXPECT().Send(domain.MyInfoRequest{}).Once()
	_, ok := h.align().MyInfo()
	assert.False(t, ok)

	h.advance(30 * time.Second)
	_, ok = h.align().MyInfo()
	assert.False(t, ok)

	h.align(domain.MyInfoEvent{Info: domain.MyInfo{Username: "alice", CPU: 20}})
	info, ok := h.align().MyInfo()
	require.True(t, ok)
	assert.Equal(t, 20, info.CPU)
	assert.Equal(t, LoggedIn, h.cache.LoginState())

	h.advance(11 * time.Minute)
	h.conn.EXPECT().Send(domain.MyInfoRequest{}).Once()
	info, ok = h.align().MyInfo()
	require.True(t, ok)
	assert.Equal(t, "alice", info.Username)
}

func TestMemCacheMyInfoRetriesAfterTimeout(t *testing.T) {
	h := newCacheHarness(t)

	h.conn.EXPECT().Send(domain.MyInfoRequest{}).Twice()
	h.align().MyInfo()
	h.advance(91 * time.Second)
	h.align().MyInfo()
}

func TestMemCacheShardListWithoutShards(t *testing.T) {
	h := newCacheHarness(t)

	h.conn.EXPECT().Send(domain.ShardListRequest{}).Once()
	h.align().ShardList()

	h.align(domain.ShardListEvent{})
	shards, ok := h.align().ShardList()
	require.True(t, ok)
	assert.Nil(t, shards)

	h.advance(5 * time.Hour)
	_, ok = h.align().ShardList()
	assert.True(t, ok)
}

func TestMemCacheRoomTerrain(t *testing.T) {
	h := newCacheHarness(t)
	room := mustRoom(t, "E3N4")

	h.conn.EXPECT().Send(domain.RoomTerrainRequest{Room: room}).Once()
	_, ok := h.align().RoomTerrain(room)
	assert.False(t, ok)

	h.advance(10 * time.Second)
	_, ok = h.align().RoomTerrain(room)
	assert.False(t, ok)

	var grid domain.TerrainGrid
	grid[1][2] = domain.TerrainWall
	h.align(domain.RoomTerrainEvent{Room: room, Terrain: grid})

	entry, ok := h.align().RoomTerrain(room)
	require.True(t, ok)
	require.NotNil(t, entry.Grid)
	assert.Equal(t, domain.TerrainWall, entry.Grid[1][2])
}

func TestMemCacheInvalidRoomIsNotAnError(t *testing.T) {
	h := newCacheHarness(t)
	room := mustRoom(t, "W99S99")

	h.align(domain.RoomTerrainEvent{Room: room, Err: domain.ErrInvalidRoom})
	entry, ok := h.align().RoomTerrain(room)
	require.True(t, ok)
	assert.Nil(t, entry.Grid)
	assert.Empty(t, h.errors)
}

func TestMemCacheRoomTerrainFailureIsReported(t *testing.T) {
	h := newCacheHarness(t)
	room := mustRoom(t, "E1S1")

	h.align(domain.RoomTerrainEvent{Room: room, Err: errors.New("connection refused")})
	require.Len(t, h.errors, 1)
	assert.Equal(t, ErrorOccurred, h.errors[0].Kind)
}

func TestMemCacheViewRooms(t *testing.T) {
	h := newCacheHarness(t)
	rooms := domain.NewSelectedRooms(mustRoom(t, "E0S0"), mustRoom(t, "E1S0"))
	focus := mustRoom(t, "E1S0")

	h.conn.EXPECT().Send(domain.RoomTerrainRequest{Room: mustRoom(t, "E0S0")}).Once()
	h.conn.EXPECT().Send(domain.RoomTerrainRequest{Room: mustRoom(t, "E1S0")}).Once()
	h.conn.EXPECT().Send(domain.SetMapSubscribesRequest{Rooms: rooms}).Once()
	h.conn.EXPECT().Send(domain.SetFocusRoomRequest{Room: &focus}).Once()
	h.align().ViewRooms(rooms, &focus)

	h.advance(10 * time.Second)
	h.align(domain.RoomTerrainEvent{Room: mustRoom(t, "E0S0")})
	view := h.align().ViewRooms(rooms, &focus)
	assert.Contains(t, view.Terrain, mustRoom(t, "E0S0"))

	h.advance(90 * time.Second)
	h.conn.EXPECT().Send(domain.RoomTerrainRequest{Room: mustRoom(t, "E1S0")}).Once()
	h.align().ViewRooms(rooms, &focus)

	moved := domain.NewSelectedRooms(mustRoom(t, "E0S0"), mustRoom(t, "E0S0"))
	h.conn.EXPECT().Send(domain.SetMapSubscribesRequest{Rooms: moved}).Once()
	h.conn.EXPECT().Send(domain.SetFocusRoomRequest{}).Once()
	h.align().ViewRooms(moved, nil)
}

func TestMemCacheUpdateSettingsResubscribes(t *testing.T) {
	h := newCacheHarness(t)
	rooms := domain.NewSelectedRooms(mustRoom(t, "E0S0"), mustRoom(t, "E0S0"))
	settings, err := domain.NewConnectionSettings("https://screeps.example/api/", "alice", "pw", "shard0")
	require.NoError(t, err)

	h.conn.EXPECT().Send(domain.ChangeSettingsRequest{Settings: settings}).Once()
	h.align().UpdateSettings(settings)

	h.align(
		domain.LoginEvent{Username: "alice"},
		domain.RoomTerrainEvent{Room: mustRoom(t, "E0S0")},
	)
	h.conn.EXPECT().Send(domain.SetMapSubscribesRequest{Rooms: rooms}).Once()
	h.align().ViewRooms(rooms, nil)

	sameAccount := settings
	sameAccount.Shard = "shard0"
	h.conn.EXPECT().Send(domain.ChangeSettingsRequest{Settings: sameAccount}).Once()
	h.align().UpdateSettings(sameAccount)
	assert.Equal(t, LoggedIn, h.cache.LoginState())

	h.conn.EXPECT().Send(domain.SetMapSubscribesRequest{Rooms: rooms}).Once()
	h.align().ViewRooms(rooms, nil)

	otherShard := settings
	otherShard.Shard = "shard1"
	h.conn.EXPECT().Send(domain.ChangeSettingsRequest{Settings: otherShard}).Once()
	h.align().UpdateSettings(otherShard)
	assert.Empty(t, h.cache.Rooms().Terrain)

	otherUser := otherShard
	otherUser.Username = "bob"
	h.conn.EXPECT().Send(domain.ChangeSettingsRequest{Settings: otherUser}).Once()
	h.align().UpdateSettings(otherUser)
	assert.Equal(t, NotLoggedIn, h.cache.LoginState())
}

func TestMemCacheRoomViewMerge(t *testing.T) {
	h := newCacheHarness(t)
	room := mustRoom(t, "W1N1")
	other := mustRoom(t, "W2N1")

	h.align(domain.RoomViewEvent{Room: room, Update: domain.RoomUpdate{
		GameTime: 10,
		Objects: map[string]json.RawMessage{
			"spawn": json.RawMessage(`{"type":"spawn","hits":5000,"name":"Spawn1"}`),
			"creep": json.RawMessage(`{"type":"creep","x":1}`),
		},
	}})

	h.align(domain.RoomViewEvent{Room: room, Update: domain.RoomUpdate{
		GameTime: 11,
		Objects: map[string]json.RawMessage{
			"spawn": json.RawMessage(`{"hits":4000,"name":null}`),
			"creep": json.RawMessage(`null`),
			"tower": json.RawMessage(`{"type":"tower"}`),
		},
	}})
	require.Empty(t, h.errors)

	detail := h.cache.Rooms().Detail
	require.NotNil(t, detail)
	assert.Equal(t, room, detail.Room)
	assert.Equal(t, int64(11), detail.GameTime)
	require.Len(t, detail.Objects, 2)
	assert.JSONEq(t, `4000`, string(detail.Objects["spawn"]["hits"]))
	assert.JSONEq(t, `"spawn"`, string(detail.Objects["spawn"]["type"]))
	assert.NotContains(t, detail.Objects["spawn"], "name")
	assert.Contains(t, detail.Objects, "tower")

	h.align(domain.RoomViewEvent{Room: other, Update: domain.RoomUpdate{
		GameTime: 12,
		Objects:  map[string]json.RawMessage{"source": json.RawMessage(`{"type":"source"}`)},
	}})
	detail = h.cache.Rooms().Detail
	assert.Equal(t, other, detail.Room)
	assert.Len(t, detail.Objects, 1)
}

func TestMemCacheRoomViewRejectsBadObjects(t *testing.T) {
	h := newCacheHarness(t)
	room := mustRoom(t, "E5S5")

	h.align(domain.RoomViewEvent{Room: room, Update: domain.RoomUpdate{
		Objects: map[string]json.RawMessage{"bad": json.RawMessage(`[1,2]`)},
	}})

	require.Len(t, h.errors, 1)
	assert.Equal(t, ErrorRoomView, h.errors[0].Kind)
}

func TestMemCacheWebsocketErrors(t *testing.T) {
	h := newCacheHarness(t)
	var seen []domain.NetworkEvent

	h.conn.EXPECT().Poll().Return(domain.WebsocketErrorEvent{Err: errors.New("reset")}, true).Once()
	h.conn.EXPECT().Poll().Return(domain.WebsocketParseErrorEvent{Err: &domain.ParseError{Input: "x", Err: errors.New("bad")}}, true).Once()
	h.conn.EXPECT().Poll().Return(domain.WebsocketHTTPErrorEvent{Err: domain.ErrUnauthorized}, true).Once()
	h.conn.EXPECT().Poll().Return(nil, false).Once()

	h.cache.Align(h.conn, func(e ErrorEvent) {
		h.errors = append(h.errors, e)
	}, func(evt domain.NetworkEvent) {
		seen = append(seen, evt)
	})

	assert.Len(t, seen, 3)
	require.Len(t, h.errors, 3)
	assert.Equal(t, ErrorWebsocket, h.errors[0].Kind)
	assert.Equal(t, ErrorWebsocketParse, h.errors[1].Kind)
	assert.Equal(t, ErrorNotLoggedIn, h.errors[2].Kind)
}

func TestMemCacheMapView(t *testing.T) {
	h := newCacheHarness(t)
	room := mustRoom(t, "E2S2")

	h.align(domain.MapViewEvent{Room: room, Update: domain.MapViewUpdate{Walls: []domain.Point{{X: 1, Y: 1}}}})

	entry, ok := h.cache.Rooms().MapViews[room]
	require.True(t, ok)
	assert.Equal(t, h.now, entry.FetchedAt)
	assert.Len(t, entry.Update.Walls, 1)
}
