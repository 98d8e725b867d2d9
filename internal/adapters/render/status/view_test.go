package status

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bnema/screeps-cli/internal/application"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func room(t *testing.T, raw string) domain.RoomName {
	t.Helper()

	name, err := domain.ParseRoomName(raw)
	require.NoError(t, err)
	return name
}

func wallGrid(walls int) *domain.TerrainGrid {
	var grid domain.TerrainGrid
	for i := range walls {
		grid[i/domain.RoomSize][i%domain.RoomSize] = domain.TerrainWall
	}
	return &grid
}

func TestRenderLoggedInSnapshot(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	e1s1 := room(t, "E1S1")
	e2s1 := room(t, "E2S1")

	snap := application.Snapshot{
		TakenAt:     now,
		Server:      "screeps.com/api/",
		Shard:       "shard0",
		LoginState:  application.LoggedIn,
		Username:    "alice",
		MyInfo:      &domain.MyInfo{Username: "alice", CPU: 30, GCL: 2_000_000, Money: 1500},
		Shards:      []domain.ShardInfo{{Name: "shard0", Rooms: 100, Users: 20, TickAvg: 4100}},
		ShardsKnown: true,
		Rooms:       domain.NewSelectedRooms(e1s1, e2s1),
		Map: &application.MapCache{
			Terrain: map[domain.RoomName]application.TerrainEntry{
				e1s1: {FetchedAt: now, Grid: wallGrid(625)},
				e2s1: {FetchedAt: now},
			},
			MapViews: map[domain.RoomName]application.MapViewEntry{
				e1s1: {
					FetchedAt: now.Add(-3 * time.Second),
					Update: domain.MapViewUpdate{
						Sources:     []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
						Controllers: []domain.Point{{X: 25, Y: 25}},
					},
				},
			},
		},
	}

	output, err := Render(snap, RenderOptions{Now: now})
	require.NoError(t, err)

	assert.Contains(t, output, "Screeps: screeps.com/api/ (shard0)")
	assert.Contains(t, output, "logged in as alice")
	assert.Contains(t, output, "gcl 2:")
	assert.Contains(t, output, "cpu: 30")
	assert.Contains(t, output, "shard0")
	assert.Contains(t, output, "rooms E1S1..E2S1:")
	assert.Contains(t, output, "walls 25%")
	assert.Contains(t, output, "sources 2, controllers 1")
	assert.Contains(t, output, "(3s ago)")
	assert.Contains(t, output, "not a room")
}

func TestRenderSnapshotBeforeDataArrives(t *testing.T) {
	e1s1 := room(t, "E1S1")

	output, err := Render(application.Snapshot{
		Rooms: domain.NewSelectedRooms(e1s1, e1s1),
		Focus: &e1s1,
		Map: &application.MapCache{
			Terrain:  map[domain.RoomName]application.TerrainEntry{},
			MapViews: map[domain.RoomName]application.MapViewEntry{},
		},
	}, RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "Screeps: no server")
	assert.Contains(t, output, "session: not logged in")
	assert.Contains(t, output, "player: loading")
	assert.Contains(t, output, "shards: loading")
	assert.Contains(t, output, "terrain loading")
	assert.Contains(t, output, "focus E1S1: waiting for room data")
}

func TestRenderFocusedRoomDetail(t *testing.T) {
	e1s1 := room(t, "E1S1")

	output, err := Render(application.Snapshot{
		Rooms: domain.NewSelectedRooms(e1s1, e1s1),
		Focus: &e1s1,
		Map: &application.MapCache{
			Terrain:  map[domain.RoomName]application.TerrainEntry{},
			MapViews: map[domain.RoomName]application.MapViewEntry{},
			Detail: &application.DetailView{
				Room:     e1s1,
				GameTime: 1234,
				Objects: map[string]map[string]json.RawMessage{
					"a": {"type": json.RawMessage(`"source"`)},
					"b": {"type": json.RawMessage(`"source"`)},
					"c": {"type": json.RawMessage(`"creep"`)},
				},
			},
		},
	}, RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "focus E1S1 at tick 1234:")
	assert.Contains(t, output, "creep 1, source 2")
}

func TestRenderShowsLatestErrors(t *testing.T) {
	output, err := Render(application.Snapshot{
		Errors: []string{"first failure", "second failure", "third failure"},
	}, RenderOptions{MaxErrors: 2})
	require.NoError(t, err)

	assert.NotContains(t, output, "first failure")
	assert.Contains(t, output, "second failure")
	assert.Contains(t, output, "third failure")
}

func TestRenderEmptyShardList(t *testing.T) {
	output, err := Render(application.Snapshot{ShardsKnown: true}, RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, output, "server has no shards")
}

func TestRenderTerrainDrawsEveryTile(t *testing.T) {
	var grid domain.TerrainGrid
	grid[0][0] = domain.TerrainWall
	grid[0][1] = domain.TerrainSwamp
	grid[49][49] = domain.TerrainSwampyWall

	output := RenderTerrain(room(t, "W0N0"), grid)
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")

	require.Len(t, lines, domain.RoomSize+1)
	assert.Contains(t, lines[0], "Terrain W0N0")
	assert.True(t, strings.HasPrefix(stripANSI(lines[1]), "#~."))
	assert.True(t, strings.HasSuffix(stripANSI(lines[50]), ".#"))
}

func TestGCLLevel(t *testing.T) {
	level, progress := gclLevel(0)
	assert.Equal(t, 1, level)
	assert.Zero(t, progress)

	level, progress = gclLevel(1_000_000)
	assert.Equal(t, 2, level)
	assert.InDelta(t, 0, progress, 1e-9)

	level, _ = gclLevel(999_999)
	assert.Equal(t, 1, level)
}

func TestRenderProgressBarUsesRequestedWidth(t *testing.T) {
	s := newStyles()
	bar := stripANSI(renderProgressBar(50, 10, s))
	assert.Equal(t, "[=====-----]", bar)
	assert.Empty(t, renderProgressBar(50, 0, s))
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
