package domain

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RoomName
	}{
		{name: "east south origin", raw: "E0S0", want: RoomName{X: 0, Y: 0}},
		{name: "west north origin", raw: "W0N0", want: RoomName{X: -1, Y: -1}},
		{name: "multi digit", raw: "E12N34", want: RoomName{X: 12, Y: -35}},
		{name: "lowercase", raw: "w5s7", want: RoomName{X: -6, Y: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRoomName(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.ToUpper(tt.raw), got.String())
		})
	}
}

func TestParseRoomNameRejectsMalformedNames(t *testing.T) {
	for _, raw := range []string{"", "E1", "X1N1", "E1X1", "EN1", "E1N", "E-1N1", "sim"} {
		_, err := ParseRoomName(raw)
		assert.ErrorIs(t, err, ErrInvalidRoom, raw)
	}
}

func TestSelectedRoomsNormalizesAndIterates(t *testing.T) {
	rooms := NewSelectedRooms(RoomName{X: 1, Y: 0}, RoomName{X: 0, Y: -1})

	assert.Equal(t, RoomName{X: 0, Y: -1}, rooms.Start)
	assert.Equal(t, RoomName{X: 1, Y: 0}, rooms.End)
	assert.Equal(t, 4, rooms.Len())
	assert.Equal(t, []RoomName{
		{X: 0, Y: -1}, {X: 1, Y: -1},
		{X: 0, Y: 0}, {X: 1, Y: 0},
	}, rooms.Rooms())

	assert.True(t, rooms.Contains(RoomName{X: 0, Y: 0}))
	assert.True(t, rooms.Contains(RoomName{X: 1, Y: -1}))
	assert.False(t, rooms.Contains(RoomName{X: 2, Y: 0}))
}

func TestTerrainEncodeRoundTrip(t *testing.T) {
	encoded := strings.Repeat("0123", RoomSize*RoomSize/4)

	grid, err := ParseEncodedTerrain(encoded)
	require.NoError(t, err)
	assert.Equal(t, TerrainWall, grid.At(1, 0))
	assert.Equal(t, TerrainSwampyWall, grid.At(3, 0))
	assert.Equal(t, encoded, grid.Encode())

	_, err = ParseEncodedTerrain("012")
	require.Error(t, err)
	_, err = ParseEncodedTerrain(strings.Repeat("4", RoomSize*RoomSize))
	require.Error(t, err)
}

func TestRouteSplitsBothVariants(t *testing.T) {
	settings := ChangeSettingsRequest{}

	httpHalf, wsHalf := Route(settings)
	assert.Equal(t, settings, httpHalf)
	assert.Equal(t, settings, wsHalf)

	httpHalf, wsHalf = Route(MyInfoRequest{})
	assert.Equal(t, MyInfoRequest{}, httpHalf)
	assert.Nil(t, wsHalf)

	httpHalf, wsHalf = Route(SetFocusRoomRequest{})
	assert.Nil(t, httpHalf)
	assert.Equal(t, SetFocusRoomRequest{}, wsHalf)
}

func TestAPIErrorMatchesSentinels(t *testing.T) {
	limited := &APIError{StatusCode: http.StatusTooManyRequests}
	assert.True(t, IsRateLimited(limited))
	assert.True(t, IsRateLimited(EventError(MyInfoEvent{Err: limited})))
	assert.False(t, errors.Is(limited, ErrUnauthorized))

	unauthorized := &APIError{StatusCode: http.StatusUnauthorized, Message: "unauthorized"}
	assert.ErrorIs(t, unauthorized, ErrUnauthorized)
	assert.Nil(t, EventError(MapViewEvent{}))
}

func TestConnectionSettingsNormalizesURL(t *testing.T) {
	settings, err := NewConnectionSettings("https://screeps.example/api", "alice", "secret", "shard0")
	require.NoError(t, err)
	assert.Equal(t, "/api/", settings.APIURL.Path)
	assert.NotContains(t, settings.String(), "secret")

	sameAccount, err := NewConnectionSettings("https://screeps.example/api/", "alice", "secret", "shard3")
	require.NoError(t, err)
	assert.True(t, settings.CredentialsEqual(sameAccount))

	otherServer, err := NewConnectionSettings("http://localhost:21025", "alice", "secret", "shard0")
	require.NoError(t, err)
	assert.False(t, settings.CredentialsEqual(otherServer))

	_, err = NewConnectionSettings("ftp://screeps.example", "", "", "")
	require.Error(t, err)
}
