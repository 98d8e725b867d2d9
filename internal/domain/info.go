package domain

import "encoding/json"

type MyInfo struct {
	UserID   string
	Username string
	HasPass  bool
	CPU      int
	GCL      int64
	Money    float64
}

type ShardInfo struct {
	Name    string
	Rooms   int
	Users   int
	TickAvg float64
}

type Point struct {
	X int
	Y int
}

// MapViewUpdate is a roomMap2 channel payload. Users maps a user id to the
// points that user occupies.
type MapViewUpdate struct {
	Walls       []Point
	Roads       []Point
	PowerBanks  []Point
	Portals     []Point
	Sources     []Point
	Controllers []Point
	Minerals    []Point
	KeeperLairs []Point
	Users       map[string][]Point
}

// RoomUpdate is a room channel payload. An object mapped to JSON null was
// removed from the room.
type RoomUpdate struct {
	GameTime int64
	Objects  map[string]json.RawMessage
	Users    map[string]json.RawMessage
}
