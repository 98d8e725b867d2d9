package application

import (
	"time"

	"github.com/bnema/screeps-cli/internal/domain"
)

// Snapshot is everything a frame shows, read from the cache in one pass.
type Snapshot struct {
	TakenAt     time.Time
	Server      string
	Shard       string
	LoginState  LoginState
	Username    string
	MyInfo      *domain.MyInfo
	Shards      []domain.ShardInfo
	ShardsKnown bool
	Rooms       domain.SelectedRooms
	Focus       *domain.RoomName
	Map         *MapCache
	Errors      []string
}

// Snapshot issues the requests a frame needs and collects the best known
// values. It never waits for the network.
func (n *NetworkedMemCache) Snapshot(rooms domain.SelectedRooms, focus *domain.RoomName) Snapshot {
	c := n.cache
	snap := Snapshot{
		TakenAt:    c.clock.Now(),
		LoginState: c.LoginState(),
		Rooms:      rooms,
		Focus:      focus,
	}
	if c.settings != nil {
		snap.Server = c.settings.ServerKey()
		snap.Shard = c.settings.Shard
	}
	if username, ok := c.Username(); ok {
		snap.Username = username
	}

	if info, ok := n.MyInfo(); ok {
		snap.MyInfo = &info
	}
	snap.Shards, snap.ShardsKnown = n.ShardList()
	snap.Map = n.ViewRooms(rooms, focus)

	return snap
}
