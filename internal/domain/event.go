package domain

// NetworkEvent is a result produced by the network session. The set of
// implementations is closed.
type NetworkEvent interface {
	isNetworkEvent()
}

type LoginEvent struct {
	Username string
	Err      error
}

type MyInfoEvent struct {
	Info MyInfo
	Err  error
}

// ShardListEvent carries a nil Shards slice when the server has no shards.
type ShardListEvent struct {
	Shards []ShardInfo
	Err    error
}

type RoomTerrainEvent struct {
	Room    RoomName
	Terrain TerrainGrid
	Err     error
}

type MapViewEvent struct {
	Room   RoomName
	Update MapViewUpdate
}

type RoomViewEvent struct {
	Room   RoomName
	Update RoomUpdate
}

type WebsocketErrorEvent struct {
	Err error
}

type WebsocketHTTPErrorEvent struct {
	Err error
}

type WebsocketParseErrorEvent struct {
	Err error
}

func (LoginEvent) isNetworkEvent()               {}
func (MyInfoEvent) isNetworkEvent()              {}
func (ShardListEvent) isNetworkEvent()           {}
func (RoomTerrainEvent) isNetworkEvent()         {}
func (MapViewEvent) isNetworkEvent()             {}
func (RoomViewEvent) isNetworkEvent()            {}
func (WebsocketErrorEvent) isNetworkEvent()      {}
func (WebsocketHTTPErrorEvent) isNetworkEvent()  {}
func (WebsocketParseErrorEvent) isNetworkEvent() {}

// EventError returns the API failure carried by an event. Websocket transport
// and parse failures are not API failures and return nil.
func EventError(evt NetworkEvent) error {
	switch e := evt.(type) {
	case LoginEvent:
		return e.Err
	case MyInfoEvent:
		return e.Err
	case ShardListEvent:
		return e.Err
	case RoomTerrainEvent:
		return e.Err
	case WebsocketHTTPErrorEvent:
		return e.Err
	default:
		return nil
	}
}
