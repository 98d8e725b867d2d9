package domain

// Request is a unit of work for the network session. The set of
// implementations is closed.
type Request interface {
	isRequest()
}

type LoginRequest struct{}

type MyInfoRequest struct{}

type ShardListRequest struct{}

type RoomTerrainRequest struct {
	Room RoomName
}

type SetMapSubscribesRequest struct {
	Rooms SelectedRooms
}

type SetFocusRoomRequest struct {
	Room *RoomName
}

type ChangeSettingsRequest struct {
	Settings ConnectionSettings
}

type ExitRequest struct{}

func (LoginRequest) isRequest()            {}
func (MyInfoRequest) isRequest()           {}
func (ShardListRequest) isRequest()        {}
func (RoomTerrainRequest) isRequest()      {}
func (SetMapSubscribesRequest) isRequest() {}
func (SetFocusRoomRequest) isRequest()     {}
func (ChangeSettingsRequest) isRequest()   {}
func (ExitRequest) isRequest()             {}

// Route splits a request into its HTTP and websocket halves. Either may be
// nil; ChangeSettings and Exit produce both.
func Route(req Request) (http Request, ws Request) {
	switch r := req.(type) {
	case LoginRequest, MyInfoRequest, ShardListRequest, RoomTerrainRequest:
		return r, nil
	case SetMapSubscribesRequest, SetFocusRoomRequest:
		return nil, r
	case ChangeSettingsRequest, ExitRequest:
		return r, r
	default:
		return nil, nil
	}
}

func RequestName(req Request) string {
	switch req.(type) {
	case LoginRequest:
		return "login"
	case MyInfoRequest:
		return "my_info"
	case ShardListRequest:
		return "shard_list"
	case RoomTerrainRequest:
		return "room_terrain"
	case SetMapSubscribesRequest:
		return "set_map_subscribes"
	case SetFocusRoomRequest:
		return "set_focus_room"
	case ChangeSettingsRequest:
		return "change_settings"
	case ExitRequest:
		return "exit"
	default:
		return "unknown"
	}
}
