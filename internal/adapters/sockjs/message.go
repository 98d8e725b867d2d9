package sockjs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	mapViewChannelPrefix = "roomMap2:"
	roomChannelPrefix    = "room:"
)

// Message is a decoded Screeps application message.
type Message interface {
	isMessage()
}

type AuthOK struct {
	Token string
}

type AuthFailed struct{}

type ProtocolVersion struct {
	Version int
}

type PackageVersion struct {
	Version int
}

type ServerTime struct {
	Time int64
}

type MapViewUpdate struct {
	Shard  string
	Room   domain.RoomName
	Update domain.MapViewUpdate
}

type RoomUpdate struct {
	Shard  string
	Room   domain.RoomName
	Update domain.RoomUpdate
}

// ChannelUpdate is a channel message this client does not decode further.
type ChannelUpdate struct {
	Channel string
	Data    string
}

// Unknown is a text message with no known shape.
type Unknown struct {
	Raw string
}

func (AuthOK) isMessage()          {}
func (AuthFailed) isMessage()      {}
func (ProtocolVersion) isMessage() {}
func (PackageVersion) isMessage()  {}
func (ServerTime) isMessage()      {}
func (MapViewUpdate) isMessage()   {}
func (RoomUpdate) isMessage()      {}
func (ChannelUpdate) isMessage()   {}
func (Unknown) isMessage()         {}

func ParseMessage(raw string) (Message, error) {
	if strings.HasPrefix(raw, "[") {
		return parseChannelMessage(raw)
	}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, parseError(raw, errors.New("empty message"))
	}

	switch fields[0] {
	case "auth":
		if len(fields) == 3 && fields[1] == "ok" {
			return AuthOK{Token: fields[2]}, nil
		}
		if len(fields) == 2 && fields[1] == "failed" {
			return AuthFailed{}, nil
		}
		return nil, parseError(raw, errors.New("malformed auth message"))
	case "protocol":
		version, err := singleInt(fields)
		if err != nil {
			return nil, parseError(raw, err)
		}
		return ProtocolVersion{Version: int(version)}, nil
	case "package":
		version, err := singleInt(fields)
		if err != nil {
			return nil, parseError(raw, err)
		}
		return PackageVersion{Version: int(version)}, nil
	case "time":
		value, err := singleInt(fields)
		if err != nil {
			return nil, parseError(raw, err)
		}
		return ServerTime{Time: value}, nil
	default:
		return Unknown{Raw: raw}, nil
	}
}

func singleInt(fields []string) (int64, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("expected one argument to %q", fields[0])
	}
	return strconv.ParseInt(fields[1], 10, 64)
}

func parseChannelMessage(raw string) (Message, error) {
	if !gjson.Valid(raw) {
		return nil, parseError(raw, errors.New("invalid channel message json"))
	}

	parsed := gjson.Parse(raw)
	channel := parsed.Get("0")
	data := parsed.Get("1")
	if channel.Type != gjson.String || !data.Exists() {
		return nil, parseError(raw, errors.New("channel message must be [name, data]"))
	}

	name := channel.String()
	switch {
	case strings.HasPrefix(name, mapViewChannelPrefix):
		shard, room, err := parseChannelRoom(strings.TrimPrefix(name, mapViewChannelPrefix))
		if err != nil {
			return nil, parseError(raw, err)
		}
		update, err := parseMapView(data)
		if err != nil {
			return nil, parseError(raw, err)
		}
		return MapViewUpdate{Shard: shard, Room: room, Update: update}, nil
	case strings.HasPrefix(name, roomChannelPrefix):
		shard, room, err := parseChannelRoom(strings.TrimPrefix(name, roomChannelPrefix))
		if err != nil {
			return nil, parseError(raw, err)
		}
		update, err := parseRoomUpdate(data)
		if err != nil {
			return nil, parseError(raw, err)
		}
		return RoomUpdate{Shard: shard, Room: room, Update: update}, nil
	default:
		return ChannelUpdate{Channel: name, Data: data.Raw}, nil
	}
}

func parseChannelRoom(value string) (string, domain.RoomName, error) {
	shard := ""
	roomName := value
	if idx := strings.LastIndex(value, "/"); idx >= 0 {
		shard = value[:idx]
		roomName = value[idx+1:]
	}

	room, err := domain.ParseRoomName(roomName)
	if err != nil {
		return "", domain.RoomName{}, err
	}
	return shard, room, nil
}

func parseMapView(data gjson.Result) (domain.MapViewUpdate, error) {
	if !data.IsObject() {
		return domain.MapViewUpdate{}, errors.New("map view data is not an object")
	}

	var update domain.MapViewUpdate
	var parseErr error
	data.ForEach(func(key, value gjson.Result) bool {
		points, err := parsePoints(value)
		if err != nil {
			parseErr = fmt.Errorf("map view key %q: %w", key.String(), err)
			return false
		}

		switch key.String() {
		case "w":
			update.Walls = points
		case "r":
			update.Roads = points
		case "pb":
			update.PowerBanks = points
		case "p":
			update.Portals = points
		case "s":
			update.Sources = points
		case "c":
			update.Controllers = points
		case "m":
			update.Minerals = points
		case "k":
			update.KeeperLairs = points
		default:
			if update.Users == nil {
				update.Users = map[string][]domain.Point{}
			}
			update.Users[key.String()] = points
		}
		return true
	})

	return update, parseErr
}

func parsePoints(value gjson.Result) ([]domain.Point, error) {
	if !value.IsArray() {
		return nil, errors.New("points are not an array")
	}

	items := value.Array()
	points := make([]domain.Point, 0, len(items))
	for _, item := range items {
		pair := item.Array()
		if len(pair) != 2 || pair[0].Type != gjson.Number || pair[1].Type != gjson.Number {
			return nil, errors.New("point is not an [x, y] pair")
		}
		points = append(points, domain.Point{X: int(pair[0].Int()), Y: int(pair[1].Int())})
	}
	return points, nil
}

func parseRoomUpdate(data gjson.Result) (domain.RoomUpdate, error) {
	if !data.IsObject() {
		return domain.RoomUpdate{}, errors.New("room data is not an object")
	}

	update := domain.RoomUpdate{
		GameTime: data.Get("gameTime").Int(),
		Objects:  rawObjectMap(data.Get("objects")),
		Users:    rawObjectMap(data.Get("users")),
	}
	return update, nil
}

func rawObjectMap(value gjson.Result) map[string]json.RawMessage {
	if !value.IsObject() {
		return nil
	}

	out := map[string]json.RawMessage{}
	value.ForEach(func(key, item gjson.Result) bool {
		out[key.String()] = json.RawMessage(item.Raw)
		return true
	})
	return out
}

func AuthCommand(token string) string {
	return "auth " + token
}

func SubscribeCommand(channel string) string {
	return "subscribe " + channel
}

func UnsubscribeCommand(channel string) string {
	return "unsubscribe " + channel
}

func MapViewChannel(shard string, room domain.RoomName) string {
	return mapViewChannelPrefix + channelRoom(shard, room)
}

func RoomChannel(shard string, room domain.RoomName) string {
	return roomChannelPrefix + channelRoom(shard, room)
}

func channelRoom(shard string, room domain.RoomName) string {
	if shard == "" {
		return room.String()
	}
	return shard + "/" + room.String()
}
