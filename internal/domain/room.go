package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomName is an absolute room position. E0 is x=0 and W0 is x=-1; S0 is
// y=0 and N0 is y=-1.
type RoomName struct {
	X int
	Y int
}

func ParseRoomName(raw string) (RoomName, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if len(name) < 4 {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoom, raw)
	}

	horizontal := name[0]
	if horizontal != 'E' && horizontal != 'W' {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoom, raw)
	}

	split := strings.IndexAny(name[1:], "NS")
	if split <= 0 {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoom, raw)
	}
	split++

	x, err := strconv.Atoi(name[1:split])
	if err != nil || x < 0 {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoom, raw)
	}
	y, err := strconv.Atoi(name[split+1:])
	if err != nil || y < 0 {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoom, raw)
	}

	room := RoomName{X: x, Y: y}
	if horizontal == 'W' {
		room.X = -x - 1
	}
	if name[split] == 'N' {
		room.Y = -y - 1
	}

	return room, nil
}

func (r RoomName) String() string {
	var b strings.Builder
	if r.X >= 0 {
		b.WriteString("E")
		b.WriteString(strconv.Itoa(r.X))
	} else {
		b.WriteString("W")
		b.WriteString(strconv.Itoa(-r.X - 1))
	}
	if r.Y >= 0 {
		b.WriteString("S")
		b.WriteString(strconv.Itoa(r.Y))
	} else {
		b.WriteString("N")
		b.WriteString(strconv.Itoa(-r.Y - 1))
	}
	return b.String()
}

func (r RoomName) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RoomName) UnmarshalText(text []byte) error {
	parsed, err := ParseRoomName(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// SelectedRooms is an inclusive rectangle of rooms. Start always holds the
// minimum corner.
type SelectedRooms struct {
	Start RoomName
	End   RoomName
}

func NewSelectedRooms(a, b RoomName) SelectedRooms {
	return SelectedRooms{
		Start: RoomName{X: min(a.X, b.X), Y: min(a.Y, b.Y)},
		End:   RoomName{X: max(a.X, b.X), Y: max(a.Y, b.Y)},
	}
}

func (s SelectedRooms) Contains(room RoomName) bool {
	return s.Start.X <= room.X && room.X <= s.End.X &&
		s.Start.Y <= room.Y && room.Y <= s.End.Y
}

func (s SelectedRooms) Len() int {
	return (s.End.X - s.Start.X + 1) * (s.End.Y - s.Start.Y + 1)
}

// Rooms lists the rectangle row by row.
func (s SelectedRooms) Rooms() []RoomName {
	rooms := make([]RoomName, 0, s.Len())
	for y := s.Start.Y; y <= s.End.Y; y++ {
		for x := s.Start.X; x <= s.End.X; x++ {
			rooms = append(rooms, RoomName{X: x, Y: y})
		}
	}
	return rooms
}

func (s SelectedRooms) String() string {
	return s.Start.String() + ".." + s.End.String()
}
