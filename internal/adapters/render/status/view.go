package status

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/bnema/screeps-cli/internal/application"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// MaxErrors caps the error lines shown under the frame.
	MaxErrors int
}

func renderView(snap application.Snapshot, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(titleLine(snap)),
		s.header.Render(fmt.Sprintf("session: %s", loginLabel(snap))),
	}

	lines = append(lines, s.section.Render(renderPlayer(snap, s)))
	lines = append(lines, s.section.Render(renderShards(snap, s)))
	lines = append(lines, s.section.Render(renderRooms(snap, opts, s)))

	if detail := renderDetail(snap, s); detail != "" {
		lines = append(lines, s.section.Render(detail))
	}
	if errs := renderErrors(snap.Errors, opts.MaxErrors, s); errs != "" {
		lines = append(lines, s.section.Render(errs))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func titleLine(snap application.Snapshot) string {
	server := snap.Server
	if server == "" {
		server = "no server"
	}
	if snap.Shard == "" {
		return fmt.Sprintf("Screeps: %s", server)
	}
	return fmt.Sprintf("Screeps: %s (%s)", server, snap.Shard)
}

func loginLabel(snap application.Snapshot) string {
	if snap.LoginState == application.LoggedIn && snap.Username != "" {
		return fmt.Sprintf("%s as %s", snap.LoginState, snap.Username)
	}
	return snap.LoginState.String()
}

func renderPlayer(snap application.Snapshot, s styles) string {
	if snap.MyInfo == nil {
		return s.empty.Render("player: loading")
	}

	info := snap.MyInfo
	level, progress := gclLevel(info.GCL)
	gcl := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render(fmt.Sprintf("gcl %d:", level)),
		" ",
		renderProgressBar(progress*100, 24, s),
		" ",
		s.meta.Render(fmt.Sprintf("%2.0f%%", progress*100)),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		s.player.Render(info.Username),
		s.detail.Render(fmt.Sprintf("cpu: %d  credits: %.0f", info.CPU, info.Money)),
		gcl,
	)
}

func renderShards(snap application.Snapshot, s styles) string {
	if !snap.ShardsKnown {
		return s.empty.Render("shards: loading")
	}
	if len(snap.Shards) == 0 {
		return s.empty.Render("shards: server has no shards")
	}

	lines := []string{s.key.Render("shards:")}
	for _, shard := range snap.Shards {
		name := shard.Name
		if name == snap.Shard {
			name = s.player.Render(name)
		}
		lines = append(lines, fmt.Sprintf("  %s %s", name, s.meta.Render(
			fmt.Sprintf("rooms %d, users %d, tick %.0fms", shard.Rooms, shard.Users, shard.TickAvg),
		)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderRooms(snap application.Snapshot, opts RenderOptions, s styles) string {
	lines := []string{s.key.Render(fmt.Sprintf("rooms %s:", snap.Rooms))}
	if snap.Map == nil {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, s.empty.Render("  no map data"))...)
	}

	for _, room := range snap.Rooms.Rooms() {
		lines = append(lines, roomLine(room, snap, opts, s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func roomLine(room domain.RoomName, snap application.Snapshot, opts RenderOptions, s styles) string {
	name := fmt.Sprintf("  %-8s", room)
	if snap.Focus != nil && *snap.Focus == room {
		name = s.player.Render(name)
	}

	terrain, ok := snap.Map.Terrain[room]
	switch {
	case !ok:
		return name + " " + s.empty.Render("terrain loading")
	case terrain.Grid == nil:
		return name + " " + s.warning.Render("not a room")
	}

	parts := []string{name, s.detail.Render(fmt.Sprintf("walls %2.0f%%", wallShare(terrain.Grid)))}

	view, ok := snap.Map.MapViews[room]
	if !ok {
		parts = append(parts, s.empty.Render("no map view"))
		return strings.Join(parts, " ")
	}

	update := view.Update
	parts = append(parts, s.detail.Render(fmt.Sprintf(
		"sources %d, controllers %d, minerals %d, users %d",
		len(update.Sources), len(update.Controllers), len(update.Minerals), len(update.Users),
	)))
	if !opts.Now.IsZero() {
		parts = append(parts, s.meta.Render(fmt.Sprintf("(%s ago)", opts.Now.Sub(view.FetchedAt).Round(time.Second))))
	}
	return strings.Join(parts, " ")
}

func renderDetail(snap application.Snapshot, s styles) string {
	if snap.Map == nil || snap.Map.Detail == nil {
		if snap.Focus != nil {
			return s.empty.Render(fmt.Sprintf("focus %s: waiting for room data", snap.Focus))
		}
		return ""
	}

	detail := snap.Map.Detail
	counts := map[string]int{}
	for _, object := range detail.Objects {
		kind := "unknown"
		if raw, ok := object["type"]; ok {
			kind = strings.Trim(string(raw), `"`)
		}
		counts[kind]++
	}

	kinds := make([]string, 0, len(counts))
	for kind, n := range counts {
		kinds = append(kinds, fmt.Sprintf("%s %d", kind, n))
	}
	slices.Sort(kinds)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		s.key.Render(fmt.Sprintf("focus %s at tick %d:", detail.Room, detail.GameTime)),
		s.detail.Render("  "+strings.Join(kinds, ", ")),
	)
}

func renderErrors(errs []string, limit int, s styles) string {
	if len(errs) == 0 {
		return ""
	}
	if limit > 0 && len(errs) > limit {
		errs = errs[len(errs)-limit:]
	}

	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, s.warning.Render("! "+err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderTerrain draws a room as 50 lines of 50 cells.
func RenderTerrain(room domain.RoomName, grid domain.TerrainGrid) string {
	s := newStyles()

	var b strings.Builder
	b.WriteString(s.title.Render(fmt.Sprintf("Terrain %s", room)))
	b.WriteString("\n")
	for y := range domain.RoomSize {
		for x := range domain.RoomSize {
			b.WriteString(terrainCell(grid.At(x, y), s))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func terrainCell(t domain.Terrain, s styles) string {
	switch t {
	case domain.TerrainWall, domain.TerrainSwampyWall:
		return s.wall.Render("#")
	case domain.TerrainSwamp:
		return s.swamp.Render("~")
	default:
		return s.plain.Render(".")
	}
}

func wallShare(grid *domain.TerrainGrid) float64 {
	walls := 0
	for y := range domain.RoomSize {
		for x := range domain.RoomSize {
			if t := grid.At(x, y); t == domain.TerrainWall || t == domain.TerrainSwampyWall {
				walls++
			}
		}
	}
	return float64(walls) * 100 / float64(domain.RoomSize*domain.RoomSize)
}

// gclLevel converts raw control points into a level and the fraction of the
// way to the next one.
func gclLevel(points int64) (int, float64) {
	if points <= 0 {
		return 1, 0
	}

	level := int(math.Floor(math.Pow(float64(points)/gclMultiply, 1/gclPow))) + 1
	floor := gclMultiply * math.Pow(float64(level-1), gclPow)
	ceil := gclMultiply * math.Pow(float64(level), gclPow)
	return level, (float64(points) - floor) / (ceil - floor)
}

const (
	gclMultiply = 1_000_000
	gclPow      = 2.4
)

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
