package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	statusadapter "github.com/bnema/screeps-cli/internal/adapters/render/status"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/spf13/cobra"
)

const (
	maxWatchRooms = 400
	clearScreen   = "\x1b[H\x1b[2J"
)

type watchOptions struct {
	focus     string
	frames    int
	interval  time.Duration
	maxErrors int
	clear     bool
	asJSON    bool
}

func newWatchCmd(app *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <from> <to>",
		Short: "Watch a rectangle of rooms",
		Long:  "watch subscribes to the map view of every room between two corners and redraws whenever the server pushes an update. --focus also subscribes to the full object stream of one room.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, app, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.focus, "focus", "", "Room to stream objects for")
	cmd.Flags().IntVar(&opts.frames, "frames", 0, "Stop after this many frames (0 runs until interrupted)")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Redraw at least this often")
	cmd.Flags().IntVar(&opts.maxErrors, "max-errors", 5, "Recent errors shown under the frame")
	cmd.Flags().BoolVar(&opts.clear, "clear", true, "Clear the terminal before each frame")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print one JSON snapshot per frame")

	return cmd
}

func runWatch(cmd *cobra.Command, app *app, rawFrom string, rawTo string, opts watchOptions) error {
	from, err := domain.ParseRoomName(rawFrom)
	if err != nil {
		return err
	}
	to, err := domain.ParseRoomName(rawTo)
	if err != nil {
		return err
	}
	rooms := domain.NewSelectedRooms(from, to)
	if rooms.Len() > maxWatchRooms {
		return fmt.Errorf("watch %s: %d rooms selected, at most %d allowed", rooms, rooms.Len(), maxWatchRooms)
	}

	var focus *domain.RoomName
	if opts.focus != "" {
		room, err := domain.ParseRoomName(opts.focus)
		if err != nil {
			return err
		}
		focus = &room
	}

	if opts.interval <= 0 {
		opts.interval = time.Second
	}

	ctx := cmd.Context()
	settings, err := app.settings(ctx)
	if err != nil {
		return err
	}

	conn := app.connect(ctx, settings)
	defer app.closeConnection(ctx, conn)

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	var recent []string
	for frame := 0; opts.frames <= 0 || frame < opts.frames; frame++ {
		if frame > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-conn.notify.C():
			case <-ticker.C:
			}
		}

		snap := conn.align().Snapshot(rooms, focus)
		for _, err := range conn.takeErrors() {
			recent = append(recent, err.Error())
		}
		if opts.maxErrors > 0 && len(recent) > opts.maxErrors {
			recent = recent[len(recent)-opts.maxErrors:]
		}
		snap.Errors = recent

		if opts.asJSON {
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(snap); err != nil {
				return err
			}
			continue
		}

		rendered, err := app.statusRenderer(snap, statusadapter.RenderOptions{Now: app.now(), MaxErrors: opts.maxErrors})
		if err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
		if opts.clear {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), clearScreen)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
			return err
		}
	}

	return nil
}
