package cmd

import (
	"fmt"

	statusadapter "github.com/bnema/screeps-cli/internal/adapters/render/status"
	"github.com/bnema/screeps-cli/internal/application"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/spf13/cobra"
)

type terrainOutput struct {
	Room    string `json:"room"`
	Terrain string `json:"terrain"`
}

func newTerrainCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "terrain <room>",
		Short: "Draw a room's terrain",
		Long:  "terrain prints a room as 50 rows of tiles: '#' wall, '~' swamp, '.' plain. Terrain is served from the disk cache when present.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := domain.ParseRoomName(args[0])
			if err != nil {
				return err
			}

			entry, err := fetch(cmd, app, fmt.Sprintf("Fetching terrain for %s...", room), asJSON,
				func(n *application.NetworkedMemCache) (application.TerrainEntry, bool) {
					return n.RoomTerrain(room)
				})
			if err != nil {
				return err
			}
			if entry.Grid == nil {
				return fmt.Errorf("room %s: %w", room, domain.ErrInvalidRoom)
			}

			if asJSON {
				return writeJSON(cmd, terrainOutput{Room: room.String(), Terrain: entry.Grid.Encode()})
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), statusadapter.RenderTerrain(room, *entry.Grid))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the encoded terrain as JSON")

	return cmd
}
