package cmd

import (
	"fmt"

	"github.com/bnema/screeps-cli/internal/application"
	"github.com/spf13/cobra"
)

type myInfoOutput struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	HasPass  bool    `json:"has_password"`
	CPU      int     `json:"cpu"`
	GCL      int64   `json:"gcl"`
	Money    float64 `json:"credits"`
}

func newInfoCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the logged in player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := fetch(cmd, app, "Fetching player info...", asJSON, (*application.NetworkedMemCache).MyInfo)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, myInfoOutput(info))
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\ncpu: %d\ngcl: %d\ncredits: %.0f\n",
				info.Username, info.UserID, info.CPU, info.GCL, info.Money)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print player info as JSON")

	return cmd
}

type shardOutput struct {
	Name    string  `json:"name"`
	Rooms   int     `json:"rooms"`
	Users   int     `json:"users"`
	TickAvg float64 `json:"tick_avg"`
}

func newShardsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "shards",
		Short: "List the server's shards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shards, err := fetch(cmd, app, "Fetching shards...", asJSON, (*application.NetworkedMemCache).ShardList)
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]shardOutput, 0, len(shards))
				for _, shard := range shards {
					out = append(out, shardOutput(shard))
				}
				return writeJSON(cmd, out)
			}

			if len(shards) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "server has no shards")
				return err
			}
			for _, shard := range shards {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\trooms %d\tusers %d\ttick %.0fms\n", shard.Name, shard.Rooms, shard.Users, shard.TickAvg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print shards as JSON")

	return cmd
}
