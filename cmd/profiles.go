package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProfilesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage saved server profiles",
	}

	cmd.AddCommand(
		newProfilesListCmd(app),
		newProfilesRemoveCmd(app),
	)

	return cmd
}

type profileOutput struct {
	Name        string `json:"name"`
	ServerURL   string `json:"server_url"`
	Username    string `json:"username"`
	Shard       string `json:"shard,omitempty"`
	HasPassword bool   `json:"has_password"`
}

func newProfilesListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := app.service.Profiles(cmd.Context())
			if err != nil {
				return err
			}

			out := make([]profileOutput, 0, len(views))
			for _, view := range views {
				out = append(out, profileOutput{
					Name:        view.Profile.Name,
					ServerURL:   view.Profile.ServerURL,
					Username:    view.Profile.Username,
					Shard:       view.Profile.Shard,
					HasPassword: view.HasPassword,
				})
			}

			if asJSON {
				return writeJSON(cmd, out)
			}
			if len(out) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no profiles saved (run `scrs login`)")
				return err
			}

			for _, p := range out {
				password := "password stored"
				if !p.HasPassword {
					password = "no password"
				}
				marker := " "
				if p.Name == app.profile {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\t%s\t%s\n", marker, p.Name, p.Username, p.ServerURL, p.Shard, password)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print profiles as JSON")

	return cmd
}

func newProfilesRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a saved profile and its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.service.RemoveProfile(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %s\n", args[0])
			return err
		},
	}
}
