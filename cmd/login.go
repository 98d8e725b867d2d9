package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/screeps-cli/internal/application"
	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/spf13/cobra"
)

var errPasswordRequired = errors.New("password required: use --password-stdin or SCRS_SERVER_PASSWORD")

type loginOptions struct {
	server        string
	username      string
	shard         string
	passwordStdin bool
	noVerify      bool
}

func newLoginCmd(app *app) *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log into a server and save it as a profile",
		Long:  "login signs into the server once to check the credentials, then saves the server, username, and shard under the selected profile. The password goes to pass when available, otherwise to a private credentials file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "Server API url (default "+domain.DefaultServerURL+")")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Account username or email")
	cmd.Flags().StringVar(&opts.shard, "shard", "shard0", "Shard to view; empty for servers without shards")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&opts.noVerify, "no-verify", false, "Save the profile without signing in")

	return cmd
}

func runLogin(cmd *cobra.Command, app *app, opts loginOptions) error {
	overrides := app.overrides()

	profile := domain.Profile{
		Name:      app.profile,
		ServerURL: firstNonEmpty(opts.server, overrides.ServerURL),
		Username:  firstNonEmpty(opts.username, overrides.Username),
		Shard:     opts.shard,
	}
	if !cmd.Flags().Changed("shard") && overrides.Shard != "" {
		profile.Shard = overrides.Shard
	}
	if profile.Username == "" {
		return fmt.Errorf("login: %w", application.ErrMissingUsername)
	}

	password, err := readPassword(cmd, opts.passwordStdin, overrides.Password)
	if err != nil {
		return err
	}

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if !opts.noVerify {
		settings, err := profile.Settings(password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := verifyLogin(cmd, app, settings); err != nil {
			return err
		}
	}

	if err := app.service.SaveLogin(cmd.Context(), application.SaveLoginCommand{Profile: profile, Password: password}); err != nil {
		return fmt.Errorf("save login: %w", err)
	}

	server, _ := profile.Settings("")
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s: %s on %s\n", profile.Name, profile.Username, server.ServerKey())
	return err
}

func verifyLogin(cmd *cobra.Command, app *app, settings domain.ConnectionSettings) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), app.timeout)
	defer cancel()

	conn := app.connect(ctx, settings)
	defer app.closeConnection(ctx, conn)

	conn.align().Login()

	err := runWithSpinner(ctx, cmd.ErrOrStderr(), "Signing in...", func(ctx context.Context) error {
		_, err := await(ctx, conn, func(n *application.NetworkedMemCache) (string, bool) {
			if n.LoginState() != application.LoggedIn {
				return "", false
			}
			return conn.mem.Username()
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func readPassword(cmd *cobra.Command, fromStdin bool, configured string) (string, error) {
	if !fromStdin {
		if configured == "" {
			return "", errPasswordRequired
		}
		return configured, nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errPasswordRequired
	}
	return password, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
