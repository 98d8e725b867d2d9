package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

const defaultWaitTimeout = 30 * time.Second

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scrs",
		Short:         "Screeps CLI (scrs): watch a Screeps world from the terminal",
		Long:          "scrs logs into a Screeps server, keeps saved server profiles, caches room terrain on disk, and renders player info, shards, and live room views from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(errWriter{rootCmd})
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().StringVarP(&app.profile, "profile", "p", app.profile, "Saved server profile to use")
	rootCmd.PersistentFlags().DurationVar(&app.timeout, "timeout", defaultWaitTimeout, "How long to wait for the server")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newProfilesCmd(app),
		newInfoCmd(app),
		newShardsCmd(app),
		newTerrainCmd(app),
		newWatchCmd(app),
		newCacheCmd(app),
	)

	return rootCmd
}

// errWriter forwards to the command's stderr at write time, so output set
// after construction is honored.
type errWriter struct {
	cmd *cobra.Command
}

func (w errWriter) Write(p []byte) (int, error) {
	return w.cmd.ErrOrStderr().Write(p)
}

var _ io.Writer = errWriter{}
