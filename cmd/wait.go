package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bnema/screeps-cli/internal/application"
	"github.com/spf13/cobra"
)

const pollInterval = 250 * time.Millisecond

// await aligns the cache until get reports a value. The first network error
// seen while waiting ends the wait.
func await[T any](ctx context.Context, conn *connection, get func(*application.NetworkedMemCache) (T, bool)) (T, error) {
	var zero T

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if value, ok := get(conn.align()); ok {
			return value, nil
		}
		if errs := conn.takeErrors(); len(errs) > 0 {
			return zero, errs[0]
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-conn.notify.C():
		case <-ticker.C:
		}
	}
}

// fetch connects with the active profile and waits for one value, showing a
// spinner on stderr unless quiet is set.
func fetch[T any](cmd *cobra.Command, app *app, label string, quiet bool, get func(*application.NetworkedMemCache) (T, bool)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(cmd.Context(), app.timeout)
	defer cancel()

	settings, err := app.settings(ctx)
	if err != nil {
		return zero, err
	}

	conn := app.connect(ctx, settings)
	defer app.closeConnection(ctx, conn)

	var value T
	wait := func(ctx context.Context) error {
		v, err := await(ctx, conn, get)
		if err != nil {
			return err
		}
		value = v
		return nil
	}

	if quiet {
		err = wait(ctx)
	} else {
		err = runWithSpinner(ctx, cmd.ErrOrStderr(), label, wait)
	}
	if err != nil {
		return zero, err
	}
	return value, nil
}

func (a *app) closeConnection(ctx context.Context, conn *connection) {
	if err := conn.close(ctx); err != nil {
		a.logger.Warn("close network session", slog.Any("error", err))
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
