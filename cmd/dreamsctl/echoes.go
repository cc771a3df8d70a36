package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zym9863/Dream-s-Exit/internal/client"
	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/refresh"
)

func newEchoesCmd(a *app) *cobra.Command {
	echoesCmd := &cobra.Command{Use: "echoes", Short: "Anonymous 24-hour echoes"}

	// list
	echoesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List visible echoes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			out, err := c.ListEchoes(cmd.Context())
			if err != nil {
				return err
			}
			printEchoes(a, out)
			return nil
		},
	})

	// post
	echoesCmd.AddCommand(&cobra.Command{
		Use:   "post TEXT...",
		Short: "Post an anonymous echo (at most 500 characters)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return model.NewValidationError("content", "is required")
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			out, err := c.PostEcho(cmd.Context(), content)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "%s fades at %s\n", out.ID, out.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	})

	// watch
	var interval time.Duration
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-list echoes on an interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchEchoes(ctx, a, c, interval)
		},
	}
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", refresh.DefaultInterval, "Refresh interval")
	echoesCmd.AddCommand(watchCmd)

	return echoesCmd
}

// watchEchoes prints every snapshot that lands; a failed refresh is reported
// and the next tick tries again.
func watchEchoes(ctx context.Context, a *app, c *client.Client, interval time.Duration) error {
	task := refresh.New(refresh.Config[[]client.Echo]{
		Interval: interval,
		Fetch:    c.ListEchoes,
		Deliver: func(list []client.Echo) {
			_, _ = fmt.Fprintf(a.out, "--- %s ---\n", time.Now().Format(time.TimeOnly))
			printEchoes(a, list)
		},
		OnError: func(err error) { reportFailure(a.out, err) },
	}, a.log)

	if err := task.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printEchoes(a *app, list []client.Echo) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(a.out, "(silence)")
		return
	}
	for _, e := range list {
		_, _ = fmt.Fprintf(a.out, "[%s] %s\n", e.Remaining, e.Content)
	}
}
