package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/remootio"
	"github.com/spf13/cobra"
)

func actionCmd(opts *options, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runAction(ctx, cmd.OutOrStdout(), opts, use)
		},
	}
}

func runAction(ctx context.Context, out io.Writer, opts *options, action string) error {
	cover, client, err := newCover(opts)
	if err != nil {
		return err
	}
	defer client.Close()

	switch action {
	case "query":
		err = cover.Update(ctx)
	case "trigger":
		_, err = client.Do(ctx, message.CommandTrigger)
	case "open":
		err = cover.OpenCover(ctx)
	case "close":
		err = cover.CloseCover(ctx)
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %s\n", client.Name(), cover.State())
	return nil
}

// newCover builds a client and cover from the resolved settings.
func newCover(opts *options) (*remootio.Cover, *remootio.Client, error) {
	s, err := opts.resolve(os.Getenv)
	if err != nil {
		return nil, nil, err
	}
	lf, err := newLoggerFactory(s.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	client, err := remootio.NewClient(s.clientConfig(lf))
	if err != nil {
		return nil, nil, err
	}
	cover := remootio.NewCover(client)
	cover.UseDirectionalCommands = s.Directional
	return cover, client, nil
}
