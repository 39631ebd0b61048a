package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/remootio"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func shellCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with one device",
		Long: `Open an interactive prompt that keeps one authenticated session and
sends commands on it. The session is re-established automatically after
a failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cover, client, err := newCover(opts)
			if err != nil {
				return err
			}
			defer client.Close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "remootio> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			sh := &shell{client: client, cover: cover, out: rl.Stdout()}
			sh.printHelp()
			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						continue
					}
					return nil
				}
				if !sh.exec(cmd.Context(), line) {
					return nil
				}
			}
		},
	}
}

// shell executes interactive commands.
type shell struct {
	client *remootio.Client
	cover  *remootio.Cover
	out    io.Writer
}

// exec runs one input line and reports whether the shell should continue.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		sh.printHelp()
	case "auth", "a":
		snap, err := sh.client.Authenticate(ctx)
		if err != nil {
			fmt.Fprintf(sh.out, "Error: %v\n", err)
			return true
		}
		fmt.Fprintf(sh.out, "Session %s, next action id %d\n", snap.ID, snap.NextActionID)
	case "query", "q":
		sh.report(sh.cover.Update(ctx))
	case "trigger", "t":
		_, err := sh.client.Do(ctx, message.CommandTrigger)
		sh.report(err)
	case "open", "o":
		sh.report(sh.cover.OpenCover(ctx))
	case "close", "c":
		sh.report(sh.cover.CloseCover(ctx))
	case "status", "s":
		sh.printStatus()
	case "quit", "exit":
		fmt.Fprintln(sh.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", fields[0])
	}
	return true
}

func (sh *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "State: %s\n", sh.cover.State())
}

func (sh *shell) printStatus() {
	fmt.Fprintf(sh.out, "Device:    %s (%s)\n", sh.cover.Name(), sh.cover.UniqueID())
	fmt.Fprintf(sh.out, "Available: %t\n", sh.cover.Available())
	fmt.Fprintf(sh.out, "State:     %s\n", sh.cover.State())
	if snap, ok := sh.client.Session(); ok {
		fmt.Fprintf(sh.out, "Session:   %s since %s, next action id %d\n",
			snap.ID, snap.EstablishedAt.Format("15:04:05"), snap.NextActionID)
	} else {
		fmt.Fprintln(sh.out, "Session:   none")
	}
}

func (sh *shell) printHelp() {
	fmt.Fprintln(sh.out, `Commands:
  auth, a      Re-authenticate (new connection and session)
  query, q     Query the door state
  trigger, t   Pulse the relay
  open, o      Open the door
  close, c     Close the door
  status, s    Show session and availability
  help, ?      Show this help
  quit, exit   Leave the shell`)
}
