package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/remootio/pkg/device"
	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/remootio"
	"github.com/spf13/cobra"
)

func simulateCmd(opts *options) *cobra.Command {
	var (
		listen    string
		state     string
		initialID int64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated device",
		Long: `Run a simulated Remootio device that serves the encrypted API on a
WebSocket endpoint. Keys come from the usual flags, environment or config
file; random keys are generated and printed when none are set.

Examples:
  remootio simulate
  remootio simulate --listen 127.0.0.1:8080 --state open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve(os.Getenv)
			if err != nil {
				return err
			}
			lf, err := newLoggerFactory(s.LogLevel)
			if err != nil {
				return err
			}

			if s.SecretKey == "" {
				if s.SecretKey, err = randomKeyHex(); err != nil {
					return err
				}
			}
			if s.AuthKey == "" {
				if s.AuthKey, err = randomKeyHex(); err != nil {
					return err
				}
			}

			config := device.SimulatorConfig{
				SecretKey:     s.SecretKey,
				AuthKey:       s.AuthKey,
				InitialState:  message.ParseDeviceState(state),
				LoggerFactory: lf,
			}
			if initialID >= 0 {
				id := uint32(initialID)
				config.InitialActionID = &id
			}
			sim, err := device.NewSimulator(config)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "========================================")
			fmt.Fprintln(out, "      Remootio simulator ready")
			fmt.Fprintln(out, "========================================")
			fmt.Fprintf(out, "Listening:   ws://%s/\n", ln.Addr())
			fmt.Fprintf(out, "Secret key:  %s\n", s.SecretKey)
			fmt.Fprintf(out, "Auth key:    %s\n", s.AuthKey)
			fmt.Fprintf(out, "Door state:  %s\n", sim.State())
			fmt.Fprintln(out, "========================================")

			return serveSimulator(ctx, sim, ln)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", fmt.Sprintf(":%d", remootio.DefaultPort), "Address to listen on")
	cmd.Flags().StringVar(&state, "state", "closed", "Initial door state: open or closed")
	cmd.Flags().Int64Var(&initialID, "initial-action-id", -1, "Fixed initial action id (default: random per connection)")

	return cmd
}

// serveSimulator serves sim on ln until ctx is done.
func serveSimulator(ctx context.Context, sim *device.Simulator, ln net.Listener) error {
	srv := &http.Server{
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sim.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func randomKeyHex() (string, error) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
