// remootio controls a Remootio garage door controller from the command line.
//
// Usage:
//
//	remootio [command] [flags]
//
// Commands:
//
//	query      Print the door state
//	trigger    Pulse the relay
//	open       Open the door
//	close      Close the door
//	shell      Interactive session
//	simulate   Run a simulated device
//	version    Print version information
//
// Connection settings come from flags, REMOOTIO_* environment variables and
// an optional YAML file, in that order of precedence:
//
//	host: 192.168.1.50
//	secret_key: 00112233445566778899aabbccddeeff
//	auth_key: 00112233445566778899aabbccddeeff
//	timeout: 5s
//
// Example:
//
//	remootio query --host 192.168.1.50 --secret-key ... --auth-key ...
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "remootio",
		Short: "Control a Remootio garage door controller",
		Long: `remootio talks to a Remootio device over its encrypted WebSocket API.

Each command opens a connection, authenticates with the API secret and
auth keys, sends one action and prints the resulting door state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(rootCmd)

	rootCmd.AddCommand(
		actionCmd(opts, "query", "Print the door state"),
		actionCmd(opts, "trigger", "Pulse the relay, toggling the door"),
		actionCmd(opts, "open", "Open the door"),
		actionCmd(opts, "close", "Close the door"),
		shellCmd(opts),
		simulateCmd(opts),
		versionCmd(),
	)
	return rootCmd
}
