// Package main is the entry point for the rdpconnect binary.
//
// rdpconnect opens RDP sessions to private EC2 instances through EC2
// Instance Connect tunnels, with no bastion host or public IP required.
// It combines a TUI dashboard (built with Bubble Tea) and a CLI (built
// with Cobra).
//
// When invoked without arguments, it launches the interactive dashboard.
// With subcommands (e.g. "connect", "instances", "doctor"), it runs the
// corresponding operation and exits.
//
// Usage:
//
//	rdpconnect                     # launch the dashboard
//	rdpconnect instances           # list EC2 instances for the default profile
//	rdpconnect connect i-0abc...   # tunnel to an instance and launch the client
//
// The CLI is constructed in internal/cli and the TUI in internal/ui. This
// file wires them together and handles top-level error reporting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/aws-rdp-connect/rdpconnect/internal/cli"
)

func main() {
	// Ctrl+C cancels the command context, which is how `connect` knows to
	// tear down its tunnel before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
