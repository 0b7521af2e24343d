package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	ecuerrors "github.com/canlink/ecubridge/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ecubridge",
		Short: "OBD-II diagnostic telemetry bridge",
		Long: `ecubridge simulates an OBD-II ECU over TCP and bridges its diagnostic
telemetry to dashboards, WebSocket consumers and MQTT brokers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newDTCCmd())
	rootCmd.AddCommand(newConfigCmd())

	// Custom help command
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(os.Stdout, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(os.Stdout, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(os.Stdout, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError renders UserFriendlyError values with their guidance and
// everything else as a plain error line.
func printError(err error) {
	var friendly *ecuerrors.UserFriendlyError
	if errors.As(err, &friendly) {
		fmt.Fprintf(os.Stderr, "error: %s\n", friendly.Message)
		if friendly.Reason != "" {
			fmt.Fprintf(os.Stderr, "  reason: %s\n", friendly.Reason)
		}
		if friendly.Hint != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", friendly.Hint)
		}
		if friendly.Try != "" {
			fmt.Fprintf(os.Stderr, "  try: %s\n", friendly.Try)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
