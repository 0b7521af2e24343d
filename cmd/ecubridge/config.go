package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canlink/ecubridge/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(newConfigPrintDefaultCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigPrintDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-default",
		Short: "Print the default config as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.PrintDefault()
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, out)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				cfgPath = "ecubridge.yaml"
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Config OK: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file path")
	return cmd
}
