package main

import (
	"github.com/spf13/cobra"
)

var configFile string

// NewRootCmd creates the root command for the signin CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "signin",
		Short:         "Email and password sign-in service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("database.dsn", "", "sqlite DSN")
	cmd.PersistentFlags().String("log_level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUsersCmd())
	cmd.AddCommand(NewLegacyCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

func loadConfig(cmd *cobra.Command) (AppConfig, error) {
	return LoadConfig(configFile, cmd.Flags())
}
