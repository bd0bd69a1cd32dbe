// Package cmd implements the command-line interface for channelscout.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/channelscout/cmd/httpd"
	"github.com/jonesrussell/channelscout/cmd/search"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "channelscout",
		Short: "Keyword-driven channel discovery and enrichment",
		Long: `channelscout discovers channels for a keyword, enriches each one with
audience metrics and contact details, and exposes the results through a
polling HTTP API or directly on the command line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are visible to viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("channelscout version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(search.Command())
}
