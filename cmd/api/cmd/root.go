package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kaiser100010/grc-system-sub002/internal/config"
	"github.com/kaiser100010/grc-system-sub002/pkg/logger"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "GRC resource access gateway",
	Long: `Serves the GRC REST API: session authentication, role based access to
employees, tasks, risks, controls, incidents, policies and evidence, and
degraded reads while the store is unreachable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log = logger.New(cfg.Env)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, usersCmd, seedCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
