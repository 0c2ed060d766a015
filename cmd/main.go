// cmd/main.go is the application entry point.
// It wires together all layers behind the tutormatch CLI.
package main

import (
	"os"

	"github.com/Shivanand-hulikatti/tutormatch/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		cfg        = new(config.Config)
	)

	root := &cobra.Command{
		Use:           "tutormatch",
		Short:         "Tutoring marketplace session scheduling and matching service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := config.SetupLogging(loaded.Log); err != nil {
				return err
			}
			*cfg = *loaded
			log.WithField("driver", cfg.Store.Driver).Debug("configuration loaded")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(cfg),
		newMigrateCmd(cfg),
		newSeedCmd(cfg),
	)
	return root
}
