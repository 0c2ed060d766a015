package main

import (
	"fmt"

	"github.com/Shivanand-hulikatti/tutormatch/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the configured SQL driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.Driver == config.DriverMemory {
				return fmt.Errorf("migrate needs a SQL driver, got %q", cfg.Store.Driver)
			}
			st, err := openStores(cmd.Context(), cfg.Store, true)
			if err != nil {
				return err
			}
			st.close()
			log.WithField("driver", cfg.Store.Driver).Info("schema applied")
			return nil
		},
	}
}
