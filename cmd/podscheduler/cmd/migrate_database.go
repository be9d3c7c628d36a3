package cmd

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/armadaproject/podscheduler/internal/common/config"
	"github.com/armadaproject/podscheduler/internal/storage"
)

func migrateDbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrateDatabase",
		Short: "Creates the postgres table backing the state store",
		RunE:  migrateDatabase,
	}
	return cmd
}

func migrateDatabase(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(c.Postgres); err != nil {
		config.LogValidationErrors(err)
		return err
	}
	start := time.Now()
	log.Info("Beginning state store database migration")
	db, err := config.OpenPgxPool(cmd.Context(), c.Postgres)
	if err != nil {
		return errors.WithMessage(err, "failed to connect to database")
	}
	defer db.Close()
	if err := storage.Migrate(cmd.Context(), db, c.StateStore.PostgresTable); err != nil {
		return errors.WithMessage(err, "failed to migrate state store database")
	}
	log.Infof("State store database migrated in %s", time.Since(start))
	return nil
}
