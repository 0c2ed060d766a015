package main

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/tutormatch/internal/config"
	"github.com/Shivanand-hulikatti/tutormatch/internal/database"
	"github.com/Shivanand-hulikatti/tutormatch/internal/matching"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/Shivanand-hulikatti/tutormatch/internal/repository"
	"github.com/Shivanand-hulikatti/tutormatch/internal/service"
	log "github.com/sirupsen/logrus"
)

type sessionStore interface {
	service.SessionStore
	matching.SessionSource
}

type personStore interface {
	matching.TutorLookup
	GetStudentByEmail(ctx context.Context, email string) (*model.Student, error)
	UpsertTutor(ctx context.Context, t model.Tutor) error
	UpsertStudent(ctx context.Context, s model.Student) error
}

type stores struct {
	sessions sessionStore
	people   personStore
	close    func()
}

// openStores connects the configured driver. With migrate set, the schema
// is applied before returning.
func openStores(ctx context.Context, cfg config.StoreConfig, migrate bool) (*stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &stores{
			sessions: repository.NewMemorySessionRepository(),
			people:   repository.NewMemoryPersonRepository(),
			close:    func() {},
		}, nil

	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		log.Info("connected to PostgreSQL")
		if migrate {
			if err := database.MigratePostgres(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &stores{
			sessions: repository.NewSessionRepository(pool),
			people:   repository.NewPersonRepository(pool),
			close:    pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		log.WithField("path", cfg.SQLite.Path).Info("opened SQLite database")
		if migrate {
			if err := database.MigrateSQLite(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &stores{
			sessions: repository.NewSQLiteSessionRepository(db),
			people:   repository.NewSQLitePersonRepository(db),
			close:    func() { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("store driver %q not supported", cfg.Driver)
}
