package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/arkade-os/colorcore/internal/core/domain"
	"github.com/arkade-os/colorcore/internal/core/ports"
	badgerdb "github.com/arkade-os/colorcore/internal/infrastructure/db/badger"
	pgdb "github.com/arkade-os/colorcore/internal/infrastructure/db/postgres"
	sqlitedb "github.com/arkade-os/colorcore/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigration embed.FS

var crowdsaleStoreTypes = map[string]func(...interface{}) (domain.CrowdsaleRepository, error){
	"badger":   badgerdb.NewCrowdsaleRepository,
	"sqlite":   sqlitedb.NewCrowdsaleRepository,
	"postgres": pgdb.NewCrowdsaleRepository,
}

const (
	sqliteDbFile = "sqlite.db"
)

// ServiceConfig selects the data store. DataStoreConfig is:
//   - badger: base directory (empty for in-memory), badger logger or nil
//   - sqlite: base directory
//   - postgres: DSN, autocreate flag
type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	crowdsaleStore domain.CrowdsaleRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	crowdsaleStoreFactory, ok := crowdsaleStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var crowdsaleStore domain.CrowdsaleRepository
	var err error

	switch config.DataStoreType {
	case "badger":
		crowdsaleStore, err = crowdsaleStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open crowdsale store: %s", err)
		}

	case "postgres":
		if len(config.DataStoreConfig) != 2 {
			return nil, fmt.Errorf("invalid data store config for postgres")
		}

		dsn, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid DSN for postgres")
		}

		autoCreate, ok := config.DataStoreConfig[1].(bool)
		if !ok {
			return nil, fmt.Errorf("invalid autocreate flag for postgres")
		}

		db, err := pgdb.OpenDb(dsn, autoCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %s", err)
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}

		source, err := iofs.New(pgMigration, "postgres/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed postgres migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "postgres", pgDriver)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres migration instance: %s", err)
		}

		if err := runMigrations(m); err != nil {
			return nil, fmt.Errorf("failed to run postgres migrations: %s", err)
		}

		crowdsaleStore, err = crowdsaleStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open crowdsale store: %s", err)
		}

	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		if err := migrateSqlite(db); err != nil {
			return nil, err
		}

		crowdsaleStore, err = crowdsaleStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open crowdsale store: %s", err)
		}
	}

	return &service{crowdsaleStore}, nil
}

func (s *service) Crowdsales() domain.CrowdsaleRepository {
	return s.crowdsaleStore
}

func (s *service) Close() {
	s.crowdsaleStore.Close()
}

func migrateSqlite(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to init driver: %s", err)
	}

	source, err := iofs.New(migrations, "sqlite/migration")
	if err != nil {
		return fmt.Errorf("failed to embed migrations: %s", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "colorcoredb", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %s", err)
	}

	if err := runMigrations(m); err != nil {
		return fmt.Errorf("failed to run migrations: %s", err)
	}
	return nil
}

func runMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Debugf("db migrated to version %d (dirty: %t)", version, dirty)
	return nil
}
