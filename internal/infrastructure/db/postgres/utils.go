package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/arkade-os/colorcore/internal/infrastructure/db/postgres/sqlc/queries"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	driverName = "postgres"
	maxRetries = 5
)

// OpenDb returns a pinged connection pool. With autoCreate, a database that
// does not exist yet is created first, which needs a url-formatted dsn.
func OpenDb(dsn string, autoCreate bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil && autoCreate && isMissingDatabase(err) {
		if err := createDatabase(ctx, dsn); err != nil {
			// nolint
			db.Close()
			return nil, fmt.Errorf("failed to create db: %v", err)
		}
		err = db.PingContext(ctx)
	}
	if err != nil {
		// nolint
		db.Close()
		return nil, fmt.Errorf("unable to establish connection with db: %v", err)
	}

	return db, nil
}

func isMissingDatabase(err error) bool {
	var pqErr *pq.Error
	// 3D000: invalid_catalog_name
	return errors.As(err, &pqErr) && pqErr.Code == "3D000"
}

func createDatabase(ctx context.Context, dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("db auto-creation requires a postgres:// dsn")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return err
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if len(dbName) <= 0 {
		return fmt.Errorf("missing db name in dsn")
	}

	// connect to the server default db to issue the CREATE
	u.Path = ""
	serverDb, err := sql.Open(driverName, u.String())
	if err != nil {
		return err
	}
	// nolint
	defer serverDb.Close()

	log.Infof("creating postgres db %s", dbName)
	_, err = serverDb.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName))
	return err
}

func execTx(
	ctx context.Context, db *sql.DB, txBody func(*queries.Queries) error,
) error {
	var lastErr error
	for range maxRetries {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := txBody(queries.New(db).WithTx(tx)); err != nil {
			//nolint:all
			tx.Rollback()

			if isConflictError(err) {
				lastErr = err
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isConflictError(err) {
				lastErr = err
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}

	return lastErr
}

// isConflictError tells whether the transaction lost a race with a
// concurrent one and can be retried.
func isConflictError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 40001: serialization_failure, 40P01: deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
