package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vigil/internal/database"
	repoerrors "vigil/internal/infrastructure/errors"
	"vigil/internal/infrastructure/logging"
)

// dbtx is the subset of *sql.DB and *sql.Tx the query methods need, so
// every operation can run either directly or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteRepository implements ActivityRepository, FeedReader and
// FeedWriter using SQLite.
type SQLiteRepository struct {
	db          *sql.DB
	q           dbtx
	dbService   database.Service
	retryConfig *repoerrors.RetryConfig
	logger      logging.Logger
}

var (
	_ ActivityRepository = (*SQLiteRepository)(nil)
	_ FeedReader         = (*SQLiteRepository)(nil)
	_ FeedWriter         = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository creates a new SQLite repository instance
func NewSQLiteRepository(dbService database.Service, logger logging.Logger) *SQLiteRepository {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	db := dbService.DB()
	return &SQLiteRepository{
		db:          db,
		q:           db,
		dbService:   dbService,
		retryConfig: repoerrors.DefaultRetryConfig(),
		logger:      logger,
	}
}

// NewSQLiteRepositoryWithConfig creates a repository with a custom retry configuration
func NewSQLiteRepositoryWithConfig(dbService database.Service, retryConfig *repoerrors.RetryConfig, logger logging.Logger) *SQLiteRepository {
	if retryConfig == nil {
		retryConfig = repoerrors.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	db := dbService.DB()
	return &SQLiteRepository{
		db:          db,
		q:           db,
		dbService:   dbService,
		retryConfig: retryConfig,
		logger:      logger,
	}
}

// WithTransaction executes a function within a database transaction with retry logic
func (r *SQLiteRepository) WithTransaction(ctx context.Context, fn func(repo ActivityRepository) error) error {
	start := time.Now()

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			repoErr := repoerrors.NewRepositoryError("WithTransaction.Begin", err, r.classifyError(err))
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error beginning transaction", "error", err)
			} else {
				logging.LogError(r.logger, repoErr, "WithTransaction.Begin", nil)
			}
			return repoErr
		}

		var originalErr error
		var committed bool
		defer func() {
			if !committed && tx != nil {
				if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
					r.logger.Debug("Failed to rollback transaction",
						"rollback_error", rollbackErr,
						"original_error", originalErr)
				}
			}
		}()

		// A repository bound to the transaction; nested WithTransaction
		// is not supported.
		txRepo := &SQLiteRepository{
			db:          r.db,
			q:           tx,
			dbService:   r.dbService,
			retryConfig: r.retryConfig,
			logger:      r.logger,
		}

		if err := fn(txRepo); err != nil {
			originalErr = err
			r.logger.Debug("Transaction function failed", "error", err)
			return err
		}

		if err := tx.Commit(); err != nil {
			originalErr = err
			repoErr := repoerrors.NewRepositoryError("WithTransaction.Commit", err, r.classifyError(err))
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error committing transaction", "error", err)
			} else {
				logging.LogError(r.logger, repoErr, "WithTransaction.Commit", nil)
			}
			return repoErr
		}
		committed = true

		return nil
	})

	if err == nil {
		logging.LogOperation(r.logger, "WithTransaction", time.Since(start), nil)
	}

	return err
}

// classifyError classifies database errors into repository error codes
func (r *SQLiteRepository) classifyError(err error) repoerrors.ErrorCode {
	return repoerrors.ClassifyError(err)
}

// nullStringFromString converts string to sql.NullString
func nullStringFromString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// stringFromNullString converts sql.NullString to string
func stringFromNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// timePtrFromNullTime converts sql.NullTime to *time.Time
func timePtrFromNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// nullTimeFromTimePtr converts *time.Time to sql.NullTime
func nullTimeFromTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
