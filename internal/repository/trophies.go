package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	repoerrors "vigil/internal/infrastructure/errors"
	"vigil/internal/infrastructure/logging"
	"vigil/internal/types"
)

// ListEarned returns every persisted earned trophy.
func (r *SQLiteRepository) ListEarned(ctx context.Context) ([]types.EarnedTrophy, error) {
	var earned []types.EarnedTrophy
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT id, earned_at, meta FROM earned_trophies ORDER BY earned_at ASC`)
		if err != nil {
			return repoerrors.WrapDatabaseError("ListEarned", err)
		}
		defer rows.Close()

		earned = earned[:0]
		for rows.Next() {
			var e types.EarnedTrophy
			if err := rows.Scan(&e.ID, &e.EarnedAt, &e.Meta); err != nil {
				return repoerrors.WrapDatabaseError("ListEarned", err)
			}
			earned = append(earned, e)
		}
		return rows.Err()
	})
	return earned, err
}

// UpsertEarned persists an earned trophy, keeping the EARLIER of the
// stored and incoming timestamps so re-delivery and remote
// reconciliation can never push an earn date forward.
func (r *SQLiteRepository) UpsertEarned(ctx context.Context, earned types.EarnedTrophy) error {
	start := time.Now()

	if earned.ID == "" {
		return repoerrors.HandleValidationError("UpsertEarned", "id", "", "trophy id is required")
	}
	if earned.EarnedAt.IsZero() {
		return repoerrors.HandleValidationError("UpsertEarned", "earnedAt", "zero", "earned timestamp is required")
	}

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO earned_trophies (id, earned_at, meta)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				earned_at = MIN(earned_at, excluded.earned_at),
				meta = CASE WHEN excluded.earned_at < earned_at THEN excluded.meta ELSE meta END`,
			earned.ID, earned.EarnedAt, earned.Meta)
		if err != nil {
			repoErr := repoerrors.NewRepositoryErrorWithContext("UpsertEarned", err, r.classifyError(err), map[string]string{
				"trophy_id": earned.ID,
			})
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error in UpsertEarned", "error", err, "trophy_id", earned.ID)
			} else {
				logging.LogError(r.logger, repoErr, "UpsertEarned", map[string]any{"trophy_id": earned.ID})
			}
			return repoErr
		}
		return nil
	})

	if err == nil {
		logging.LogOperation(r.logger, "UpsertEarned", time.Since(start), map[string]any{
			"trophy_id": earned.ID,
		})
	}
	return err
}

// DeleteAllEarned wipes local earned state. Used by the engine's local
// reset; personal bests are cleared separately through SetJSON.
func (r *SQLiteRepository) DeleteAllEarned(ctx context.Context) error {
	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		if _, err := r.q.ExecContext(ctx, `DELETE FROM earned_trophies`); err != nil {
			return repoerrors.WrapDatabaseError("DeleteAllEarned", err)
		}
		return nil
	})
}

// GetJSON unmarshals the settings row stored under key into out.
// A missing key yields a NotFound repository error.
func (r *SQLiteRepository) GetJSON(ctx context.Context, key string, out interface{}) error {
	if key == "" {
		return repoerrors.HandleValidationError("GetJSON", "key", "", "key is required")
	}

	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		var raw string
		err := r.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repoerrors.HandleNotFound("GetJSON", "settings", key)
			}
			return repoerrors.WrapDatabaseErrorWithContext("GetJSON", err, map[string]string{"key": key})
		}

		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return repoerrors.NewRepositoryErrorWithContext("GetJSON", err, repoerrors.ErrCodeCorruption, map[string]string{
				"key": key,
			})
		}
		return nil
	})
}

// SetJSON stores value under key as a JSON settings row.
func (r *SQLiteRepository) SetJSON(ctx context.Context, key string, value interface{}) error {
	if key == "" {
		return repoerrors.HandleValidationError("SetJSON", "key", "", "key is required")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return repoerrors.NewRepositoryErrorWithContext("SetJSON", err, repoerrors.ErrCodeValidation, map[string]string{
			"key": key,
		})
	}

	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = CURRENT_TIMESTAMP`,
			key, string(raw))
		if err != nil {
			return repoerrors.WrapDatabaseErrorWithContext("SetJSON", err, map[string]string{"key": key})
		}
		return nil
	})
}
