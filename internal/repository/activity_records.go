package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	repoerrors "vigil/internal/infrastructure/errors"
	"vigil/internal/infrastructure/logging"
	"vigil/internal/types"
)

const activityRecordColumns = `id, started_at, ended_at, last_seen_at, source, app_name,
	bundle_id, window_title, url, domain, category, seconds_active, idle_seconds`

// InsertOpenRecord persists a new open activity record and returns its id.
func (r *SQLiteRepository) InsertOpenRecord(ctx context.Context, record *types.ActivityRecord) (int64, error) {
	start := time.Now()

	if record == nil {
		err := repoerrors.NewRepositoryError("InsertOpenRecord", errors.New("record is nil"), repoerrors.ErrCodeValidation)
		logging.LogError(r.logger, err, "InsertOpenRecord", nil)
		return 0, err
	}
	if record.AppName == "" {
		err := repoerrors.HandleValidationError("InsertOpenRecord", "appName", "", "app name is required")
		logging.LogError(r.logger, err, "InsertOpenRecord", nil)
		return 0, err
	}

	lastSeen := record.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = record.StartedAt
	}

	var id int64
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO activity_records
				(started_at, ended_at, last_seen_at, source, app_name, bundle_id,
				 window_title, url, domain, category, seconds_active, idle_seconds)
			VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.StartedAt, lastSeen, string(record.Source), record.AppName,
			nullStringFromString(record.BundleID), nullStringFromString(record.WindowTitle),
			nullStringFromString(record.URL), nullStringFromString(record.Domain),
			nullStringFromString(string(record.Category)),
			record.SecondsActive, record.IdleSeconds)
		if err != nil {
			repoErr := repoerrors.NewRepositoryErrorWithContext("InsertOpenRecord", err, r.classifyError(err), map[string]string{
				"app_name": record.AppName,
				"domain":   record.Domain,
			})
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error in InsertOpenRecord", "error", err)
			} else {
				logging.LogError(r.logger, repoErr, "InsertOpenRecord", map[string]any{
					"app_name": record.AppName,
				})
			}
			return repoErr
		}

		id, err = res.LastInsertId()
		if err != nil {
			return repoerrors.WrapDatabaseError("InsertOpenRecord", err)
		}
		return nil
	})

	if err == nil {
		record.ID = id
		logging.LogOperation(r.logger, "InsertOpenRecord", time.Since(start), map[string]any{
			"id":       id,
			"app_name": record.AppName,
		})
	}

	return id, err
}

// ExtendRecord accumulates active/idle deltas onto an open record and
// advances its last-seen timestamp. ended_at stays NULL: open records
// are identified by it.
func (r *SQLiteRepository) ExtendRecord(ctx context.Context, id int64, lastSeen time.Time, activeDelta, idleDelta int64) error {
	if activeDelta < 0 || idleDelta < 0 {
		return repoerrors.HandleValidationError("ExtendRecord", "delta",
			fmt.Sprintf("active=%d idle=%d", activeDelta, idleDelta), "deltas must be non-negative")
	}

	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			UPDATE activity_records
			SET seconds_active = seconds_active + ?,
			    idle_seconds = idle_seconds + ?,
			    last_seen_at = ?
			WHERE id = ? AND ended_at IS NULL`,
			activeDelta, idleDelta, lastSeen, id)
		if err != nil {
			repoErr := repoerrors.NewRepositoryErrorWithContext("ExtendRecord", err, r.classifyError(err), map[string]string{
				"id": fmt.Sprintf("%d", id),
			})
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error in ExtendRecord", "error", err, "id", id)
			} else {
				logging.LogError(r.logger, repoErr, "ExtendRecord", map[string]any{"id": id})
			}
			return repoErr
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return repoerrors.WrapDatabaseError("ExtendRecord", err)
		}
		if affected == 0 {
			return repoerrors.HandleNotFound("ExtendRecord", "activity_record", fmt.Sprintf("%d", id))
		}
		return nil
	})
}

// CloseRecord seals a record at the given end time.
func (r *SQLiteRepository) CloseRecord(ctx context.Context, id int64, endedAt time.Time) error {
	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			UPDATE activity_records
			SET ended_at = ?, last_seen_at = ?
			WHERE id = ? AND ended_at IS NULL`,
			endedAt, endedAt, id)
		if err != nil {
			repoErr := repoerrors.NewRepositoryErrorWithContext("CloseRecord", err, r.classifyError(err), map[string]string{
				"id": fmt.Sprintf("%d", id),
			})
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error in CloseRecord", "error", err, "id", id)
			} else {
				logging.LogError(r.logger, repoErr, "CloseRecord", map[string]any{"id": id})
			}
			return repoErr
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return repoerrors.WrapDatabaseError("CloseRecord", err)
		}
		if affected == 0 {
			// Already closed records are left untouched; closing twice
			// must not move the end time.
			return repoerrors.HandleNotFound("CloseRecord", "activity_record", fmt.Sprintf("%d", id))
		}
		return nil
	})
}

// CloseDanglingRecords seals records a previous process left open,
// using their last seen timestamp so untracked downtime is not counted.
func (r *SQLiteRepository) CloseDanglingRecords(ctx context.Context) (int64, error) {
	var closed int64
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			UPDATE activity_records
			SET ended_at = last_seen_at
			WHERE ended_at IS NULL`)
		if err != nil {
			return repoerrors.WrapDatabaseError("CloseDanglingRecords", err)
		}
		closed, err = res.RowsAffected()
		if err != nil {
			return repoerrors.WrapDatabaseError("CloseDanglingRecords", err)
		}
		return nil
	})

	if err == nil && closed > 0 {
		r.logger.Info("Closed dangling activity records", "count", closed)
	}
	return closed, err
}

// QueryRecordsSince returns all records whose span touches [since, now),
// ordered by start time ascending. The open record, if any, is included.
func (r *SQLiteRepository) QueryRecordsSince(ctx context.Context, since time.Time) ([]types.ActivityRecord, error) {
	start := time.Now()

	var records []types.ActivityRecord
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT `+activityRecordColumns+`
			FROM activity_records
			WHERE last_seen_at >= ? OR ended_at IS NULL
			ORDER BY started_at ASC`, since)
		if err != nil {
			repoErr := repoerrors.NewRepositoryErrorWithContext("QueryRecordsSince", err, r.classifyError(err), map[string]string{
				"since": since.Format(time.RFC3339),
			})
			if repoErr.IsRetryable() {
				r.logger.Debug("Retryable error in QueryRecordsSince", "error", err)
			} else {
				logging.LogError(r.logger, repoErr, "QueryRecordsSince", nil)
			}
			return repoErr
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			record, err := scanActivityRecord(rows)
			if err != nil {
				return repoerrors.WrapDatabaseError("QueryRecordsSince", err)
			}
			records = append(records, record)
		}
		return rows.Err()
	})

	if err == nil {
		logging.LogOperation(r.logger, "QueryRecordsSince", time.Since(start), map[string]any{
			"count": len(records),
		})
	}

	return records, err
}

// RecentRecords returns the most recently started records, newest first.
func (r *SQLiteRepository) RecentRecords(ctx context.Context, limit int) ([]types.ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []types.ActivityRecord
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT `+activityRecordColumns+`
			FROM activity_records
			ORDER BY started_at DESC
			LIMIT ?`, limit)
		if err != nil {
			return repoerrors.WrapDatabaseError("RecentRecords", err)
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			record, err := scanActivityRecord(rows)
			if err != nil {
				return repoerrors.WrapDatabaseError("RecentRecords", err)
			}
			records = append(records, record)
		}
		return rows.Err()
	})

	return records, err
}

// DeleteRecordsBefore removes closed records older than the cutoff.
func (r *SQLiteRepository) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) error {
	start := time.Now()

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		_, err := r.q.ExecContext(ctx, `
			DELETE FROM activity_records
			WHERE ended_at IS NOT NULL AND ended_at < ?`, cutoff)
		if err != nil {
			return repoerrors.WrapDatabaseError("DeleteRecordsBefore", err)
		}
		return nil
	})

	if err == nil {
		logging.LogOperation(r.logger, "DeleteRecordsBefore", time.Since(start), map[string]any{
			"cutoff": cutoff.Format("2006-01-02"),
		})
	}
	return err
}

// scanActivityRecord maps one result row to a types.ActivityRecord.
func scanActivityRecord(rows *sql.Rows) (types.ActivityRecord, error) {
	var record types.ActivityRecord
	var endedAt sql.NullTime
	var bundleID, windowTitle, url, domain, category sql.NullString
	var source string

	err := rows.Scan(&record.ID, &record.StartedAt, &endedAt, &record.LastSeenAt,
		&source, &record.AppName, &bundleID, &windowTitle, &url, &domain,
		&category, &record.SecondsActive, &record.IdleSeconds)
	if err != nil {
		return record, err
	}

	record.EndedAt = timePtrFromNullTime(endedAt)
	record.Source = types.RecordSource(source)
	record.BundleID = stringFromNullString(bundleID)
	record.WindowTitle = stringFromNullString(windowTitle)
	record.URL = stringFromNullString(url)
	record.Domain = stringFromNullString(domain)
	record.Category = types.Category(stringFromNullString(category))
	return record, nil
}
