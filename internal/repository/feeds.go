package repository

import (
	"context"
	"database/sql"
	"time"

	repoerrors "vigil/internal/infrastructure/errors"
	"vigil/internal/types"
)

// ConsumptionEntriesSince returns consumption-log markers at or after
// the given time, ordered ascending.
func (r *SQLiteRepository) ConsumptionEntriesSince(ctx context.Context, since time.Time) ([]types.ConsumptionEntry, error) {
	var entries []types.ConsumptionEntry
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT id, kind, day, ts, meta
			FROM consumption_log
			WHERE ts >= ?
			ORDER BY ts ASC`, since)
		if err != nil {
			return repoerrors.WrapDatabaseError("ConsumptionEntriesSince", err)
		}
		defer rows.Close()

		entries = entries[:0]
		for rows.Next() {
			var e types.ConsumptionEntry
			var kind string
			if err := rows.Scan(&e.ID, &kind, &e.Day, &e.Timestamp, &e.Meta); err != nil {
				return repoerrors.WrapDatabaseError("ConsumptionEntriesSince", err)
			}
			e.Kind = types.ConsumptionKind(kind)
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}

// AddConsumptionEntry appends a marker to the consumption log.
func (r *SQLiteRepository) AddConsumptionEntry(ctx context.Context, entry types.ConsumptionEntry) (int64, error) {
	if entry.Kind == "" {
		return 0, repoerrors.HandleValidationError("AddConsumptionEntry", "kind", "", "kind is required")
	}
	if entry.Day == "" {
		entry.Day = entry.Timestamp.Format("2006-01-02")
	}

	var id int64
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO consumption_log (kind, day, ts, meta)
			VALUES (?, ?, ?, ?)`,
			string(entry.Kind), entry.Day, entry.Timestamp, entry.Meta)
		if err != nil {
			return repoerrors.WrapDatabaseError("AddConsumptionEntry", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return repoerrors.WrapDatabaseError("AddConsumptionEntry", err)
		}
		return nil
	})
	return id, err
}

// ListLibraryItems returns all saved library items, newest first.
func (r *SQLiteRepository) ListLibraryItems(ctx context.Context) ([]types.LibraryItem, error) {
	var items []types.LibraryItem
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT id, url, title, description, purpose, note, added_at, consumed_at
			FROM library_items
			ORDER BY added_at DESC`)
		if err != nil {
			return repoerrors.WrapDatabaseError("ListLibraryItems", err)
		}
		defer rows.Close()

		items = items[:0]
		for rows.Next() {
			var item types.LibraryItem
			var consumedAt sql.NullTime
			if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.Description,
				&item.Purpose, &item.Note, &item.AddedAt, &consumedAt); err != nil {
				return repoerrors.WrapDatabaseError("ListLibraryItems", err)
			}
			item.ConsumedAt = timePtrFromNullTime(consumedAt)
			items = append(items, item)
		}
		return rows.Err()
	})
	return items, err
}

// AddLibraryItem persists a new library item and returns its id.
func (r *SQLiteRepository) AddLibraryItem(ctx context.Context, item types.LibraryItem) (int64, error) {
	if item.URL == "" {
		return 0, repoerrors.HandleValidationError("AddLibraryItem", "url", "", "url is required")
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	if item.Purpose == "" {
		item.Purpose = "replace"
	}

	var id int64
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO library_items (url, title, description, purpose, note, added_at, consumed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.URL, item.Title, item.Description, item.Purpose, item.Note,
			item.AddedAt, nullTimeFromTimePtr(item.ConsumedAt))
		if err != nil {
			return repoerrors.WrapDatabaseError("AddLibraryItem", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return repoerrors.WrapDatabaseError("AddLibraryItem", err)
		}
		return nil
	})
	return id, err
}

// MarkLibraryItemConsumed stamps a library item as consumed.
func (r *SQLiteRepository) MarkLibraryItemConsumed(ctx context.Context, id int64, consumedAt time.Time) error {
	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			UPDATE library_items SET consumed_at = ? WHERE id = ?`, consumedAt, id)
		if err != nil {
			return repoerrors.WrapDatabaseError("MarkLibraryItemConsumed", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return repoerrors.WrapDatabaseError("MarkLibraryItemConsumed", err)
		}
		if affected == 0 {
			return repoerrors.HandleNotFound("MarkLibraryItemConsumed", "library_item", "")
		}
		return nil
	})
}

// WalletTransactionsSince returns ledger movements at or after the
// given time, ordered ascending.
func (r *SQLiteRepository) WalletTransactionsSince(ctx context.Context, since time.Time) ([]types.WalletTransaction, error) {
	var txs []types.WalletTransaction
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT id, type, amount, meta, ts
			FROM wallet_transactions
			WHERE ts >= ?
			ORDER BY ts ASC`, since)
		if err != nil {
			return repoerrors.WrapDatabaseError("WalletTransactionsSince", err)
		}
		defer rows.Close()

		txs = txs[:0]
		for rows.Next() {
			var tx types.WalletTransaction
			var txType string
			if err := rows.Scan(&tx.ID, &txType, &tx.Amount, &tx.Meta, &tx.Timestamp); err != nil {
				return repoerrors.WrapDatabaseError("WalletTransactionsSince", err)
			}
			tx.Type = types.WalletTransactionType(txType)
			txs = append(txs, tx)
		}
		return rows.Err()
	})
	return txs, err
}

// WalletBalance computes the current balance from the full ledger.
func (r *SQLiteRepository) WalletBalance(ctx context.Context) (int64, error) {
	var balance int64
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		err := r.q.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(CASE WHEN type = 'earn' THEN amount ELSE -amount END), 0)
			FROM wallet_transactions`).Scan(&balance)
		if err != nil {
			return repoerrors.WrapDatabaseError("WalletBalance", err)
		}
		return nil
	})
	return balance, err
}

// AddWalletTransaction appends a ledger movement and returns its id.
func (r *SQLiteRepository) AddWalletTransaction(ctx context.Context, tx types.WalletTransaction) (int64, error) {
	if tx.Type != types.WalletEarn && tx.Type != types.WalletSpend {
		return 0, repoerrors.HandleValidationError("AddWalletTransaction", "type", string(tx.Type), "type must be earn or spend")
	}
	if tx.Amount < 0 {
		return 0, repoerrors.HandleValidationError("AddWalletTransaction", "amount", "", "amount must be non-negative")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}

	var id int64
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO wallet_transactions (type, amount, meta, ts)
			VALUES (?, ?, ?, ?)`,
			string(tx.Type), tx.Amount, tx.Meta, tx.Timestamp)
		if err != nil {
			return repoerrors.WrapDatabaseError("AddWalletTransaction", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return repoerrors.WrapDatabaseError("AddWalletTransaction", err)
		}
		return nil
	})
	return id, err
}

// OverviewStats computes the trailing-7-day aggregate, including the
// hour-of-day histogram, straight from the persisted timeline. The
// metrics engine folds this in as an externally computed feed.
func (r *SQLiteRepository) OverviewStats(ctx context.Context, now time.Time) (*types.OverviewStats, error) {
	since := now.AddDate(0, 0, -7)

	stats := &types.OverviewStats{}
	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		row := r.q.QueryRowContext(ctx, `
			SELECT
				COALESCE(SUM(CASE WHEN category = 'productive' THEN seconds_active ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN category = 'frivolous' THEN seconds_active ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN category = 'neutral' OR category IS NULL THEN seconds_active ELSE 0 END), 0),
				COALESCE(SUM(idle_seconds), 0),
				COUNT(DISTINCT DATE(started_at))
			FROM activity_records
			WHERE started_at >= ?`, since)
		if err := row.Scan(&stats.ProductiveSeconds, &stats.FrivolousSeconds,
			&stats.NeutralSeconds, &stats.IdleSeconds, &stats.ActiveDays); err != nil {
			return repoerrors.WrapDatabaseError("OverviewStats", err)
		}

		rows, err := r.q.QueryContext(ctx, `
			SELECT CAST(STRFTIME('%H', started_at) AS INTEGER) AS hour,
			       COALESCE(SUM(seconds_active), 0)
			FROM activity_records
			WHERE started_at >= ?
			GROUP BY hour`, since)
		if err != nil {
			return repoerrors.WrapDatabaseError("OverviewStats", err)
		}
		defer rows.Close()

		var peak int64 = -1
		for rows.Next() {
			var hour int
			var seconds int64
			if err := rows.Scan(&hour, &seconds); err != nil {
				return repoerrors.WrapDatabaseError("OverviewStats", err)
			}
			if hour < 0 || hour > 23 {
				continue
			}
			stats.TimeOfDay.HourSeconds[hour] = seconds
			if seconds > peak {
				peak = seconds
				stats.TimeOfDay.PeakHour = hour
			}
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return stats, nil
}
