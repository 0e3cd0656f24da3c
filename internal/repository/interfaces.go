package repository

import (
	"context"
	"time"

	"vigil/internal/types"
)

// ActivityRepository defines the persistence interface for the activity
// timeline, earned trophies, and JSON-valued settings state.
type ActivityRepository interface {
	// Timeline operations
	InsertOpenRecord(ctx context.Context, record *types.ActivityRecord) (int64, error)
	ExtendRecord(ctx context.Context, id int64, lastSeen time.Time, activeDelta, idleDelta int64) error
	CloseRecord(ctx context.Context, id int64, endedAt time.Time) error
	// CloseDanglingRecords closes records left open by a crash at their
	// last seen timestamp. Returns the number of records closed.
	CloseDanglingRecords(ctx context.Context) (int64, error)
	QueryRecordsSince(ctx context.Context, since time.Time) ([]types.ActivityRecord, error)
	RecentRecords(ctx context.Context, limit int) ([]types.ActivityRecord, error)
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time) error

	// Trophy operations
	ListEarned(ctx context.Context) ([]types.EarnedTrophy, error)
	UpsertEarned(ctx context.Context, earned types.EarnedTrophy) error
	DeleteAllEarned(ctx context.Context) error

	// Settings-backed JSON state (personal bests, pinned list)
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}) error

	// Transaction support
	WithTransaction(ctx context.Context, fn func(repo ActivityRepository) error) error
}

// FeedReader is the read-only view of the auxiliary feeds the metrics
// engine folds in: consumption-log markers, library items, wallet
// movements, and the precomputed 7-day overview.
type FeedReader interface {
	ConsumptionEntriesSince(ctx context.Context, since time.Time) ([]types.ConsumptionEntry, error)
	ListLibraryItems(ctx context.Context) ([]types.LibraryItem, error)
	WalletTransactionsSince(ctx context.Context, since time.Time) ([]types.WalletTransaction, error)
	WalletBalance(ctx context.Context) (int64, error)
	OverviewStats(ctx context.Context, now time.Time) (*types.OverviewStats, error)
}

// FeedWriter is used by the economy/paywall collaborators and the app
// shell to append feed rows. The core never writes feeds.
type FeedWriter interface {
	AddConsumptionEntry(ctx context.Context, entry types.ConsumptionEntry) (int64, error)
	AddLibraryItem(ctx context.Context, item types.LibraryItem) (int64, error)
	MarkLibraryItemConsumed(ctx context.Context, id int64, consumedAt time.Time) error
	AddWalletTransaction(ctx context.Context, tx types.WalletTransaction) (int64, error)
}
