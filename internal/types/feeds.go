package types

import "time"

// ConsumptionKind tags entries in the consumption log.
type ConsumptionKind string

const (
	ConsumptionFrivolousSession ConsumptionKind = "frivolous-session"
	ConsumptionPaywallDecline   ConsumptionKind = "paywall-decline"
	ConsumptionPaywallExit      ConsumptionKind = "paywall-exit"
	ConsumptionLibraryItem      ConsumptionKind = "library-item"
)

// ConsumptionEntry is one marker in the consumption log, produced by
// the paywall/economy collaborator and read back by the metrics engine.
type ConsumptionEntry struct {
	ID        int64           `json:"id"`
	Kind      ConsumptionKind `json:"kind"`
	Day       string          `json:"day"` // YYYY-MM-DD
	Timestamp time.Time       `json:"timestamp"`
	Meta      string          `json:"meta,omitempty"`
}

// LibraryItem is a saved piece of content the user queued as a
// replacement for frivolous browsing.
type LibraryItem struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Purpose     string     `json:"purpose"`
	Note        string     `json:"note,omitempty"`
	AddedAt     time.Time  `json:"addedAt"`
	ConsumedAt  *time.Time `json:"consumedAt,omitempty"`
}

// WalletTransactionType distinguishes credits from debits.
type WalletTransactionType string

const (
	WalletEarn  WalletTransactionType = "earn"
	WalletSpend WalletTransactionType = "spend"
)

// WalletTransaction is one ledger movement, consumed read-only.
type WalletTransaction struct {
	ID        int64                 `json:"id"`
	Type      WalletTransactionType `json:"type"`
	Amount    int64                 `json:"amount"`
	Meta      string                `json:"meta,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// TimeOfDayStats is the precomputed hour-of-day histogram feed.
type TimeOfDayStats struct {
	HourSeconds [24]int64 `json:"hourSeconds"`
	PeakHour    int       `json:"peakHour"`
}

// OverviewStats is the precomputed trailing-7-day aggregate feed.
type OverviewStats struct {
	ProductiveSeconds int64          `json:"productiveSeconds"`
	FrivolousSeconds  int64          `json:"frivolousSeconds"`
	NeutralSeconds    int64          `json:"neutralSeconds"`
	IdleSeconds       int64          `json:"idleSeconds"`
	ActiveDays        int            `json:"activeDays"`
	TimeOfDay         TimeOfDayStats `json:"timeOfDay"`
}

// PageMetadata is what the library fetcher extracts from a URL.
type PageMetadata struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// FetchResult reports the outcome of a metadata fetch.
type FetchResult struct {
	Success bool         `json:"success"`
	Page    PageMetadata `json:"page,omitempty"`
	Error   string       `json:"error,omitempty"`
}
