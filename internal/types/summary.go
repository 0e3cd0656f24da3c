package types

import "time"

// ContextTotal is an aggregate of tracked seconds for one domain/app
// context.
type ContextTotal struct {
	Context string `json:"context"`
	Seconds int64  `json:"seconds"`
}

// SummaryBucket is one hourly bin of the activity summary.
type SummaryBucket struct {
	Start            time.Time          `json:"start"`
	CategorySeconds  map[Category]int64 `json:"categorySeconds"`
	IdleSeconds      int64              `json:"idleSeconds"`
	DominantCategory Category           `json:"dominantCategory"`
	TopContext       string             `json:"topContext,omitempty"`
}

// ActivitySummary is the bucketed view of the persisted timeline over a
// trailing window.
type ActivitySummary struct {
	WindowHours     int                `json:"windowHours"`
	From            time.Time          `json:"from"`
	To              time.Time          `json:"to"`
	CategorySeconds map[Category]int64 `json:"categorySeconds"`
	IdleSeconds     int64              `json:"idleSeconds"`
	Buckets         []SummaryBucket    `json:"buckets"`
	TopContexts     []ContextTotal     `json:"topContexts"`
}
