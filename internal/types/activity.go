package types

import "time"

// Origin identifies which sensor produced an observation
type Origin string

const (
	OriginSystem    Origin = "system"
	OriginExtension Origin = "extension"
)

// Category is the behavioral classification of an activity
type Category string

const (
	CategoryProductive Category = "productive"
	CategoryNeutral    Category = "neutral"
	CategoryFrivolous  Category = "frivolous"
	CategoryIdle       Category = "idle"
)

// RecordSource distinguishes app-level records from url-level records
type RecordSource string

const (
	SourceApp RecordSource = "app"
	SourceURL RecordSource = "url"
)

// Observation is one raw foreground-app/URL/idle sample from a poller
// or the browser extension. Observations are ephemeral and never
// persisted as such.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`
	Origin      Origin    `json:"origin"`
	AppName     string    `json:"appName"`
	BundleID    string    `json:"bundleId,omitempty"`
	WindowTitle string    `json:"windowTitle,omitempty"`
	URL         string    `json:"url,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	IdleSeconds float64   `json:"idleSeconds,omitempty"`
}

// ClassifiedActivity is an Observation annotated with its resolved
// category and idle flag. Transient; consumed by the session builder
// and downstream collaborators.
type ClassifiedActivity struct {
	Observation
	Category          Category `json:"category"`
	IsIdle            bool     `json:"isIdle"`
	ContinuityApplied bool     `json:"continuityApplied,omitempty"`
}

// ActivityRecord is a persisted, possibly-still-open span of time
// attributed to one (app, domain, category) context.
//
// Invariants: at most one record is open (EndedAt nil) at any time;
// for a closed record SecondsActive+IdleSeconds never exceeds
// EndedAt-StartedAt.
type ActivityRecord struct {
	ID            int64        `json:"id"`
	StartedAt     time.Time    `json:"startedAt"`
	EndedAt       *time.Time   `json:"endedAt,omitempty"`
	LastSeenAt    time.Time    `json:"lastSeenAt"`
	Source        RecordSource `json:"source"`
	AppName       string       `json:"appName"`
	BundleID      string       `json:"bundleId,omitempty"`
	WindowTitle   string       `json:"windowTitle,omitempty"`
	URL           string       `json:"url,omitempty"`
	Domain        string       `json:"domain,omitempty"`
	Category      Category     `json:"category,omitempty"`
	SecondsActive int64        `json:"secondsActive"`
	IdleSeconds   int64        `json:"idleSeconds"`
}

// Context returns the grouping key for the record: the domain when the
// record is url-sourced, the app name otherwise.
func (r *ActivityRecord) Context() string {
	if r.Domain != "" {
		return r.Domain
	}
	return r.AppName
}

// Open reports whether the record is still accumulating time.
func (r *ActivityRecord) Open() bool {
	return r.EndedAt == nil
}
