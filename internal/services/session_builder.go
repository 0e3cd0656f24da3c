package services

import (
	"context"
	"math"
	"sync"
	"time"

	"vigil/internal/infrastructure/logging"
	"vigil/internal/repository"
	"vigil/internal/types"
)

const (
	// coalesceWindow is the minimum spacing between two samples of the
	// same context before a persistence write happens; faster samples
	// only advance the in-memory cursor.
	coalesceWindow = time.Second

	// gapCeilingSeconds is the largest same-context delta credited to a
	// session. Anything larger is treated as a sleep/lock transition.
	gapCeilingSeconds = 120

	// sleepIdleGraceSeconds is the fixed idle credit given to the record
	// opened after a sleep/lock gap, instead of the literal gap.
	sleepIdleGraceSeconds = 5
)

// currentSession is the single in-memory cursor over the open
// ActivityRecord. Owned exclusively by one SessionBuilder instance.
type currentSession struct {
	id            int64
	appName       string
	bundleID      string
	domain        string
	category      types.Category
	source        types.RecordSource
	startedAt     time.Time
	lastTimestamp time.Time
	secondsActive int64
	idleSeconds   int64
	persisted     bool
}

// SessionBuilder turns classified activity events into merged,
// gap-bounded activity records. At most one record is open at any time;
// rotation closes the old record and opens the next in one step.
type SessionBuilder struct {
	mu         sync.Mutex
	repository repository.ActivityRepository
	logger     logging.Logger
	current    *currentSession
}

// NewSessionBuilder creates a session builder. A nil repository is
// allowed and means tracking runs unpersisted (degraded mode).
func NewSessionBuilder(repo repository.ActivityRepository, logger logging.Logger) *SessionBuilder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SessionBuilder{
		repository: repo,
		logger:     logger,
	}
}

// RecordActivity folds one classified event into the open session,
// rotating, coalescing or splitting as the deltas dictate. Events whose
// timestamp is not newer than the session cursor are dropped entirely.
func (sb *SessionBuilder) RecordActivity(ctx context.Context, activity types.ClassifiedActivity) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Ordering guard: replayed or out-of-order packets must not rewind
	// tracked time.
	if sb.current != nil && !activity.Timestamp.After(sb.current.lastTimestamp) {
		sb.logger.Debug("Dropping stale observation",
			"timestamp", activity.Timestamp,
			"cursor", sb.current.lastTimestamp)
		return nil
	}

	if sb.current == nil || !sb.sameContext(activity) {
		return sb.rotate(ctx, activity)
	}

	cur := sb.current
	deltaMs := activity.Timestamp.Sub(cur.lastTimestamp)
	if deltaMs < coalesceWindow {
		// Duplicate or too-fast sample; advance the cursor only.
		cur.lastTimestamp = activity.Timestamp
		return nil
	}

	deltaSeconds := int64(math.Round(deltaMs.Seconds()))
	if deltaSeconds > gapCeilingSeconds {
		// Sleep/lock transition. Close the record at its last known
		// timestamp so the untracked gap never inflates it, then start
		// fresh with a small idle grace.
		sb.closeCurrent(ctx, cur.lastTimestamp)
		return sb.open(ctx, activity, sleepIdleGraceSeconds)
	}

	idle := int64(math.Round(activity.IdleSeconds))
	if idle > deltaSeconds {
		idle = deltaSeconds
	}
	active := deltaSeconds - idle

	if cur.persisted {
		err := sb.repository.ExtendRecord(ctx, cur.id, activity.Timestamp, active, idle)
		if err != nil {
			sb.logger.Error("Failed to extend activity record",
				"id", cur.id, "error", err)
		}
	}

	cur.secondsActive += active
	cur.idleSeconds += idle
	cur.lastTimestamp = activity.Timestamp
	return nil
}

// GetRecent returns the most recent persisted records, newest first.
func (sb *SessionBuilder) GetRecent(ctx context.Context, limit int) ([]types.ActivityRecord, error) {
	if sb.repository == nil {
		return nil, nil
	}
	return sb.repository.RecentRecords(ctx, limit)
}

// Stop closes any open session at the current time. Called on process
// shutdown so no record is left dangling.
func (sb *SessionBuilder) Stop(ctx context.Context) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.closeCurrent(ctx, time.Now())
}

// sameContext reports whether the event belongs to the open session.
// The grouping triple is (appName, domain, category); app names and
// domains arrive already canonicalised by the classifier.
func (sb *SessionBuilder) sameContext(activity types.ClassifiedActivity) bool {
	cur := sb.current
	return cur.appName == activity.AppName &&
		cur.domain == activity.Domain &&
		cur.category == activity.Category
}

// rotate closes the open session at the event's timestamp and opens a
// new one for it.
func (sb *SessionBuilder) rotate(ctx context.Context, activity types.ClassifiedActivity) error {
	if sb.current != nil {
		sb.closeCurrent(ctx, activity.Timestamp)
	}
	return sb.open(ctx, activity, 0)
}

func (sb *SessionBuilder) open(ctx context.Context, activity types.ClassifiedActivity, idleGrace int64) error {
	source := types.SourceApp
	if activity.Domain != "" || activity.URL != "" {
		source = types.SourceURL
	}

	cur := &currentSession{
		appName:       activity.AppName,
		bundleID:      activity.BundleID,
		domain:        activity.Domain,
		category:      activity.Category,
		source:        source,
		startedAt:     activity.Timestamp,
		lastTimestamp: activity.Timestamp,
		idleSeconds:   idleGrace,
	}
	sb.current = cur

	if sb.repository == nil {
		return nil
	}

	record := &types.ActivityRecord{
		StartedAt:   activity.Timestamp,
		LastSeenAt:  activity.Timestamp,
		Source:      source,
		AppName:     activity.AppName,
		BundleID:    activity.BundleID,
		WindowTitle: activity.WindowTitle,
		URL:         activity.URL,
		Domain:      activity.Domain,
		Category:    activity.Category,
		IdleSeconds: idleGrace,
	}
	id, err := sb.repository.InsertOpenRecord(ctx, record)
	if err != nil {
		sb.logger.Error("Failed to open activity record",
			"app", activity.AppName, "domain", activity.Domain, "error", err)
		return err
	}
	cur.id = id
	cur.persisted = true
	return nil
}

// closeCurrent closes the open record, if any, at the given time.
// Caller holds the lock.
func (sb *SessionBuilder) closeCurrent(ctx context.Context, endedAt time.Time) {
	cur := sb.current
	if cur == nil {
		return
	}
	sb.current = nil

	if !cur.persisted {
		return
	}
	if endedAt.Before(cur.lastTimestamp) {
		endedAt = cur.lastTimestamp
	}
	if err := sb.repository.CloseRecord(ctx, cur.id, endedAt); err != nil {
		sb.logger.Error("Failed to close activity record",
			"id", cur.id, "error", err)
	}
}
