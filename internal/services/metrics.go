package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/infrastructure/logging"
	"vigil/internal/repository"
	"vigil/internal/types"
)

const (
	// runMergeTolerance is the largest gap between productive stretches
	// still merged into one run.
	runMergeTolerance = 2 * time.Minute

	// statsWindow is the trailing window the 24-hour aggregates cover.
	statsWindow = 24 * time.Hour
)

// MetricsBuilder reduces the persisted timeline and the auxiliary feeds
// into an immutable Metrics snapshot for one achievement evaluation.
type MetricsBuilder struct {
	repository repository.ActivityRepository
	feeds      repository.FeedReader
	config     config.Provider
	aliaser    *Aliaser
	logger     logging.Logger
}

// NewMetricsBuilder creates a metrics builder over the timeline
// repository and the read-only feeds. feeds may be nil, in which case
// consumption, wallet and overview figures stay zero.
func NewMetricsBuilder(repo repository.ActivityRepository, feeds repository.FeedReader, cfg config.Provider, logger logging.Logger) *MetricsBuilder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MetricsBuilder{
		repository: repo,
		feeds:      feeds,
		config:     cfg,
		aliaser:    NewAliaser(cfg),
		logger:     logger,
	}
}

// Build scans the full timeline once and folds in the auxiliary feeds.
// A timeline read error aborts the build; feed errors degrade to zeroes
// with a warning so one bad feed cannot starve an evaluation.
func (mb *MetricsBuilder) Build(ctx context.Context, now time.Time) (*types.Metrics, error) {
	records, err := mb.repository.QueryRecordsSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	metrics := &types.Metrics{
		BuiltAt: now,
		Days:    make(map[string]*types.DayTotals),
	}

	excluded := mb.config.GetExcludedKeywords()

	mb.reduceTimeline(metrics, records, excluded, now)
	mb.foldFeeds(ctx, metrics, now)

	metrics.DayKeys = make([]string, 0, len(metrics.Days))
	for key := range metrics.Days {
		metrics.DayKeys = append(metrics.DayKeys, key)
	}
	sort.Strings(metrics.DayKeys)

	return metrics, nil
}

// reduceTimeline computes day totals, productive runs, the 24-hour
// window aggregates, recovery samples and the abstinence streak in a
// single ordered pass over the records.
func (mb *MetricsBuilder) reduceTimeline(metrics *types.Metrics, records []types.ActivityRecord, excluded []string, now time.Time) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	windowStart := now.Add(-statsWindow)
	var windowActive, windowIdle, windowFrivolous, windowProductive int64
	var windowSwitches int
	var lastWindowContext string

	var currentRun *types.Run
	var pendingFrivolousEnds []time.Time
	var lastFrivolousEnd time.Time
	var firstActivity time.Time

	for i := range records {
		rec := &records[i]

		category := rec.Category
		if matchesExcluded(excluded, rec.Domain, rec.AppName) {
			category = types.CategoryNeutral
		}

		end := rec.LastSeenAt
		if rec.EndedAt != nil {
			end = *rec.EndedAt
		}

		mb.addToDay(metrics, rec, category, end)

		if firstActivity.IsZero() {
			firstActivity = rec.StartedAt
		}

		// Productive runs, merged across gaps below the tolerance.
		if category == types.CategoryProductive && rec.SecondsActive > 0 {
			if currentRun != nil && rec.StartedAt.Sub(currentRun.End) <= runMergeTolerance {
				currentRun.End = end
				currentRun.Seconds += rec.SecondsActive
			} else {
				metrics.Runs = append(metrics.Runs, types.Run{
					Start:   rec.StartedAt,
					End:     end,
					Seconds: rec.SecondsActive,
				})
				currentRun = &metrics.Runs[len(metrics.Runs)-1]
			}
			if currentRun.Seconds > metrics.LongestRunSeconds {
				metrics.LongestRunSeconds = currentRun.Seconds
			}

			// A productive start consumes every pending frivolous end at
			// or before it, resolving their recovery samples.
			remaining := pendingFrivolousEnds[:0]
			for _, frivolousEnd := range pendingFrivolousEnds {
				if !frivolousEnd.After(rec.StartedAt) {
					minutes := rec.StartedAt.Sub(frivolousEnd).Minutes()
					metrics.RecoveryMinutes = append(metrics.RecoveryMinutes, minutes)
				} else {
					remaining = append(remaining, frivolousEnd)
				}
			}
			pendingFrivolousEnds = remaining
		}

		if category == types.CategoryFrivolous && rec.SecondsActive > 0 {
			pendingFrivolousEnds = append(pendingFrivolousEnds, end)
			if end.After(lastFrivolousEnd) {
				lastFrivolousEnd = end
			}
		}

		// Trailing 24-hour window aggregates.
		if end.After(windowStart) {
			windowActive += rec.SecondsActive
			windowIdle += rec.IdleSeconds
			switch category {
			case types.CategoryFrivolous:
				windowFrivolous += rec.SecondsActive
			case types.CategoryProductive:
				windowProductive += rec.SecondsActive
			}
			if ctxKey := mb.contextKey(rec); ctxKey != lastWindowContext {
				if lastWindowContext != "" {
					windowSwitches++
				}
				lastWindowContext = ctxKey
			}
		}
	}

	tracked := windowActive + windowIdle
	metrics.Window = types.WindowStats{
		FrivolousSeconds:  windowFrivolous,
		ProductiveSeconds: windowProductive,
		TrackedSeconds:    tracked,
	}
	if tracked > 0 {
		metrics.Window.IdleRatio = float64(windowIdle) / float64(tracked)
	}
	metrics.Window.ContextSwitchesPerHour = float64(windowSwitches) / statsWindow.Hours()

	switch {
	case !lastFrivolousEnd.IsZero():
		metrics.FrivolityAbstinenceHours = now.Sub(lastFrivolousEnd).Hours()
	case !firstActivity.IsZero():
		metrics.FrivolityAbstinenceHours = now.Sub(firstActivity).Hours()
	}
}

// addToDay folds one record into its calendar day's totals. Records are
// attributed to the day they started on.
func (mb *MetricsBuilder) addToDay(metrics *types.Metrics, rec *types.ActivityRecord, category types.Category, end time.Time) {
	key := rec.StartedAt.Format("2006-01-02")
	day, ok := metrics.Days[key]
	if !ok {
		day = &types.DayTotals{
			Day:             key,
			CategorySeconds: make(map[types.Category]int64),
		}
		metrics.Days[key] = day
	}

	day.CategorySeconds[category] += rec.SecondsActive
	day.IdleSeconds += rec.IdleSeconds

	if day.FirstActivity.IsZero() || rec.StartedAt.Before(day.FirstActivity) {
		day.FirstActivity = rec.StartedAt
	}

	hour := rec.StartedAt.Hour()
	switch category {
	case types.CategoryProductive:
		if day.FirstProductive.IsZero() || rec.StartedAt.Before(day.FirstProductive) {
			day.FirstProductive = rec.StartedAt
		}
		if hour < 12 {
			day.MorningProductive += rec.SecondsActive
		}
	case types.CategoryFrivolous:
		if hour >= 12 && hour < 18 {
			day.AfternoonFrivolous += rec.SecondsActive
		}
		if hour >= 22 || hour < 4 {
			day.LateNightFrivolous += rec.SecondsActive
		}
	}
}

// foldFeeds mixes the consumption log, wallet ledger, library items and
// the precomputed 7-day overview into the snapshot.
func (mb *MetricsBuilder) foldFeeds(ctx context.Context, metrics *types.Metrics, now time.Time) {
	if mb.feeds == nil {
		return
	}

	entries, err := mb.feeds.ConsumptionEntriesSince(ctx, time.Time{})
	if err != nil {
		mb.logger.Warn("Consumption log unavailable for metrics", "error", err)
	}
	for _, entry := range entries {
		switch entry.Kind {
		case types.ConsumptionFrivolousSession:
			metrics.FrivolousSessions++
		case types.ConsumptionPaywallDecline:
			metrics.PaywallDeclines++
			if day, ok := metrics.Days[entry.Day]; ok {
				day.PaywallDeclines++
			}
		case types.ConsumptionPaywallExit:
			metrics.PaywallExits++
		}
	}

	items, err := mb.feeds.ListLibraryItems(ctx)
	if err != nil {
		mb.logger.Warn("Library items unavailable for metrics", "error", err)
	}
	for _, item := range items {
		if item.ConsumedAt != nil {
			metrics.LibraryReplaces++
		}
	}

	transactions, err := mb.feeds.WalletTransactionsSince(ctx, time.Time{})
	if err != nil {
		mb.logger.Warn("Wallet ledger unavailable for metrics", "error", err)
	}
	for _, tx := range transactions {
		delta := tx.Amount
		switch tx.Type {
		case types.WalletEarn:
			metrics.TotalEarned += tx.Amount
		case types.WalletSpend:
			metrics.TotalSpent += tx.Amount
			delta = -tx.Amount
		}
		if day, ok := metrics.Days[tx.Timestamp.Format("2006-01-02")]; ok {
			day.WalletDelta += delta
		}
	}

	balance, err := mb.feeds.WalletBalance(ctx)
	if err != nil {
		mb.logger.Warn("Wallet balance unavailable for metrics", "error", err)
	} else {
		metrics.WalletBalance = balance
	}

	overview, err := mb.feeds.OverviewStats(ctx, now)
	if err != nil {
		mb.logger.Warn("Overview stats unavailable for metrics", "error", err)
	} else {
		metrics.Overview = overview
	}
}

// contextKey canonicalises the record's grouping key the same way the
// classifier does, so records persisted before an alias table change
// still land in the canonical bucket.
func (mb *MetricsBuilder) contextKey(rec *types.ActivityRecord) string {
	if rec.Domain != "" {
		return mb.aliaser.CanonicalDomain(rec.Domain)
	}
	return mb.aliaser.CanonicalApp(rec.AppName)
}

// matchesExcluded reports whether an excluded keyword suppresses this
// context from scoring. Keywords match as loose substrings of the
// domain or the app name.
func matchesExcluded(keywords []string, domain, appName string) bool {
	if len(keywords) == 0 {
		return false
	}
	d := strings.ToLower(domain)
	a := strings.ToLower(appName)
	for _, keyword := range keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k == "" {
			continue
		}
		if strings.Contains(d, k) || strings.Contains(a, k) {
			return true
		}
	}
	return false
}
