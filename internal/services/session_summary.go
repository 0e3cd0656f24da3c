package services

import (
	"context"
	"sort"
	"time"

	"vigil/internal/types"
)

const (
	minSummaryWindowHours = 1
	maxSummaryWindowHours = 168
	topContextLimit       = 8
)

// GetSummary buckets the persisted timeline over a trailing window into
// hourly bins. The window is clamped to [1h, 168h].
func (sb *SessionBuilder) GetSummary(ctx context.Context, windowHours int) (*types.ActivitySummary, error) {
	if sb.repository == nil {
		return emptySummary(windowHours, time.Now()), nil
	}

	now := time.Now()
	if windowHours < minSummaryWindowHours {
		windowHours = minSummaryWindowHours
	}
	if windowHours > maxSummaryWindowHours {
		windowHours = maxSummaryWindowHours
	}
	from := now.Add(-time.Duration(windowHours) * time.Hour)

	records, err := sb.repository.QueryRecordsSince(ctx, from)
	if err != nil {
		return nil, err
	}

	return buildSummary(records, from, now, windowHours), nil
}

// buildSummary is the pure reduction behind GetSummary.
func buildSummary(records []types.ActivityRecord, from, to time.Time, windowHours int) *types.ActivitySummary {
	summary := emptySummary(windowHours, to)
	summary.From = from

	type bucketAccum struct {
		category map[types.Category]int64
		idle     int64
		contexts map[string]int64
	}

	bucketStart := from.Truncate(time.Hour)
	bucketCount := 0
	for t := bucketStart; t.Before(to); t = t.Add(time.Hour) {
		bucketCount++
	}
	accums := make([]bucketAccum, bucketCount)
	for i := range accums {
		accums[i] = bucketAccum{
			category: make(map[types.Category]int64),
			contexts: make(map[string]int64),
		}
	}

	contextTotals := make(map[string]int64)

	for i := range records {
		rec := &records[i]
		recEnd := rec.LastSeenAt
		if rec.EndedAt != nil {
			recEnd = *rec.EndedAt
		}

		start := rec.StartedAt
		if start.Before(from) {
			start = from
		}
		end := recEnd
		if end.After(to) {
			end = to
		}
		if !end.After(start) {
			// Zero-length span; drop everything into the start bucket.
			end = start.Add(time.Second)
		}

		// Fractions are taken against the record's full duration, so a
		// record straddling the window edge contributes only its
		// in-window share of seconds.
		duration := recEnd.Sub(rec.StartedAt).Seconds()
		if inWindow := end.Sub(start).Seconds(); duration < inWindow {
			duration = inWindow
		}
		ctxKey := rec.Context()

		// Apportion the record's seconds across the hourly bins it
		// overlaps, proportionally to the overlap.
		for cursor := start; cursor.Before(end); {
			bucketEnd := cursor.Truncate(time.Hour).Add(time.Hour)
			if bucketEnd.After(end) {
				bucketEnd = end
			}
			idx := int(cursor.Truncate(time.Hour).Sub(bucketStart) / time.Hour)
			if idx >= 0 && idx < bucketCount {
				fraction := bucketEnd.Sub(cursor).Seconds() / duration
				active := int64(fraction * float64(rec.SecondsActive))
				idle := int64(fraction * float64(rec.IdleSeconds))
				accums[idx].category[rec.Category] += active
				accums[idx].idle += idle
				accums[idx].contexts[ctxKey] += active
			}
			cursor = bucketEnd
		}

		share := end.Sub(start).Seconds() / duration
		windowActive := int64(share * float64(rec.SecondsActive))
		summary.CategorySeconds[rec.Category] += windowActive
		summary.IdleSeconds += int64(share * float64(rec.IdleSeconds))
		contextTotals[ctxKey] += windowActive
	}

	for i := 0; i < bucketCount; i++ {
		bucket := types.SummaryBucket{
			Start:           bucketStart.Add(time.Duration(i) * time.Hour),
			CategorySeconds: accums[i].category,
			IdleSeconds:     accums[i].idle,
		}
		bucket.DominantCategory = dominantCategory(accums[i].category)
		bucket.TopContext = topContext(accums[i].contexts)
		summary.Buckets = append(summary.Buckets, bucket)
	}

	summary.TopContexts = rankContexts(contextTotals, topContextLimit)
	return summary
}

func emptySummary(windowHours int, to time.Time) *types.ActivitySummary {
	return &types.ActivitySummary{
		WindowHours:     windowHours,
		To:              to,
		CategorySeconds: make(map[types.Category]int64),
	}
}

// dominantCategory picks the category with the most seconds in a
// bucket; idle is the fallback when nothing was tracked.
func dominantCategory(seconds map[types.Category]int64) types.Category {
	dominant := types.CategoryIdle
	var best int64
	for _, cat := range []types.Category{
		types.CategoryProductive,
		types.CategoryNeutral,
		types.CategoryFrivolous,
	} {
		if seconds[cat] > best {
			best = seconds[cat]
			dominant = cat
		}
	}
	return dominant
}

func topContext(contexts map[string]int64) string {
	var top string
	var best int64
	for ctxKey, seconds := range contexts {
		if seconds > best || (seconds == best && seconds > 0 && ctxKey < top) {
			best = seconds
			top = ctxKey
		}
	}
	return top
}

func rankContexts(totals map[string]int64, limit int) []types.ContextTotal {
	ranked := make([]types.ContextTotal, 0, len(totals))
	for ctxKey, seconds := range totals {
		if ctxKey == "" || seconds == 0 {
			continue
		}
		ranked = append(ranked, types.ContextTotal{Context: ctxKey, Seconds: seconds})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Seconds != ranked[j].Seconds {
			return ranked[i].Seconds > ranked[j].Seconds
		}
		return ranked[i].Context < ranked[j].Context
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
