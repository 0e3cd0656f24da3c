package services

import (
	"context"
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/types"
)

func seedRecord(t *testing.T, repo *MockRepository, rec types.ActivityRecord) {
	t.Helper()
	open := rec
	open.SecondsActive = 0
	open.IdleSeconds = 0
	open.EndedAt = nil
	id, err := repo.InsertOpenRecord(context.Background(), &open)
	if err != nil {
		t.Fatalf("InsertOpenRecord failed: %v", err)
	}
	if rec.SecondsActive > 0 || rec.IdleSeconds > 0 {
		if err := repo.ExtendRecord(context.Background(), id, rec.LastSeenAt, rec.SecondsActive, rec.IdleSeconds); err != nil {
			t.Fatalf("ExtendRecord failed: %v", err)
		}
	}
	if rec.EndedAt != nil {
		if err := repo.CloseRecord(context.Background(), id, *rec.EndedAt); err != nil {
			t.Fatalf("CloseRecord failed: %v", err)
		}
	}
}

func newTestMetricsBuilder(repo *MockRepository) *MetricsBuilder {
	return NewMetricsBuilder(repo, repo, testProvider(), nil)
}

func TestMetricsDayTotals(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(morning, 3600, "Code", "", types.CategoryProductive, 60))
	seedRecord(t, repo, closedRecord(morning.Add(2*time.Hour), 600, "Chrome", "youtube.com", types.CategoryFrivolous, 0))
	afternoon := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	seedRecord(t, repo, closedRecord(afternoon, 1200, "Chrome", "youtube.com", types.CategoryFrivolous, 0))

	metrics, err := newTestMetricsBuilder(repo).Build(ctx, afternoon.Add(time.Hour))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	day, ok := metrics.Days["2026-03-10"]
	if !ok {
		t.Fatal("expected totals for 2026-03-10")
	}
	if day.CategorySeconds[types.CategoryProductive] != 3600 {
		t.Errorf("productive = %d, want 3600", day.CategorySeconds[types.CategoryProductive])
	}
	if day.CategorySeconds[types.CategoryFrivolous] != 1800 {
		t.Errorf("frivolous = %d, want 1800", day.CategorySeconds[types.CategoryFrivolous])
	}
	if day.IdleSeconds != 60 {
		t.Errorf("idle = %d, want 60", day.IdleSeconds)
	}
	if !day.FirstActivity.Equal(morning) {
		t.Errorf("firstActivity = %v, want %v", day.FirstActivity, morning)
	}
	if !day.FirstProductive.Equal(morning) {
		t.Errorf("firstProductive = %v, want %v", day.FirstProductive, morning)
	}
	if day.MorningProductive != 3600 {
		t.Errorf("morningProductive = %d, want 3600", day.MorningProductive)
	}
	if day.AfternoonFrivolous != 1200 {
		t.Errorf("afternoonFrivolous = %d, want 1200", day.AfternoonFrivolous)
	}
	if len(metrics.DayKeys) != 1 || metrics.DayKeys[0] != "2026-03-10" {
		t.Errorf("dayKeys = %v, want [2026-03-10]", metrics.DayKeys)
	}
}

func TestMetricsRunsMergeAcrossSmallGaps(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Three productive stretches: the first two are 90s apart (merged),
	// the third follows a 10-minute gap (new run).
	first := closedRecord(base, 600, "Code", "", types.CategoryProductive, 0)
	seedRecord(t, repo, first)
	seedRecord(t, repo, closedRecord(first.EndedAt.Add(90*time.Second), 300, "Code", "", types.CategoryProductive, 0))
	seedRecord(t, repo, closedRecord(base.Add(30*time.Minute), 1200, "Code", "", types.CategoryProductive, 0))

	metrics, err := newTestMetricsBuilder(repo).Build(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(metrics.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(metrics.Runs))
	}
	if metrics.Runs[0].Seconds != 900 {
		t.Errorf("merged run seconds = %d, want 900", metrics.Runs[0].Seconds)
	}
	if metrics.LongestRunSeconds != 1200 {
		t.Errorf("longest run = %d, want 1200", metrics.LongestRunSeconds)
	}
}

func TestMetricsRecoveryPendingQueue(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Frivolous stretch ends, then a second one, then productive work
	// starts 10 minutes after the first ended: both pending ends
	// resolve against that start.
	frivolous1 := closedRecord(base, 300, "Chrome", "youtube.com", types.CategoryFrivolous, 0)
	seedRecord(t, repo, frivolous1)
	seedRecord(t, repo, closedRecord(base.Add(6*time.Minute), 120, "Chrome", "reddit.com", types.CategoryFrivolous, 0))
	productiveStart := frivolous1.EndedAt.Add(10 * time.Minute)
	seedRecord(t, repo, closedRecord(productiveStart, 600, "Code", "", types.CategoryProductive, 0))

	metrics, err := newTestMetricsBuilder(repo).Build(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(metrics.RecoveryMinutes) != 2 {
		t.Fatalf("expected 2 recovery samples, got %d", len(metrics.RecoveryMinutes))
	}
	if metrics.RecoveryMinutes[0] != 10 {
		t.Errorf("first recovery = %v minutes, want 10", metrics.RecoveryMinutes[0])
	}
}

func TestMetricsExcludedKeywordsForceNeutral(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(base, 600, "Chrome", "youtube.com", types.CategoryFrivolous, 0))

	provider := config.NewStaticProvider(&config.Settings{
		Categorisation: config.Categorisation{
			Frivolity: []string{"youtube.com"},
		},
		ExcludedKeywords: []string{"youtube"},
	})
	builder := NewMetricsBuilder(repo, repo, provider, nil)

	metrics, err := builder.Build(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	day := metrics.Days["2026-03-10"]
	if day.CategorySeconds[types.CategoryFrivolous] != 0 {
		t.Errorf("excluded context still scored frivolous: %d seconds",
			day.CategorySeconds[types.CategoryFrivolous])
	}
	if day.CategorySeconds[types.CategoryNeutral] != 600 {
		t.Errorf("excluded context neutral seconds = %d, want 600",
			day.CategorySeconds[types.CategoryNeutral])
	}
	// Abstinence must also ignore the excluded frivolity.
	if metrics.FrivolityAbstinenceHours < 0.9 {
		t.Errorf("abstinence hours = %v, want about 1 hour", metrics.FrivolityAbstinenceHours)
	}
}

func TestMetricsWindowAggregates(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	// Inside the window: 1800 active + 200 idle over two contexts.
	seedRecord(t, repo, closedRecord(now.Add(-3*time.Hour), 1200, "Code", "", types.CategoryProductive, 200))
	seedRecord(t, repo, closedRecord(now.Add(-2*time.Hour), 600, "Chrome", "youtube.com", types.CategoryFrivolous, 0))
	// Outside the window: must not count.
	seedRecord(t, repo, closedRecord(now.Add(-48*time.Hour), 9999, "Code", "", types.CategoryProductive, 0))

	metrics, err := newTestMetricsBuilder(repo).Build(ctx, now)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if metrics.Window.ProductiveSeconds != 1200 {
		t.Errorf("window productive = %d, want 1200", metrics.Window.ProductiveSeconds)
	}
	if metrics.Window.FrivolousSeconds != 600 {
		t.Errorf("window frivolous = %d, want 600", metrics.Window.FrivolousSeconds)
	}
	if metrics.Window.TrackedSeconds != 2000 {
		t.Errorf("window tracked = %d, want 2000", metrics.Window.TrackedSeconds)
	}
	wantRatio := 200.0 / 2000.0
	if metrics.Window.IdleRatio != wantRatio {
		t.Errorf("idle ratio = %v, want %v", metrics.Window.IdleRatio, wantRatio)
	}
}

func TestMetricsFoldsFeeds(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day := base.Format("2006-01-02")

	seedRecord(t, repo, closedRecord(base, 600, "Code", "", types.CategoryProductive, 0))

	repo.AddConsumptionEntry(ctx, types.ConsumptionEntry{
		Kind: types.ConsumptionPaywallDecline, Day: day, Timestamp: base,
	})
	repo.AddConsumptionEntry(ctx, types.ConsumptionEntry{
		Kind: types.ConsumptionPaywallExit, Day: day, Timestamp: base,
	})
	repo.AddConsumptionEntry(ctx, types.ConsumptionEntry{
		Kind: types.ConsumptionFrivolousSession, Day: day, Timestamp: base,
	})

	itemID, _ := repo.AddLibraryItem(ctx, types.LibraryItem{
		URL: "https://example.org/article", Purpose: "read-later", AddedAt: base,
	})
	repo.MarkLibraryItemConsumed(ctx, itemID, base.Add(time.Hour))
	repo.AddLibraryItem(ctx, types.LibraryItem{
		URL: "https://example.org/unread", Purpose: "read-later", AddedAt: base,
	})

	repo.AddWalletTransaction(ctx, types.WalletTransaction{
		Type: types.WalletEarn, Amount: 50, Timestamp: base,
	})
	repo.AddWalletTransaction(ctx, types.WalletTransaction{
		Type: types.WalletSpend, Amount: 20, Timestamp: base.Add(time.Hour),
	})

	repo.SetOverview(&types.OverviewStats{ActiveDays: 5})

	metrics, err := newTestMetricsBuilder(repo).Build(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if metrics.PaywallDeclines != 1 || metrics.PaywallExits != 1 || metrics.FrivolousSessions != 1 {
		t.Errorf("consumption markers = %d/%d/%d, want 1/1/1",
			metrics.PaywallDeclines, metrics.PaywallExits, metrics.FrivolousSessions)
	}
	if metrics.LibraryReplaces != 1 {
		t.Errorf("libraryReplaces = %d, want 1 (only consumed items)", metrics.LibraryReplaces)
	}
	if metrics.TotalEarned != 50 || metrics.TotalSpent != 20 {
		t.Errorf("wallet totals = %d earned / %d spent, want 50/20", metrics.TotalEarned, metrics.TotalSpent)
	}
	if metrics.WalletBalance != 30 {
		t.Errorf("wallet balance = %d, want 30", metrics.WalletBalance)
	}
	if metrics.Days[day].WalletDelta != 30 {
		t.Errorf("day wallet delta = %d, want 30", metrics.Days[day].WalletDelta)
	}
	if metrics.Days[day].PaywallDeclines != 1 {
		t.Errorf("day paywall declines = %d, want 1", metrics.Days[day].PaywallDeclines)
	}
	if metrics.Overview == nil || metrics.Overview.ActiveDays != 5 {
		t.Error("overview stats not folded in")
	}
}

func TestMetricsAbstinenceFromLastFrivolousEnd(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	frivolous := closedRecord(base, 600, "Chrome", "youtube.com", types.CategoryFrivolous, 0)
	seedRecord(t, repo, frivolous)
	now := frivolous.EndedAt.Add(6 * time.Hour)

	metrics, err := newTestMetricsBuilder(repo).Build(ctx, now)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if metrics.FrivolityAbstinenceHours != 6 {
		t.Errorf("abstinence = %v hours, want 6", metrics.FrivolityAbstinenceHours)
	}
}
