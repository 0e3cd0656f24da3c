package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"vigil/internal/types"
)

type captureNotifier struct {
	mu     sync.Mutex
	earned []types.TrophyStatus
}

func (cn *captureNotifier) EmitEarned(status types.TrophyStatus, reason string) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.earned = append(cn.earned, status)
}

func (cn *captureNotifier) count() int {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return len(cn.earned)
}

func newTestEngine(repo *MockRepository, sink NotificationSink) *TrophyEngine {
	builder := NewMetricsBuilder(repo, repo, testProvider(), nil)
	return NewTrophyEngine(repo, builder, NewTrophyRegistry(), sink, nil)
}

func statusByID(t *testing.T, statuses []types.TrophyStatus, id string) types.TrophyStatus {
	t.Helper()
	for _, status := range statuses {
		if status.ID == id {
			return status
		}
	}
	t.Fatalf("trophy %q not found", id)
	return types.TrophyStatus{}
}

func TestEngineEarnsAndPersists(t *testing.T) {
	repo := NewMockRepository()
	sink := &captureNotifier{}
	engine := newTestEngine(repo, sink)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// An hour-long productive run earns the run trophies up to an hour.
	seedRecord(t, repo, closedRecord(base, 3600, "Code", "", types.CategoryProductive, 0))

	statuses, err := engine.ListStatuses(ctx)
	if err != nil {
		t.Fatalf("ListStatuses failed: %v", err)
	}

	flowState := statusByID(t, statuses, "flow-state")
	if flowState.Progress.State != types.StateEarned {
		t.Fatalf("flow-state = %q, want earned", flowState.Progress.State)
	}
	if flowState.EarnedAt == nil {
		t.Error("earned trophy missing earnedAt")
	}

	earned, err := repo.ListEarned(ctx)
	if err != nil {
		t.Fatalf("ListEarned failed: %v", err)
	}
	found := false
	for _, row := range earned {
		if row.ID == "flow-state" {
			found = true
		}
	}
	if !found {
		t.Error("earned trophy not persisted")
	}
	if sink.count() == 0 {
		t.Error("no earned notifications emitted")
	}
}

func TestEngineStickyEarning(t *testing.T) {
	repo := NewMockRepository()
	engine := newTestEngine(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(base, 3600, "Code", "", types.CategoryProductive, 0))

	first, err := engine.ListStatuses(ctx)
	if err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	firstEarnedAt := statusByID(t, first, "flow-state").EarnedAt
	if firstEarnedAt == nil {
		t.Fatal("flow-state not earned on first pass")
	}

	// Wipe the timeline so the predicate regresses to zero.
	repo.DeleteRecordsBefore(ctx, time.Now().Add(time.Hour))

	second, err := engine.ListStatuses(ctx)
	if err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}
	regressed := statusByID(t, second, "flow-state")
	if regressed.Progress.State != types.StateEarned {
		t.Errorf("regressed trophy state = %q, want earned (sticky)", regressed.Progress.State)
	}
	if regressed.Progress.Ratio != 1 {
		t.Errorf("regressed trophy ratio = %v, want 1", regressed.Progress.Ratio)
	}
	if regressed.EarnedAt == nil || !regressed.EarnedAt.Equal(*firstEarnedAt) {
		t.Error("earned timestamp must not change on re-evaluation")
	}
}

func TestEngineAbortsWhenEarnedListUnreadable(t *testing.T) {
	repo := NewMockRepository()
	sink := &captureNotifier{}
	engine := newTestEngine(repo, sink)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(base, 3600, "Code", "", types.CategoryProductive, 0))
	if _, err := engine.ListStatuses(ctx); err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	firstPass := sink.count()
	if firstPass == 0 {
		t.Fatal("first pass earned nothing")
	}

	// A transient failure reading the earned list must abort the pass
	// instead of treating every earned trophy as brand new again.
	repo.SetEarnedReadFailure(true)
	if _, err := engine.ListStatuses(ctx); err == nil {
		t.Error("evaluation should fail when the earned list is unreadable")
	}
	if got := sink.count(); got != firstPass {
		t.Errorf("notifications after failed pass = %d, want %d (no re-emits)", got, firstPass)
	}

	repo.SetEarnedReadFailure(false)
	if _, err := engine.ListStatuses(ctx); err != nil {
		t.Fatalf("recovery evaluation failed: %v", err)
	}
	if got := sink.count(); got != firstPass {
		t.Errorf("notifications after recovery = %d, want %d (earned stays sticky)", got, firstPass)
	}
}

func TestEnginePersonalBestsMonotonic(t *testing.T) {
	repo := NewMockRepository()
	engine := newTestEngine(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(base, 3600, "Code", "", types.CategoryProductive, 0))
	if _, err := engine.ListStatuses(ctx); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	var bests types.PersonalBests
	if err := repo.GetJSON(ctx, personalBestsKey, &bests); err != nil {
		t.Fatalf("personal bests not persisted: %v", err)
	}
	if bests.BestRunSeconds != 3600 {
		t.Errorf("bestRunSeconds = %d, want 3600", bests.BestRunSeconds)
	}

	// Shrinking the timeline must not regress the stored best.
	repo.DeleteRecordsBefore(ctx, time.Now().Add(time.Hour))
	seedRecord(t, repo, closedRecord(base.AddDate(0, 0, 1), 60, "Code", "", types.CategoryProductive, 0))
	if _, err := engine.ListStatuses(ctx); err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}

	if err := repo.GetJSON(ctx, personalBestsKey, &bests); err != nil {
		t.Fatalf("personal bests missing after second pass: %v", err)
	}
	if bests.BestRunSeconds != 3600 {
		t.Errorf("bestRunSeconds regressed to %d, want 3600", bests.BestRunSeconds)
	}
}

func TestEngineRemoteEarnedEarliestWins(t *testing.T) {
	repo := NewMockRepository()
	engine := newTestEngine(repo, nil)
	ctx := context.Background()

	local := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	earlier := local.Add(-48 * time.Hour)
	later := local.Add(48 * time.Hour)

	if err := engine.UpsertRemoteEarned(ctx, "flow-state", local, ""); err != nil {
		t.Fatalf("UpsertRemoteEarned failed: %v", err)
	}
	// A later remote report must not move the timestamp forward.
	engine.UpsertRemoteEarned(ctx, "flow-state", later, "")
	// An earlier one wins.
	engine.UpsertRemoteEarned(ctx, "flow-state", earlier, "")

	earned, err := repo.ListEarned(ctx)
	if err != nil {
		t.Fatalf("ListEarned failed: %v", err)
	}
	if len(earned) != 1 {
		t.Fatalf("expected 1 earned row, got %d", len(earned))
	}
	if !earned[0].EarnedAt.Equal(earlier) {
		t.Errorf("earnedAt = %v, want earliest %v", earned[0].EarnedAt, earlier)
	}
}

func TestEngineResetLocal(t *testing.T) {
	repo := NewMockRepository()
	engine := newTestEngine(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(base, 3600, "Code", "", types.CategoryProductive, 0))
	if _, err := engine.ListStatuses(ctx); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if err := engine.SetPinned(ctx, []string{"flow-state"}); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}

	if err := engine.ResetLocal(ctx); err != nil {
		t.Fatalf("ResetLocal failed: %v", err)
	}

	earned, _ := repo.ListEarned(ctx)
	if len(earned) != 0 {
		t.Errorf("earned rows after reset = %d, want 0", len(earned))
	}

	var bests types.PersonalBests
	if err := repo.GetJSON(ctx, personalBestsKey, &bests); err != nil {
		t.Fatalf("bests missing after reset: %v", err)
	}
	if bests.BestRunSeconds != 0 || bests.BestIdleRatio24h != -1 {
		t.Errorf("bests after reset = %+v, want zeroed with unset idle ratio", bests)
	}
}

func TestEngineProfileSummary(t *testing.T) {
	repo := NewMockRepository()
	engine := newTestEngine(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedRecord(t, repo, closedRecord(base, 3600, "Code", "", types.CategoryProductive, 0))
	if err := engine.SetPinned(ctx, []string{"marathon"}); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}

	summary, err := engine.GetProfileSummary(ctx, "default")
	if err != nil {
		t.Fatalf("GetProfileSummary failed: %v", err)
	}

	if summary.Profile != "default" {
		t.Errorf("profile = %q, want default", summary.Profile)
	}
	if summary.TotalCount < 50 {
		t.Errorf("totalCount = %d, want at least 50", summary.TotalCount)
	}
	if summary.EarnedCount == 0 {
		t.Error("expected earned trophies in summary")
	}
	if len(summary.Pinned) != 1 || summary.Pinned[0].ID != "marathon" {
		t.Errorf("pinned = %+v, want [marathon]", summary.Pinned)
	}
	if len(summary.RecentEarned) == 0 || len(summary.RecentEarned) > 5 {
		t.Errorf("recentEarned size = %d, want 1..5", len(summary.RecentEarned))
	}
	if len(summary.NextUp) == 0 || len(summary.NextUp) > 5 {
		t.Errorf("nextUp size = %d, want 1..5", len(summary.NextUp))
	}
	// Next-up trophies are the closest locked ones, best ratio first.
	for i := 1; i < len(summary.NextUp); i++ {
		if summary.NextUp[i].Progress.Ratio > summary.NextUp[i-1].Progress.Ratio {
			t.Error("nextUp not sorted by descending ratio")
		}
	}
}
