package services

import (
	"context"
	"testing"
	"time"

	"vigil/internal/types"
)

func testEvent(ts time.Time, app, domain string, category types.Category, idleSeconds float64) types.ClassifiedActivity {
	return types.ClassifiedActivity{
		Observation: types.Observation{
			Timestamp:   ts,
			Origin:      types.OriginSystem,
			AppName:     app,
			Domain:      domain,
			IdleSeconds: idleSeconds,
		},
		Category: category,
	}
}

func openRecords(t *testing.T, repo *MockRepository) []types.ActivityRecord {
	t.Helper()
	records, err := repo.QueryRecordsSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("QueryRecordsSince failed: %v", err)
	}
	return records
}

func TestSessionBuilderAccumulatesDeltas(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i <= 10; i++ {
		event := testEvent(base.Add(time.Duration(i)*time.Second), "Code", "", types.CategoryProductive, 0)
		if err := builder.RecordActivity(ctx, event); err != nil {
			t.Fatalf("RecordActivity failed: %v", err)
		}
	}

	records := openRecords(t, repo)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SecondsActive != 10 {
		t.Errorf("secondsActive = %d, want 10", records[0].SecondsActive)
	}
	if records[0].EndedAt != nil {
		t.Error("record should still be open")
	}
}

func TestSessionBuilderOrderingGuard(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Record at t=0, t=+5s, then a replayed t=+1s event, then t=+6s.
	steps := []time.Duration{0, 5 * time.Second, 1 * time.Second, 6 * time.Second}
	for _, step := range steps {
		event := testEvent(base.Add(step), "Code", "", types.CategoryProductive, 0)
		if err := builder.RecordActivity(ctx, event); err != nil {
			t.Fatalf("RecordActivity failed: %v", err)
		}
	}

	records := openRecords(t, repo)
	if len(records) != 1 {
		t.Fatalf("stale event must not create a record: got %d records", len(records))
	}
	if records[0].SecondsActive != 6 {
		t.Errorf("secondsActive = %d, want 6 (stale +1s event dropped)", records[0].SecondsActive)
	}
}

func TestSessionBuilderCoalescesFastSamples(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	builder.RecordActivity(ctx, testEvent(base, "Code", "", types.CategoryProductive, 0))
	// 400ms later: too fast, advances the cursor without a write.
	builder.RecordActivity(ctx, testEvent(base.Add(400*time.Millisecond), "Code", "", types.CategoryProductive, 0))

	_, extends, _, _, _, _ := repo.GetCallCounts()
	if extends != 0 {
		t.Errorf("coalesced sample should not write, got %d extend calls", extends)
	}

	// The next sample measures from the coalesced cursor.
	builder.RecordActivity(ctx, testEvent(base.Add(1400*time.Millisecond), "Code", "", types.CategoryProductive, 0))
	records := openRecords(t, repo)
	if records[0].SecondsActive != 1 {
		t.Errorf("secondsActive = %d, want 1", records[0].SecondsActive)
	}
}

func TestSessionBuilderRotatesOnContextChange(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	builder.RecordActivity(ctx, testEvent(base, "Chrome", "github.com", types.CategoryProductive, 0))
	builder.RecordActivity(ctx, testEvent(base.Add(5*time.Second), "Chrome", "github.com", types.CategoryProductive, 0))
	builder.RecordActivity(ctx, testEvent(base.Add(10*time.Second), "Chrome", "youtube.com", types.CategoryFrivolous, 0))

	records := openRecords(t, repo)
	if len(records) != 2 {
		t.Fatalf("expected 2 records after rotation, got %d", len(records))
	}

	closed := records[0]
	if closed.EndedAt == nil {
		t.Fatal("first record should be closed")
	}
	if !closed.EndedAt.Equal(base.Add(10 * time.Second)) {
		t.Errorf("first record closed at %v, want %v", closed.EndedAt, base.Add(10*time.Second))
	}
	if records[1].EndedAt != nil {
		t.Error("second record should be open")
	}
	if records[1].Domain != "youtube.com" {
		t.Errorf("second record domain = %q, want youtube.com", records[1].Domain)
	}
}

func TestSessionBuilderGapCeiling(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	builder.RecordActivity(ctx, testEvent(base, "Code", "", types.CategoryProductive, 0))
	builder.RecordActivity(ctx, testEvent(base.Add(30*time.Second), "Code", "", types.CategoryProductive, 0))
	// 10 minute gap: sleep/lock transition.
	builder.RecordActivity(ctx, testEvent(base.Add(630*time.Second), "Code", "", types.CategoryProductive, 0))

	records := openRecords(t, repo)
	if len(records) != 2 {
		t.Fatalf("expected 2 records around the gap, got %d", len(records))
	}

	closed := records[0]
	if closed.EndedAt == nil {
		t.Fatal("pre-gap record should be closed")
	}
	// Closed at its last known timestamp, not the new event's time.
	if !closed.EndedAt.Equal(base.Add(30 * time.Second)) {
		t.Errorf("pre-gap record closed at %v, want %v", closed.EndedAt, base.Add(30*time.Second))
	}
	if closed.SecondsActive != 30 {
		t.Errorf("pre-gap secondsActive = %d, want 30", closed.SecondsActive)
	}

	fresh := records[1]
	if fresh.IdleSeconds != sleepIdleGraceSeconds {
		t.Errorf("post-gap idle credit = %d, want %d", fresh.IdleSeconds, int64(sleepIdleGraceSeconds))
	}
	if fresh.SecondsActive != 0 {
		t.Errorf("post-gap secondsActive = %d, want 0 (never the full gap)", fresh.SecondsActive)
	}
}

func TestSessionBuilderIdleSplit(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	builder.RecordActivity(ctx, testEvent(base, "Code", "", types.CategoryProductive, 0))
	// 10s delta with 4s reported idle: 6 active, 4 idle.
	builder.RecordActivity(ctx, testEvent(base.Add(10*time.Second), "Code", "", types.CategoryProductive, 4))

	records := openRecords(t, repo)
	if records[0].SecondsActive != 6 {
		t.Errorf("secondsActive = %d, want 6", records[0].SecondsActive)
	}
	if records[0].IdleSeconds != 4 {
		t.Errorf("idleSeconds = %d, want 4", records[0].IdleSeconds)
	}

	// Reported idle larger than the delta is capped at the delta.
	builder.RecordActivity(ctx, testEvent(base.Add(15*time.Second), "Code", "", types.CategoryProductive, 600))
	records = openRecords(t, repo)
	if records[0].IdleSeconds != 9 {
		t.Errorf("idleSeconds = %d, want 9 (idle capped at delta)", records[0].IdleSeconds)
	}
	if records[0].SecondsActive != 6 {
		t.Errorf("secondsActive = %d, want 6 after fully idle step", records[0].SecondsActive)
	}
}

func TestSessionBuilderAppAliasCollapses(t *testing.T) {
	repo := NewMockRepository()
	classifier := NewClassifier(testProvider())
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Two spellings of the same browser must stay one session.
	first := classifier.Classify(types.Observation{
		Timestamp: base, Origin: types.OriginSystem, AppName: "Google Chrome",
	})
	second := classifier.Classify(types.Observation{
		Timestamp: base.Add(5 * time.Second), Origin: types.OriginSystem, AppName: "Chrome",
	})
	builder.RecordActivity(ctx, first)
	builder.RecordActivity(ctx, second)

	records := openRecords(t, repo)
	if len(records) != 1 {
		t.Fatalf("aliased app names should collapse into one session, got %d records", len(records))
	}
	if records[0].AppName != "Chrome" {
		t.Errorf("record app name = %q, want canonical %q", records[0].AppName, "Chrome")
	}
}

func TestSessionBuilderStopClosesOpenSession(t *testing.T) {
	repo := NewMockRepository()
	builder := NewSessionBuilder(repo, nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	builder.RecordActivity(ctx, testEvent(base, "Code", "", types.CategoryProductive, 0))
	builder.Stop(ctx)

	records := openRecords(t, repo)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].EndedAt == nil {
		t.Error("Stop should close the open session")
	}
}

func TestSessionBuilderUnpersistedMode(t *testing.T) {
	builder := NewSessionBuilder(nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Without a repository, tracking must not panic or error.
	for i := 0; i <= 5; i++ {
		event := testEvent(base.Add(time.Duration(i)*time.Second), "Code", "", types.CategoryProductive, 0)
		if err := builder.RecordActivity(ctx, event); err != nil {
			t.Fatalf("RecordActivity in degraded mode failed: %v", err)
		}
	}
	builder.Stop(ctx)

	recent, err := builder.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent in degraded mode failed: %v", err)
	}
	if recent != nil {
		t.Errorf("GetRecent without repository = %v, want nil", recent)
	}
}
