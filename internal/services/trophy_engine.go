package services

import (
	"context"
	"sort"
	"time"

	"vigil/internal/infrastructure/errors"
	"vigil/internal/infrastructure/logging"
	"vigil/internal/repository"
	"vigil/internal/types"

	"github.com/bep/debounce"
)

const (
	// evaluationQuietPeriod coalesces bursts of evaluation triggers
	// into one scan.
	evaluationQuietPeriod = 10 * time.Second

	personalBestsKey = "trophy.personalBests"
	pinnedKey        = "trophy.pinned"
)

// NotificationSink receives newly-earned trophy events. The UI layer
// plugs in here.
type NotificationSink interface {
	EmitEarned(status types.TrophyStatus, reason string)
}

// TrophyEngine evaluates the trophy registry against fresh metrics
// snapshots, persists newly-earned trophies and personal bests, and
// keeps earned trophies sticky.
type TrophyEngine struct {
	repository repository.ActivityRepository
	builder    *MetricsBuilder
	registry   *TrophyRegistry
	logger     logging.Logger
	sink       NotificationSink

	evalMu   chan struct{}
	debounce func(func())
	now      func() time.Time
}

// NewTrophyEngine creates the engine. sink may be nil.
func NewTrophyEngine(repo repository.ActivityRepository, builder *MetricsBuilder, registry *TrophyRegistry, sink NotificationSink, logger logging.Logger) *TrophyEngine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if registry == nil {
		registry = NewTrophyRegistry()
	}
	e := &TrophyEngine{
		repository: repo,
		builder:    builder,
		registry:   registry,
		logger:     logger,
		sink:       sink,
		evalMu:     make(chan struct{}, 1),
		debounce:   debounce.New(evaluationQuietPeriod),
		now:        time.Now,
	}
	e.evalMu <- struct{}{}
	return e
}

// ScheduleEvaluation requests an evaluation after a quiet period.
// Bursts of triggers coalesce into a single scan.
func (e *TrophyEngine) ScheduleEvaluation(reason string) {
	e.logger.Debug("Evaluation scheduled", "reason", reason)
	e.debounce(func() {
		e.EvaluateNow(context.Background(), reason)
	})
}

// EvaluateNow runs one evaluation immediately. Failures are logged and
// swallowed so a bad cycle cannot crash the debounce loop; the next
// trigger retries naturally. Re-entrant evaluation is skipped.
func (e *TrophyEngine) EvaluateNow(ctx context.Context, reason string) {
	select {
	case <-e.evalMu:
		defer func() { e.evalMu <- struct{}{} }()
	default:
		e.logger.Debug("Evaluation already in flight, skipping", "reason", reason)
		return
	}

	if _, err := e.evaluate(ctx, reason); err != nil {
		e.logger.Error("Trophy evaluation failed", "reason", reason, "error", err)
	}
}

// ListStatuses evaluates synchronously and returns every trophy's
// current status, pinned flags included.
func (e *TrophyEngine) ListStatuses(ctx context.Context) ([]types.TrophyStatus, error) {
	<-e.evalMu
	defer func() { e.evalMu <- struct{}{} }()
	return e.evaluate(ctx, "list-statuses")
}

// evaluate builds a metrics snapshot, runs every predicate, applies
// sticky earned state, persists newly-earned trophies and personal
// bests. Caller holds the evaluation slot.
func (e *TrophyEngine) evaluate(ctx context.Context, reason string) ([]types.TrophyStatus, error) {
	now := e.now()

	metrics, err := e.builder.Build(ctx, now)
	if err != nil {
		return nil, err
	}

	// Both persisted-state reads abort the pass on failure: without the
	// earned list every previously earned trophy would look new again,
	// and without the stored bests an improvement check against the
	// defaults could overwrite a better record.
	bests, err := e.loadPersonalBests(ctx)
	if err != nil {
		return nil, err
	}
	earned, err := e.loadEarned(ctx)
	if err != nil {
		return nil, err
	}
	pinned := e.loadPinned(ctx)

	statuses := e.registry.Evaluate(metrics, &bests)

	for i := range statuses {
		status := &statuses[i]
		status.Pinned = pinned[status.ID]

		if prior, ok := earned[status.ID]; ok {
			// Earned trophies are sticky: regression never un-earns.
			earnedAt := prior.EarnedAt
			status.EarnedAt = &earnedAt
			status.Meta = prior.Meta
			status.Progress.State = types.StateEarned
			status.Progress.Ratio = 1
			continue
		}

		if status.Progress.State != types.StateEarned {
			continue
		}

		// Newly earned. Persistence is fire-and-forget per trophy so one
		// failure cannot block the rest of the pass.
		record := types.EarnedTrophy{ID: status.ID, EarnedAt: now}
		if err := e.repository.UpsertEarned(ctx, record); err != nil {
			e.logger.Error("Failed to persist earned trophy",
				"trophy", status.ID, "error", err)
		}
		earnedAt := now
		status.EarnedAt = &earnedAt
		e.logger.Info("Trophy earned", "trophy", status.ID, "reason", reason)
		if e.sink != nil {
			e.sink.EmitEarned(*status, reason)
		}
	}

	e.updatePersonalBests(ctx, metrics, bests)
	return statuses, nil
}

// updatePersonalBests persists any metric that beats its stored best.
// Only monotonic improvement is ever written.
func (e *TrophyEngine) updatePersonalBests(ctx context.Context, metrics *types.Metrics, bests types.PersonalBests) {
	improved := false

	if metrics.LongestRunSeconds > bests.BestRunSeconds {
		bests.BestRunSeconds = metrics.LongestRunSeconds
		improved = true
	}
	if metrics.Window.TrackedSeconds > 0 &&
		(bests.BestIdleRatio24h < 0 || metrics.Window.IdleRatio < bests.BestIdleRatio24h) {
		bests.BestIdleRatio24h = metrics.Window.IdleRatio
		improved = true
	}
	if metrics.WalletBalance > bests.BestWalletBalance {
		bests.BestWalletBalance = metrics.WalletBalance
		improved = true
	}
	if metrics.FrivolityAbstinenceHours > bests.BestAbstinenceHours {
		bests.BestAbstinenceHours = metrics.FrivolityAbstinenceHours
		improved = true
	}

	if !improved {
		return
	}
	if err := e.repository.SetJSON(ctx, personalBestsKey, &bests); err != nil {
		e.logger.Error("Failed to persist personal bests", "error", err)
	}
}

// UpsertRemoteEarned reconciles a remotely-reported earned timestamp.
// The earlier of (local, remote) wins.
func (e *TrophyEngine) UpsertRemoteEarned(ctx context.Context, id string, earnedAt time.Time, meta string) error {
	return e.repository.UpsertEarned(ctx, types.EarnedTrophy{
		ID:       id,
		EarnedAt: earnedAt,
		Meta:     meta,
	})
}

// SetPinned replaces the pinned trophy list.
func (e *TrophyEngine) SetPinned(ctx context.Context, ids []string) error {
	return e.repository.SetJSON(ctx, pinnedKey, ids)
}

// ResetLocal wipes every locally earned trophy, the personal bests and
// the pinned list.
func (e *TrophyEngine) ResetLocal(ctx context.Context) error {
	if err := e.repository.DeleteAllEarned(ctx); err != nil {
		return err
	}
	if err := e.repository.SetJSON(ctx, personalBestsKey, defaultPersonalBests()); err != nil {
		return err
	}
	return e.repository.SetJSON(ctx, pinnedKey, []string{})
}

// GetProfileSummary rolls up the evaluation for the UI: pinned first,
// then the most recently earned, then the closest locked trophies.
func (e *TrophyEngine) GetProfileSummary(ctx context.Context, profile string) (*types.ProfileSummary, error) {
	statuses, err := e.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}

	summary := &types.ProfileSummary{
		Profile:    profile,
		TotalCount: len(statuses),
	}

	var earned, locked []types.TrophyStatus
	for _, status := range statuses {
		if status.Pinned {
			summary.Pinned = append(summary.Pinned, status)
		}
		switch {
		case status.Progress.State == types.StateEarned:
			earned = append(earned, status)
		case status.Progress.State == types.StateLocked:
			locked = append(locked, status)
		}
	}
	summary.EarnedCount = len(earned)

	sort.Slice(earned, func(i, j int) bool {
		ti, tj := earned[i].EarnedAt, earned[j].EarnedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	if len(earned) > 5 {
		earned = earned[:5]
	}
	summary.RecentEarned = earned

	sort.Slice(locked, func(i, j int) bool {
		return locked[i].Progress.Ratio > locked[j].Progress.Ratio
	})
	if len(locked) > 5 {
		locked = locked[:5]
	}
	summary.NextUp = locked

	return summary, nil
}

func (e *TrophyEngine) loadPersonalBests(ctx context.Context) (types.PersonalBests, error) {
	bests := defaultPersonalBests()
	if err := e.repository.GetJSON(ctx, personalBestsKey, &bests); err != nil {
		if errors.IsNotFound(err) {
			return defaultPersonalBests(), nil
		}
		return types.PersonalBests{}, err
	}
	return bests, nil
}

func (e *TrophyEngine) loadEarned(ctx context.Context) (map[string]types.EarnedTrophy, error) {
	rows, err := e.repository.ListEarned(ctx)
	if err != nil {
		return nil, err
	}
	earned := make(map[string]types.EarnedTrophy, len(rows))
	for _, row := range rows {
		earned[row.ID] = row
	}
	return earned, nil
}

func (e *TrophyEngine) loadPinned(ctx context.Context) map[string]bool {
	var ids []string
	if err := e.repository.GetJSON(ctx, pinnedKey, &ids); err != nil {
		// Pinned flags are cosmetic; a failed read just leaves them off.
		if !errors.IsNotFound(err) {
			e.logger.Warn("Failed to load pinned trophies", "error", err)
		}
		return nil
	}
	pinned := make(map[string]bool, len(ids))
	for _, id := range ids {
		pinned[id] = true
	}
	return pinned
}

// defaultPersonalBests marks the idle ratio unset; zero would read as a
// perfect score.
func defaultPersonalBests() types.PersonalBests {
	return types.PersonalBests{BestIdleRatio24h: -1}
}
