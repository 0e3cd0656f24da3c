package types

import "time"

// ProgressState describes where a trophy currently stands.
type ProgressState string

const (
	StateLocked    ProgressState = "locked"
	StateEarned    ProgressState = "earned"
	StateUntracked ProgressState = "untracked"
)

// Progress is the evaluated standing of one trophy against a Metrics
// snapshot.
type Progress struct {
	Current float64       `json:"current"`
	Target  float64       `json:"target"`
	Ratio   float64       `json:"ratio"`
	State   ProgressState `json:"state"`
}

// TrophyDefinition is the static description of an achievement.
type TrophyDefinition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// TrophyStatus joins a definition with its current progress and, when
// earned, the sticky earned timestamp.
type TrophyStatus struct {
	TrophyDefinition
	Progress Progress   `json:"progress"`
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
	Pinned   bool       `json:"pinned,omitempty"`
	Meta     string     `json:"meta,omitempty"`
}

// EarnedTrophy is the persisted form of an earned achievement.
type EarnedTrophy struct {
	ID       string    `json:"id"`
	EarnedAt time.Time `json:"earnedAt"`
	Meta     string    `json:"meta,omitempty"`
}

// PersonalBests is the process-wide best-counters row. Mutated only by
// the achievement engine, and only ever in the improving direction.
type PersonalBests struct {
	BestRunSeconds      int64   `json:"bestRunSeconds"`
	BestIdleRatio24h    float64 `json:"bestIdleRatio24h"` // lower is better; <0 means unset
	BestWalletBalance   int64   `json:"bestWalletBalance"`
	BestAbstinenceHours float64 `json:"bestAbstinenceHours"`
}

// ProfileSummary is the per-profile rollup surfaced to the UI.
type ProfileSummary struct {
	Profile      string         `json:"profile"`
	EarnedCount  int            `json:"earnedCount"`
	TotalCount   int            `json:"totalCount"`
	Pinned       []TrophyStatus `json:"pinned"`
	RecentEarned []TrophyStatus `json:"recentEarned"`
	NextUp       []TrophyStatus `json:"nextUp"`
}
