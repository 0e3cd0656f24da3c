package types

import "time"

// DayTotals is the per-calendar-day reduction over ActivityRecords.
// Rebuilt from scratch on every evaluation, never persisted.
type DayTotals struct {
	Day                string             `json:"day"` // YYYY-MM-DD
	CategorySeconds    map[Category]int64 `json:"categorySeconds"`
	IdleSeconds        int64              `json:"idleSeconds"`
	FirstActivity      time.Time          `json:"firstActivity"`
	FirstProductive    time.Time          `json:"firstProductive"`
	MorningProductive  int64              `json:"morningProductive"`  // before 12:00
	AfternoonFrivolous int64              `json:"afternoonFrivolous"` // 12:00-18:00
	LateNightFrivolous int64              `json:"lateNightFrivolous"` // 22:00-04:00
	WalletDelta        int64              `json:"walletDelta"`
	PaywallDeclines    int                `json:"paywallDeclines"`
}

// Run is a maximal contiguous stretch of productive time, merged across
// gaps below the run-merge tolerance.
type Run struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Seconds int64     `json:"seconds"`
}

// WindowStats aggregates the trailing 24-hour window.
type WindowStats struct {
	IdleRatio              float64 `json:"idleRatio"`
	ContextSwitchesPerHour float64 `json:"contextSwitchesPerHour"`
	FrivolousSeconds       int64   `json:"frivolousSeconds"`
	ProductiveSeconds      int64   `json:"productiveSeconds"`
	TrackedSeconds         int64   `json:"trackedSeconds"`
}

// Metrics is the immutable snapshot a single achievement evaluation
// runs against.
type Metrics struct {
	BuiltAt time.Time `json:"builtAt"`

	Days    map[string]*DayTotals `json:"days"`
	DayKeys []string              `json:"dayKeys"` // sorted ascending

	Runs              []Run `json:"runs"`
	LongestRunSeconds int64 `json:"longestRunSeconds"`

	Window WindowStats `json:"window"`

	// RecoveryMinutes holds one sample per resolved frivolous stretch:
	// minutes elapsed until the next productive stretch began.
	RecoveryMinutes []float64 `json:"recoveryMinutes"`

	// Hours since the last frivolous activity ended (abstinence streak).
	FrivolityAbstinenceHours float64 `json:"frivolityAbstinenceHours"`

	// Consumption-log markers.
	FrivolousSessions int `json:"frivolousSessions"`
	PaywallDeclines   int `json:"paywallDeclines"`
	PaywallExits      int `json:"paywallExits"`
	LibraryReplaces   int `json:"libraryReplaces"`

	// Wallet.
	WalletBalance int64 `json:"walletBalance"`
	TotalEarned   int64 `json:"totalEarned"`
	TotalSpent    int64 `json:"totalSpent"`

	// Externally computed aggregates, folded in as-is.
	Overview *OverviewStats `json:"overview,omitempty"`
}

// QualifyingDays returns the day keys, ascending, whose totals satisfy
// the given predicate. Used by streak-shaped trophies.
func (m *Metrics) QualifyingDays(match func(*DayTotals) bool) []string {
	var out []string
	for _, key := range m.DayKeys {
		if match(m.Days[key]) {
			out = append(out, key)
		}
	}
	return out
}
