package services

import (
	"sort"
	"time"

	"vigil/internal/types"
)

// TrophyPredicate evaluates one trophy against a metrics snapshot and
// the stored personal bests. Predicates are pure; persistence and
// stickiness are the engine's job.
type TrophyPredicate func(m *types.Metrics, bests *types.PersonalBests) types.Progress

type trophyEntry struct {
	def       types.TrophyDefinition
	predicate TrophyPredicate
}

// TrophyRegistry maps trophy ids to their definitions and predicates.
// Registration order is the display order.
type TrophyRegistry struct {
	entries []trophyEntry
	byID    map[string]int
}

// NewTrophyRegistry returns the registry with the built-in trophy set.
func NewTrophyRegistry() *TrophyRegistry {
	r := &TrophyRegistry{byID: make(map[string]int)}
	r.registerBuiltins()
	return r
}

// Register adds a trophy. Re-registering an id replaces its predicate.
func (r *TrophyRegistry) Register(def types.TrophyDefinition, predicate TrophyPredicate) {
	if idx, ok := r.byID[def.ID]; ok {
		r.entries[idx] = trophyEntry{def: def, predicate: predicate}
		return
	}
	r.byID[def.ID] = len(r.entries)
	r.entries = append(r.entries, trophyEntry{def: def, predicate: predicate})
}

// Definitions returns every registered definition in display order.
func (r *TrophyRegistry) Definitions() []types.TrophyDefinition {
	defs := make([]types.TrophyDefinition, len(r.entries))
	for i, entry := range r.entries {
		defs[i] = entry.def
	}
	return defs
}

// Evaluate runs every predicate against the snapshot.
func (r *TrophyRegistry) Evaluate(m *types.Metrics, bests *types.PersonalBests) []types.TrophyStatus {
	statuses := make([]types.TrophyStatus, 0, len(r.entries))
	for _, entry := range r.entries {
		statuses = append(statuses, types.TrophyStatus{
			TrophyDefinition: entry.def,
			Progress:         entry.predicate(m, bests),
		})
	}
	return statuses
}

// Len reports the number of registered trophies.
func (r *TrophyRegistry) Len() int {
	return len(r.entries)
}

// --- predicate shapes ---

// counterProgress is the simple counter-vs-target shape.
func counterProgress(current, target float64) types.Progress {
	p := types.Progress{Current: current, Target: target, State: types.StateLocked}
	if target <= 0 {
		return p
	}
	p.Ratio = current / target
	if p.Ratio >= 1 {
		p.Ratio = 1
		p.State = types.StateEarned
	}
	return p
}

// ceilingProgress is the below-a-ceiling shape: staying at or under the
// ceiling earns outright; exceeding it still earns once the activity
// happened, but the displayed ratio shrinks with the overshoot.
func ceilingProgress(current, ceiling float64, active bool) types.Progress {
	p := types.Progress{Current: current, Target: ceiling, State: types.StateLocked}
	if !active {
		return p
	}
	p.State = types.StateEarned
	if current <= ceiling || current == 0 {
		p.Ratio = 1
	} else {
		p.Ratio = ceiling / current
	}
	return p
}

// booleanProgress earns when the condition holds.
func booleanProgress(met bool) types.Progress {
	if met {
		return types.Progress{Current: 1, Target: 1, Ratio: 1, State: types.StateEarned}
	}
	return types.Progress{Current: 0, Target: 1, State: types.StateLocked}
}

// untrackedProgress is the placeholder shape for signals not yet
// instrumented.
func untrackedProgress() types.Progress {
	return types.Progress{State: types.StateUntracked}
}

// streakTolerance is the largest gap between two qualifying days before
// a streak resets.
const streakTolerance = 1.5 // days

// streakProgress counts the longest consecutive-day streak of
// qualifying days, resetting when the gap between qualifying days
// exceeds the tolerance, capped at the target.
func streakProgress(m *types.Metrics, target float64, match func(*types.DayTotals) bool) types.Progress {
	days := m.QualifyingDays(match)
	sort.Strings(days)

	var longest, current int
	var prev time.Time
	for _, key := range days {
		day, err := time.Parse("2006-01-02", key)
		if err != nil {
			continue
		}
		if current == 0 || day.Sub(prev).Hours() > streakTolerance*24 {
			current = 1
		} else {
			current++
		}
		if current > longest {
			longest = current
		}
		prev = day
	}

	if float64(longest) > target {
		longest = int(target)
	}
	return counterProgress(float64(longest), target)
}

// maxDay returns the largest per-day value produced by fn.
func maxDay(m *types.Metrics, fn func(*types.DayTotals) float64) float64 {
	var best float64
	for _, day := range m.Days {
		if v := fn(day); v > best {
			best = v
		}
	}
	return best
}

func anyDay(m *types.Metrics, match func(*types.DayTotals) bool) bool {
	for _, day := range m.Days {
		if match(day) {
			return true
		}
	}
	return false
}

func productiveSeconds(day *types.DayTotals) int64 {
	return day.CategorySeconds[types.CategoryProductive]
}

func frivolousSeconds(day *types.DayTotals) int64 {
	return day.CategorySeconds[types.CategoryFrivolous]
}

// bestRun returns the better of the live longest run and the stored
// personal best.
func bestRun(m *types.Metrics, bests *types.PersonalBests) float64 {
	run := float64(m.LongestRunSeconds)
	if float64(bests.BestRunSeconds) > run {
		run = float64(bests.BestRunSeconds)
	}
	return run
}

func bestAbstinence(m *types.Metrics, bests *types.PersonalBests) float64 {
	hours := m.FrivolityAbstinenceHours
	if bests.BestAbstinenceHours > hours {
		hours = bests.BestAbstinenceHours
	}
	return hours
}

func averageRecoveryMinutes(m *types.Metrics) float64 {
	if len(m.RecoveryMinutes) == 0 {
		return 0
	}
	var sum float64
	for _, minutes := range m.RecoveryMinutes {
		sum += minutes
	}
	return sum / float64(len(m.RecoveryMinutes))
}

// --- built-in trophy set ---

func (r *TrophyRegistry) registerBuiltins() {
	def := func(id, title, description, group string) types.TrophyDefinition {
		return types.TrophyDefinition{ID: id, Title: title, Description: description, Group: group}
	}

	// Focus: productive-run lengths.
	runTrophy := func(id, title string, seconds float64) {
		r.Register(def(id, title, "Keep an unbroken productive run going.", "focus"),
			func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
				return counterProgress(bestRun(m, bests), seconds)
			})
	}
	r.Register(def("first-steps", "First Steps", "Track your first minute of activity.", "focus"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			var total int64
			for _, day := range m.Days {
				for _, seconds := range day.CategorySeconds {
					total += seconds
				}
			}
			return counterProgress(float64(total), 60)
		})
	runTrophy("warm-up", "Warm-Up", 15*60)
	runTrophy("deep-dive", "Deep Dive", 30*60)
	runTrophy("flow-state", "Flow State", 60*60)
	runTrophy("marathon", "Marathon", 2*60*60)
	runTrophy("ultra-marathon", "Ultra Marathon", 4*60*60)
	r.Register(def("personal-record", "Personal Record", "Beat your best productive run.", "focus"),
		func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
			return booleanProgress(bests.BestRunSeconds > 0 &&
				m.LongestRunSeconds > bests.BestRunSeconds)
		})

	// Output: daily productive totals.
	dayTrophy := func(id, title string, seconds float64) {
		r.Register(def(id, title, "Accumulate productive time in a single day.", "output"),
			func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
				best := maxDay(m, func(d *types.DayTotals) float64 {
					return float64(productiveSeconds(d))
				})
				return counterProgress(best, seconds)
			})
	}
	dayTrophy("productive-hour", "Productive Hour", 60*60)
	dayTrophy("half-shift", "Half Shift", 2*60*60)
	dayTrophy("solid-day", "Solid Day", 4*60*60)
	dayTrophy("full-shift", "Full Shift", 6*60*60)
	dayTrophy("grind-day", "Grind Day", 8*60*60)

	// Rhythm: time-of-day habits.
	r.Register(def("early-bird", "Early Bird", "Start productive work before 8 in the morning.", "rhythm"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return booleanProgress(anyDay(m, func(d *types.DayTotals) bool {
				return !d.FirstProductive.IsZero() && d.FirstProductive.Hour() < 8
			}))
		})
	r.Register(def("dawn-patrol", "Dawn Patrol", "Log an hour of productive work before noon.", "rhythm"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			best := maxDay(m, func(d *types.DayTotals) float64 {
				return float64(d.MorningProductive)
			})
			return counterProgress(best, 60*60)
		})
	r.Register(def("clean-afternoon", "Clean Afternoon", "Two productive hours in a day without afternoon frivolity.", "rhythm"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return booleanProgress(anyDay(m, func(d *types.DayTotals) bool {
				return d.AfternoonFrivolous == 0 && productiveSeconds(d) >= 2*60*60
			}))
		})
	r.Register(def("lights-out", "Lights Out", "Keep late-night frivolity under ten minutes on an active day.", "rhythm"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			worst := maxDay(m, func(d *types.DayTotals) float64 {
				return float64(d.LateNightFrivolous)
			})
			return ceilingProgress(worst, 10*60, len(m.Days) > 0)
		})
	r.Register(def("prime-time", "Prime Time", "Have your most active hour land before noon.", "rhythm"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			if m.Overview == nil || m.Overview.ProductiveSeconds == 0 {
				return booleanProgress(false)
			}
			return booleanProgress(m.Overview.TimeOfDay.PeakHour < 12)
		})
	r.Register(def("night-owl", "Night Owl", "Late-night focus sessions.", "rhythm"),
		func(_ *types.Metrics, _ *types.PersonalBests) types.Progress {
			return untrackedProgress()
		})

	// Consistency: streaks.
	streakTrophy := func(id, title string, days float64, match func(*types.DayTotals) bool) {
		r.Register(def(id, title, "Keep the habit going day after day.", "consistency"),
			func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
				return streakProgress(m, days, match)
			})
	}
	productiveDay := func(d *types.DayTotals) bool {
		return productiveSeconds(d) >= 60*60
	}
	streakTrophy("streak-3", "Three in a Row", 3, productiveDay)
	streakTrophy("streak-7", "Full Week", 7, productiveDay)
	streakTrophy("streak-14", "Fortnight", 14, productiveDay)
	streakTrophy("streak-30", "The Month", 30, productiveDay)
	streakTrophy("balanced-week", "Balanced Week", 7, func(d *types.DayTotals) bool {
		return frivolousSeconds(d) < 30*60 && productiveSeconds(d) > 0
	})
	streakTrophy("tidy-mornings", "Tidy Mornings", 5, func(d *types.DayTotals) bool {
		return d.MorningProductive >= 30*60
	})
	r.Register(def("week-one", "Week One", "Stay active on seven days of the trailing week.", "consistency"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			if m.Overview == nil {
				return counterProgress(0, 7)
			}
			return counterProgress(float64(m.Overview.ActiveDays), 7)
		})

	// Attention: 24-hour window quality.
	r.Register(def("dialed-in", "Dialed In", "Keep the trailing-day idle ratio at or under twenty percent.", "attention"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return ceilingProgress(m.Window.IdleRatio, 0.20, m.Window.TrackedSeconds >= 60*60)
		})
	r.Register(def("laser-focus", "Laser Focus", "Keep the trailing-day idle ratio at or under ten percent.", "attention"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return ceilingProgress(m.Window.IdleRatio, 0.10, m.Window.TrackedSeconds >= 60*60)
		})
	r.Register(def("steady-hands", "Steady Hands", "Average six context switches an hour or fewer over a tracked day.", "attention"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return ceilingProgress(m.Window.ContextSwitchesPerHour, 6, m.Window.TrackedSeconds >= 60*60)
		})
	r.Register(def("monk-mode", "Monk Mode", "A productive hour in a day with zero frivolous time.", "attention"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return booleanProgress(m.Window.FrivolousSeconds == 0 &&
				m.Window.ProductiveSeconds >= 60*60)
		})
	r.Register(def("best-stillness", "Best Stillness", "Set a new personal-best idle ratio.", "attention"),
		func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
			return booleanProgress(bests.BestIdleRatio24h >= 0 &&
				m.Window.TrackedSeconds >= 60*60 &&
				m.Window.IdleRatio < bests.BestIdleRatio24h)
		})

	// Abstinence: time away from frivolity.
	abstinenceTrophy := func(id, title string, hours float64) {
		r.Register(def(id, title, "Stay away from frivolous contexts.", "abstinence"),
			func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
				return counterProgress(bestAbstinence(m, bests), hours)
			})
	}
	abstinenceTrophy("breather", "Breather", 4)
	abstinenceTrophy("detox-day", "Detox Day", 24)
	abstinenceTrophy("detox-weekend", "Detox Weekend", 48)
	abstinenceTrophy("detox-week", "Detox Week", 168)
	r.Register(def("abstinence-record", "Clean Break", "Beat your longest frivolity-free stretch.", "abstinence"),
		func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
			return booleanProgress(bests.BestAbstinenceHours > 0 &&
				m.FrivolityAbstinenceHours > bests.BestAbstinenceHours)
		})

	// Recovery: bouncing back after lapses.
	r.Register(def("quick-rebound", "Quick Rebound", "Get back to productive work within five minutes of a lapse.", "recovery"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			for _, minutes := range m.RecoveryMinutes {
				if minutes <= 5 {
					return booleanProgress(true)
				}
			}
			return booleanProgress(false)
		})
	r.Register(def("bounce-back", "Bounce Back", "Keep average recovery time at or under fifteen minutes.", "recovery"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return ceilingProgress(averageRecoveryMinutes(m), 15, len(m.RecoveryMinutes) > 0)
		})
	r.Register(def("comeback-kid", "Comeback Kid", "Recover from ten lapses.", "recovery"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(len(m.RecoveryMinutes)), 10)
		})
	r.Register(def("comeback-champion", "Comeback Champion", "Recover from fifty lapses.", "recovery"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(len(m.RecoveryMinutes)), 50)
		})

	// Economy: wallet milestones.
	r.Register(def("first-coin", "First Coin", "Earn your first coin.", "economy"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.TotalEarned), 1)
		})
	walletTrophy := func(id, title string, balance float64) {
		r.Register(def(id, title, "Grow your wallet balance.", "economy"),
			func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
				best := float64(m.WalletBalance)
				if float64(bests.BestWalletBalance) > best {
					best = float64(bests.BestWalletBalance)
				}
				return counterProgress(best, balance)
			})
	}
	walletTrophy("saver", "Saver", 100)
	walletTrophy("nest-egg", "Nest Egg", 500)
	walletTrophy("hoarder", "Hoarder", 1000)
	r.Register(def("big-spender", "Big Spender", "Spend five hundred coins in total.", "economy"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.TotalSpent), 500)
		})
	r.Register(def("tycoon", "Tycoon", "Set a new personal-best wallet balance.", "economy"),
		func(m *types.Metrics, bests *types.PersonalBests) types.Progress {
			return booleanProgress(bests.BestWalletBalance > 0 &&
				m.WalletBalance > bests.BestWalletBalance)
		})

	// Willpower: paywall behavior.
	r.Register(def("second-thoughts", "Second Thoughts", "Decline the paywall once.", "willpower"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.PaywallDeclines), 1)
		})
	r.Register(def("iron-will", "Iron Will", "Decline the paywall ten times.", "willpower"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.PaywallDeclines), 10)
		})
	r.Register(def("gatekeeper", "Gatekeeper", "Decline the paywall twenty-five times.", "willpower"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.PaywallDeclines), 25)
		})
	r.Register(def("walk-away", "Walk Away", "Close a paywalled session five times without paying.", "willpower"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.PaywallExits), 5)
		})
	r.Register(def("self-aware", "Self-Aware", "Log ten frivolous sessions. Knowing is half the battle.", "willpower"),
		func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
			return counterProgress(float64(m.FrivolousSessions), 10)
		})

	// Library: replacing consumption with intent.
	libraryTrophy := func(id, title string, count float64) {
		r.Register(def(id, title, "Swap frivolous browsing for something from your library.", "library"),
			func(m *types.Metrics, _ *types.PersonalBests) types.Progress {
				return counterProgress(float64(m.LibraryReplaces), count)
			})
	}
	libraryTrophy("curator", "Curator", 1)
	libraryTrophy("bookworm", "Bookworm", 10)
	libraryTrophy("librarian", "Librarian", 25)
	libraryTrophy("head-librarian", "Head Librarian", 50)

	// Placeholders for signals not yet instrumented.
	r.Register(def("globetrotter", "Globetrotter", "Stay on track across devices.", "misc"),
		func(_ *types.Metrics, _ *types.PersonalBests) types.Progress {
			return untrackedProgress()
		})
	r.Register(def("tab-tamer", "Tab Tamer", "Keep your open tab count in check.", "misc"),
		func(_ *types.Metrics, _ *types.PersonalBests) types.Progress {
			return untrackedProgress()
		})
}
