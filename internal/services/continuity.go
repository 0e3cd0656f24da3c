package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/infrastructure/logging"
	"vigil/internal/types"
)

// ArbitrationDecision names the outcome of cross-source arbitration.
type ArbitrationDecision string

const (
	DecisionAccept                ArbitrationDecision = "accept"
	DecisionRejectStaleBackground ArbitrationDecision = "reject-stale-background"
)

// systemFreshnessWindow is how recently a system-origin foreground
// context must have been observed for it to veto an extension event.
const systemFreshnessWindow = 3 * time.Second

// ActivitySink receives every classified activity the pipeline accepts.
// The economy/notification collaborators hang off this interface.
type ActivitySink interface {
	OnClassifiedActivity(activity types.ClassifiedActivity)
}

// ContinuityPipeline is the single entry point external callers use to
// report an observation. It arbitrates between the system poller and
// the browser extension, classifies the accepted event, applies
// continuity smoothing, and forwards the result to the session builder
// and any registered sinks.
type ContinuityPipeline struct {
	mu         sync.Mutex
	classifier *Classifier
	builder    *SessionBuilder
	config     config.Provider
	logger     logging.Logger
	sinks      []ActivitySink

	lastSystemApp string
	lastSystemAt  time.Time

	lastProductiveAt time.Time
}

// NewContinuityPipeline creates the pipeline over an existing
// classifier and session builder.
func NewContinuityPipeline(classifier *Classifier, builder *SessionBuilder, cfg config.Provider, logger logging.Logger) *ContinuityPipeline {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ContinuityPipeline{
		classifier: classifier,
		builder:    builder,
		config:     cfg,
		logger:     logger,
	}
}

// AddSink registers a downstream consumer of classified activity.
func (p *ContinuityPipeline) AddSink(sink ActivitySink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// Handle ingests one observation. Rejected events are dropped silently;
// the timeline's correctness takes priority over surfacing sensor
// noise.
func (p *ContinuityPipeline) Handle(ctx context.Context, obs types.Observation) error {
	p.mu.Lock()

	if obs.Origin == types.OriginSystem {
		p.lastSystemApp = p.classifier.Aliaser().CanonicalApp(obs.AppName)
		p.lastSystemAt = obs.Timestamp
	}

	if decision := p.arbitrate(obs); decision != DecisionAccept {
		p.mu.Unlock()
		p.logger.Debug("Observation rejected",
			"decision", string(decision),
			"origin", string(obs.Origin),
			"app", obs.AppName,
			"domain", obs.Domain)
		return nil
	}

	classified := p.classifier.Classify(obs)
	p.applyContinuity(&classified)

	sinks := make([]ActivitySink, len(p.sinks))
	copy(sinks, p.sinks)
	p.mu.Unlock()

	err := p.builder.RecordActivity(ctx, classified)

	for _, sink := range sinks {
		sink.OnClassifiedActivity(classified)
	}
	return err
}

// arbitrate decides whether an observation is trustworthy. An
// extension event is rejected only when the system foreground context
// is fresh and points at a non-browser application: the extension must
// then be describing a backgrounded tab. Caller holds the lock.
func (p *ContinuityPipeline) arbitrate(obs types.Observation) ArbitrationDecision {
	if obs.Origin != types.OriginExtension {
		return DecisionAccept
	}
	if p.lastSystemAt.IsZero() {
		return DecisionAccept
	}
	if obs.Timestamp.Sub(p.lastSystemAt) > systemFreshnessWindow {
		return DecisionAccept
	}
	if p.isBrowserApp(p.lastSystemApp) {
		return DecisionAccept
	}
	return DecisionRejectStaleBackground
}

func (p *ContinuityPipeline) isBrowserApp(appName string) bool {
	name := strings.ToLower(appName)
	for _, browser := range p.config.GetBrowserApps() {
		if strings.ToLower(browser) == name {
			return true
		}
	}
	return false
}

// applyContinuity smooths short non-productive gaps inside productive
// work: a neutral, non-idle event within the continuity window after
// the last genuinely productive event is promoted to productive. A
// frivolous event always resets the memory; only genuine productive
// events refresh it, so a chain of promotions cannot extend the window
// indefinitely. Caller holds the lock.
func (p *ContinuityPipeline) applyContinuity(activity *types.ClassifiedActivity) {
	// Frivolous resets regardless of idleness: an idle YouTube tab is
	// still a lapse.
	if activity.Category == types.CategoryFrivolous {
		p.lastProductiveAt = time.Time{}
	}
	if activity.IsIdle {
		return
	}

	switch activity.Category {
	case types.CategoryProductive:
		p.lastProductiveAt = activity.Timestamp
	case types.CategoryNeutral:
		if p.lastProductiveAt.IsZero() {
			return
		}
		window := time.Duration(p.config.GetContinuityWindowSeconds()) * time.Second
		if activity.Timestamp.Sub(p.lastProductiveAt) <= window {
			activity.Category = types.CategoryProductive
			activity.ContinuityApplied = true
		}
	}
}
