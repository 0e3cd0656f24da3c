package services

import (
	"strings"

	"vigil/internal/config"
	"vigil/internal/types"
)

// Classifier maps a raw observation to a category and idle flag. It is
// pure apart from reading live configuration through the injected
// provider, so categorisation changes apply without a restart.
type Classifier struct {
	config  config.Provider
	aliaser *Aliaser
}

// NewClassifier creates a classifier backed by the given configuration.
func NewClassifier(cfg config.Provider) *Classifier {
	return &Classifier{
		config:  cfg,
		aliaser: NewAliaser(cfg),
	}
}

// Aliaser exposes the classifier's canonicalisation table so other
// components group contexts identically.
func (c *Classifier) Aliaser() *Aliaser {
	return c.aliaser
}

// Classify resolves the observation's category and idle state. The
// returned activity carries the canonicalised domain and app name.
func (c *Classifier) Classify(obs types.Observation) types.ClassifiedActivity {
	obs.Domain = c.aliaser.CanonicalDomain(obs.Domain)
	obs.AppName = c.aliaser.CanonicalApp(obs.AppName)

	category := c.resolveCategory(obs.Domain, obs.AppName)

	threshold := c.config.GetIdleThreshold()
	if category == types.CategoryFrivolous {
		threshold = c.config.GetFrivolousIdleThreshold()
	}

	return types.ClassifiedActivity{
		Observation: obs,
		Category:    category,
		IsIdle:      obs.IdleSeconds >= threshold,
	}
}

// resolveCategory checks the productive, neutral and frivolity pattern
// lists in that order; the first list with a match wins and the default
// is neutral.
func (c *Classifier) resolveCategory(domain, appName string) types.Category {
	cat := c.config.GetCategorisation()

	if matchesAny(cat.Productive, domain, appName) {
		return types.CategoryProductive
	}
	if matchesAny(cat.Neutral, domain, appName) {
		return types.CategoryNeutral
	}
	if matchesAny(cat.Frivolity, domain, appName) {
		return types.CategoryFrivolous
	}
	return types.CategoryNeutral
}

func matchesAny(patterns []string, domain, appName string) bool {
	for _, pattern := range patterns {
		if matchesPattern(pattern, domain, appName) {
			return true
		}
	}
	return false
}

// matchesPattern applies one pattern. A pattern containing a dot is a
// domain pattern: it must match the domain exactly or as a suffix
// behind a dot boundary, so "google.com" matches "mail.google.com" but
// not "evilgoogle.com". A pattern without a dot is a loose substring
// match against the domain or the app name.
func matchesPattern(pattern, domain, appName string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return false
	}

	d := strings.ToLower(domain)
	a := strings.ToLower(appName)

	if strings.Contains(p, ".") {
		return d == p || strings.HasSuffix(d, "."+p)
	}
	return strings.Contains(d, p) || strings.Contains(a, p)
}
