package services

import (
	"strings"

	"vigil/internal/config"
)

// Aliaser canonicalises domains and application names using the alias
// tables from configuration. Every component that groups by context
// (classifier, session builder, metrics) must go through the same
// canonicalisation so "youtu.be" and "youtube.com" land in one bucket
// and "Google Chrome" and "Chrome" collapse into one session.
type Aliaser struct {
	config config.Provider
}

// NewAliaser creates an aliaser backed by the given configuration.
func NewAliaser(cfg config.Provider) *Aliaser {
	return &Aliaser{config: cfg}
}

// CanonicalDomain lowercases the domain, strips a leading "www." and
// applies the domain alias table.
func (a *Aliaser) CanonicalDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	if d == "" {
		return ""
	}
	if canonical, ok := a.config.GetDomainAliases()[d]; ok {
		return canonical
	}
	return d
}

// CanonicalApp applies the app-name alias table. Lookup is
// case-insensitive; unknown names pass through trimmed but otherwise
// unchanged.
func (a *Aliaser) CanonicalApp(appName string) string {
	name := strings.TrimSpace(appName)
	if name == "" {
		return ""
	}
	aliases := a.config.GetAppAliases()
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	lower := strings.ToLower(name)
	for from, to := range aliases {
		if strings.ToLower(from) == lower {
			return to
		}
	}
	return name
}
