package config

import (
	"os"
	"sync"

	"vigil/internal/infrastructure/logging"

	"gopkg.in/yaml.v3"
)

// Provider is the read interface the core components consume. Every
// accessor degrades to a documented default when the underlying value
// is missing or invalid; none of them can fail.
type Provider interface {
	GetCategorisation() Categorisation
	GetIdleThreshold() float64
	GetFrivolousIdleThreshold() float64
	GetContinuityWindowSeconds() int
	GetExcludedKeywords() []string
	GetDomainAliases() map[string]string
	GetAppAliases() map[string]string
	GetBrowserApps() []string
}

// Categorisation holds the user's domain/app pattern lists, checked in
// productive → neutral → frivolity order by the classifier.
type Categorisation struct {
	Productive []string `yaml:"productive" json:"productive"`
	Neutral    []string `yaml:"neutral" json:"neutral"`
	Frivolity  []string `yaml:"frivolity" json:"frivolity"`
}

// Settings is the on-disk shape of the user settings file.
type Settings struct {
	Categorisation                Categorisation    `yaml:"categorisation" json:"categorisation"`
	IdleThresholdSeconds          float64           `yaml:"idleThresholdSeconds" json:"idleThresholdSeconds"`
	FrivolousIdleThresholdSeconds float64           `yaml:"frivolousIdleThresholdSeconds" json:"frivolousIdleThresholdSeconds"`
	ContinuityWindowSeconds       int               `yaml:"continuityWindowSeconds" json:"continuityWindowSeconds"`
	ExcludedKeywords              []string          `yaml:"excludedKeywords" json:"excludedKeywords"`
	DomainAliases                 map[string]string `yaml:"domainAliases" json:"domainAliases"`
	AppAliases                    map[string]string `yaml:"appAliases" json:"appAliases"`
	BrowserApps                   []string          `yaml:"browserApps" json:"browserApps"`
}

const (
	// DefaultIdleThresholdSeconds is how long without input before an
	// activity counts as idle.
	DefaultIdleThresholdSeconds = 90
	// DefaultFrivolousIdleThresholdSeconds is the lower ceiling applied
	// to frivolous activity so passive tabs flag idle faster.
	DefaultFrivolousIdleThresholdSeconds = 30
	// DefaultContinuityWindowSeconds is the grace period during which a
	// neutral non-idle event after productive work stays productive.
	DefaultContinuityWindowSeconds = 300
)

// DefaultSettings returns the settings used when no file exists or a
// value is absent.
func DefaultSettings() *Settings {
	return &Settings{
		Categorisation: Categorisation{
			Productive: []string{
				"github.com", "gitlab.com", "stackoverflow.com",
				"docs.google.com", "notion.so", "localhost",
			},
			Neutral: []string{
				"wikipedia.org", "mail.google.com", "news.ycombinator.com",
			},
			Frivolity: []string{
				"youtube.com", "twitter.com", "x.com", "reddit.com",
				"instagram.com", "tiktok.com", "twitch.tv", "netflix.com",
			},
		},
		IdleThresholdSeconds:          DefaultIdleThresholdSeconds,
		FrivolousIdleThresholdSeconds: DefaultFrivolousIdleThresholdSeconds,
		ContinuityWindowSeconds:       DefaultContinuityWindowSeconds,
		ExcludedKeywords:              nil,
		DomainAliases: map[string]string{
			"youtu.be":      "youtube.com",
			"m.youtube.com": "youtube.com",
			"fb.com":        "facebook.com",
			"redd.it":       "reddit.com",
			"t.co":          "twitter.com",
			"x.com":         "twitter.com",
		},
		AppAliases: map[string]string{
			"Google Chrome":      "Chrome",
			"chrome":             "Chrome",
			"Microsoft Edge":     "Edge",
			"msedge":             "Edge",
			"firefox":            "Firefox",
			"Code":               "VS Code",
			"Visual Studio Code": "VS Code",
		},
		BrowserApps: []string{
			"Chrome", "Firefox", "Safari", "Edge", "Brave", "Arc", "Opera", "Vivaldi",
		},
	}
}

// FileProvider serves settings from a YAML file, falling back to
// defaults field by field. Safe for concurrent use; Reload swaps the
// whole snapshot so readers always see a consistent view.
type FileProvider struct {
	mu       sync.RWMutex
	path     string
	current  *Settings
	defaults *Settings
	logger   logging.Logger
}

// NewFileProvider creates a provider backed by the given path. The file
// not existing is not an error; defaults apply until it appears.
func NewFileProvider(path string, logger logging.Logger) *FileProvider {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	p := &FileProvider{
		path:     path,
		defaults: DefaultSettings(),
		logger:   logger,
	}
	p.current = p.defaults
	if err := p.Reload(); err != nil {
		logger.Warn("Settings file unreadable, using defaults", "path", path, "error", err)
	}
	return p
}

// NewStaticProvider wraps a fixed Settings value, mainly for tests.
func NewStaticProvider(s *Settings) *FileProvider {
	if s == nil {
		s = DefaultSettings()
	}
	return &FileProvider{current: s, defaults: DefaultSettings()}
}

// Reload re-reads the settings file. Parse failures keep the previous
// snapshot in place.
func (p *FileProvider) Reload() error {
	if p.path == "" {
		return nil
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}

	loaded := &Settings{}
	if err := yaml.Unmarshal(raw, loaded); err != nil {
		p.logger.Warn("Settings file failed to parse, keeping previous settings", "path", p.path, "error", err)
		return err
	}

	p.mu.Lock()
	p.current = loaded
	p.mu.Unlock()

	p.logger.Info("Settings reloaded", "path", p.path)
	return nil
}

func (p *FileProvider) snapshot() *Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// GetCategorisation returns the pattern lists, substituting defaults
// when every list is empty.
func (p *FileProvider) GetCategorisation() Categorisation {
	c := p.snapshot().Categorisation
	if len(c.Productive) == 0 && len(c.Neutral) == 0 && len(c.Frivolity) == 0 {
		return p.defaults.Categorisation
	}
	return c
}

func (p *FileProvider) GetIdleThreshold() float64 {
	v := p.snapshot().IdleThresholdSeconds
	if v <= 0 {
		return p.defaults.IdleThresholdSeconds
	}
	return v
}

func (p *FileProvider) GetFrivolousIdleThreshold() float64 {
	v := p.snapshot().FrivolousIdleThresholdSeconds
	if v <= 0 {
		return p.defaults.FrivolousIdleThresholdSeconds
	}
	return v
}

func (p *FileProvider) GetContinuityWindowSeconds() int {
	v := p.snapshot().ContinuityWindowSeconds
	if v <= 0 {
		return p.defaults.ContinuityWindowSeconds
	}
	return v
}

func (p *FileProvider) GetExcludedKeywords() []string {
	return p.snapshot().ExcludedKeywords
}

func (p *FileProvider) GetDomainAliases() map[string]string {
	v := p.snapshot().DomainAliases
	if len(v) == 0 {
		return p.defaults.DomainAliases
	}
	return v
}

func (p *FileProvider) GetAppAliases() map[string]string {
	v := p.snapshot().AppAliases
	if len(v) == 0 {
		return p.defaults.AppAliases
	}
	return v
}

func (p *FileProvider) GetBrowserApps() []string {
	v := p.snapshot().BrowserApps
	if len(v) == 0 {
		return p.defaults.BrowserApps
	}
	return v
}
