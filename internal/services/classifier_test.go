package services

import (
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/types"
)

func testProvider() *config.FileProvider {
	return config.NewStaticProvider(&config.Settings{
		Categorisation: config.Categorisation{
			Productive: []string{"github.com", "localhost", "code"},
			Neutral:    []string{"wikipedia.org"},
			Frivolity:  []string{"youtube.com", "reddit.com"},
		},
		IdleThresholdSeconds:          90,
		FrivolousIdleThresholdSeconds: 30,
		ContinuityWindowSeconds:       300,
		DomainAliases: map[string]string{
			"youtu.be": "youtube.com",
		},
		AppAliases: map[string]string{
			"Google Chrome": "Chrome",
		},
		BrowserApps: []string{"Chrome", "Firefox"},
	})
}

func TestClassifierCategoryResolution(t *testing.T) {
	classifier := NewClassifier(testProvider())

	tests := []struct {
		name     string
		domain   string
		appName  string
		expected types.Category
	}{
		{"exact productive domain", "github.com", "", types.CategoryProductive},
		{"subdomain of productive domain", "gist.github.com", "", types.CategoryProductive},
		{"dot boundary blocks lookalike", "evilgithub.com", "", types.CategoryNeutral},
		{"frivolous domain", "youtube.com", "", types.CategoryFrivolous},
		{"frivolous subdomain", "music.youtube.com", "", types.CategoryFrivolous},
		{"unknown domain defaults neutral", "example.org", "", types.CategoryNeutral},
		{"substring pattern against app name", "", "VS Code", types.CategoryProductive},
		{"neutral list before frivolity", "wikipedia.org", "", types.CategoryNeutral},
		{"no signal defaults neutral", "", "Some App", types.CategoryNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(types.Observation{
				Timestamp: time.Now(),
				Origin:    types.OriginExtension,
				AppName:   tt.appName,
				Domain:    tt.domain,
			})
			if result.Category != tt.expected {
				t.Errorf("Classify(%q, %q) category = %q, want %q",
					tt.domain, tt.appName, result.Category, tt.expected)
			}
		})
	}
}

func TestClassifierDotBoundary(t *testing.T) {
	classifier := NewClassifier(config.NewStaticProvider(&config.Settings{
		Categorisation: config.Categorisation{
			Productive: []string{"google.com"},
		},
		IdleThresholdSeconds:          90,
		FrivolousIdleThresholdSeconds: 30,
	}))

	match := classifier.Classify(types.Observation{Domain: "mail.google.com"})
	if match.Category != types.CategoryProductive {
		t.Errorf("mail.google.com should match pattern google.com, got %q", match.Category)
	}

	noMatch := classifier.Classify(types.Observation{Domain: "evilgoogle.com"})
	if noMatch.Category != types.CategoryNeutral {
		t.Errorf("evilgoogle.com should not match pattern google.com, got %q", noMatch.Category)
	}
}

func TestClassifierIdleThresholds(t *testing.T) {
	classifier := NewClassifier(testProvider())

	tests := []struct {
		name        string
		domain      string
		idleSeconds float64
		wantIdle    bool
	}{
		{"productive under threshold", "github.com", 89, false},
		{"productive at threshold", "github.com", 90, true},
		{"frivolous uses lower threshold", "youtube.com", 30, true},
		{"frivolous under lower threshold", "youtube.com", 29, false},
		{"neutral uses standard threshold", "example.org", 45, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(types.Observation{
				Domain:      tt.domain,
				IdleSeconds: tt.idleSeconds,
			})
			if result.IsIdle != tt.wantIdle {
				t.Errorf("Classify(%q, idle=%v) isIdle = %v, want %v",
					tt.domain, tt.idleSeconds, result.IsIdle, tt.wantIdle)
			}
		})
	}
}

func TestClassifierCanonicalisesBeforeMatching(t *testing.T) {
	classifier := NewClassifier(testProvider())

	result := classifier.Classify(types.Observation{Domain: "youtu.be"})
	if result.Domain != "youtube.com" {
		t.Errorf("domain alias not applied: got %q, want %q", result.Domain, "youtube.com")
	}
	if result.Category != types.CategoryFrivolous {
		t.Errorf("aliased domain should classify as frivolous, got %q", result.Category)
	}

	result = classifier.Classify(types.Observation{Domain: "www.GitHub.com"})
	if result.Domain != "github.com" {
		t.Errorf("www prefix and case should normalise: got %q", result.Domain)
	}
	if result.Category != types.CategoryProductive {
		t.Errorf("normalised domain should classify as productive, got %q", result.Category)
	}
}

func TestAliaserCanonicalApp(t *testing.T) {
	aliaser := NewAliaser(testProvider())

	tests := []struct {
		in   string
		want string
	}{
		{"Google Chrome", "Chrome"},
		{"google chrome", "Chrome"},
		{"Chrome", "Chrome"},
		{"Some Editor", "Some Editor"},
		{"  Firefox  ", "Firefox"},
	}

	for _, tt := range tests {
		if got := aliaser.CanonicalApp(tt.in); got != tt.want {
			t.Errorf("CanonicalApp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
