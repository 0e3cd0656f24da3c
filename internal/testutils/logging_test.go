package testutils

import (
	"fmt"
	"testing"
)

func TestFieldsToMapWellFormedPairs(t *testing.T) {
	tests := []struct {
		name     string
		fields   []any
		expected map[string]any
	}{
		{
			name:     "empty",
			fields:   []any{},
			expected: map[string]any{},
		},
		{
			name:     "single pair",
			fields:   []any{"app", "focused"},
			expected: map[string]any{"app": "focused"},
		},
		{
			name:     "mixed value types",
			fields:   []any{"context", "github.com", "seconds", 42, "idle", false},
			expected: map[string]any{"context": "github.com", "seconds": 42, "idle": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FieldsToMap(t, tt.fields)
			if len(result) != len(tt.expected) {
				t.Errorf("map length = %d, want %d", len(result), len(tt.expected))
			}
			for key, want := range tt.expected {
				if got, ok := result[key]; !ok || got != want {
					t.Errorf("result[%q] = %v, want %v", key, got, want)
				}
			}
		})
	}
}

func TestFieldsToMapMalformedInput(t *testing.T) {
	var errorMessages []string
	recorder := &recordingT{record: func(msg string) {
		errorMessages = append(errorMessages, msg)
	}}

	t.Run("trailing key without value", func(t *testing.T) {
		errorMessages = nil
		result := FieldsToMap(recorder, []any{"category", "productive", "orphan"})

		if len(result) != 1 || result["category"] != "productive" {
			t.Errorf("result = %v, want only category pair", result)
		}
		if len(errorMessages) != 1 {
			t.Errorf("error messages = %d, want 1", len(errorMessages))
		}
	})

	t.Run("non-string key", func(t *testing.T) {
		errorMessages = nil
		result := FieldsToMap(recorder, []any{123, "ignored", "context", "docs.rs"})

		if len(result) != 1 || result["context"] != "docs.rs" {
			t.Errorf("result = %v, want only context pair", result)
		}
		if len(errorMessages) != 1 {
			t.Errorf("error messages = %d, want 1", len(errorMessages))
		}
	})
}

func TestCaptureLoggerRecordsLevelsInOrder(t *testing.T) {
	capture := NewCaptureLogger()

	capture.Debug("first", "k", 1)
	capture.Info("second")
	capture.Warn("third")
	capture.Error("fourth", "cause", "disk")

	calls := capture.Calls()
	if len(calls) != 4 {
		t.Fatalf("calls = %d, want 4", len(calls))
	}

	wantLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	wantMessages := []string{"first", "second", "third", "fourth"}
	for i, call := range calls {
		if call.Level != wantLevels[i] || call.Message != wantMessages[i] {
			t.Errorf("call %d = %s %q, want %s %q", i, call.Level, call.Message, wantLevels[i], wantMessages[i])
		}
	}

	fields := FieldsToMap(t, calls[3].Fields)
	if fields["cause"] != "disk" {
		t.Errorf("fields[cause] = %v, want disk", fields["cause"])
	}

	capture.Reset()
	if len(capture.Calls()) != 0 {
		t.Error("Reset should clear recorded calls")
	}
}

// recordingT funnels Errorf output into a slice for assertions.
type recordingT struct {
	record func(msg string)
}

func (r *recordingT) Errorf(format string, args ...any) {
	if r.record != nil {
		r.record(fmt.Sprintf(format, args...))
	}
}
