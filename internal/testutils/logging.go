package testutils

import "sync"

// TestingT is the slice of testing.T these helpers need.
type TestingT interface {
	Errorf(format string, args ...any)
}

// LogCall records one call made against a CaptureLogger.
type LogCall struct {
	Level   string
	Message string
	Fields  []any
}

// CaptureLogger implements logging.Logger and records every call so
// tests can assert on levels, messages and field pairs.
type CaptureLogger struct {
	mu    sync.Mutex
	calls []LogCall
}

func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (c *CaptureLogger) record(level, msg string, fields []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, LogCall{Level: level, Message: msg, Fields: fields})
}

func (c *CaptureLogger) Debug(msg string, fields ...any) { c.record("DEBUG", msg, fields) }
func (c *CaptureLogger) Info(msg string, fields ...any)  { c.record("INFO", msg, fields) }
func (c *CaptureLogger) Warn(msg string, fields ...any)  { c.record("WARN", msg, fields) }
func (c *CaptureLogger) Error(msg string, fields ...any) { c.record("ERROR", msg, fields) }

// Calls returns a copy of the recorded calls.
func (c *CaptureLogger) Calls() []LogCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// Reset clears the recorded calls.
func (c *CaptureLogger) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// FieldsToMap converts alternating key/value pairs to a map for
// assertions, reporting malformed entries through t.
func FieldsToMap(t TestingT, fields []any) map[string]any {
	fieldsMap := make(map[string]any)

	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			t.Errorf("fields slice is missing the value for key at index %d", i)
			continue
		}

		key, ok := fields[i].(string)
		if !ok {
			t.Errorf("field key at index %d is %T, want string", i, fields[i])
			continue
		}

		fieldsMap[key] = fields[i+1]
	}

	return fieldsMap
}
