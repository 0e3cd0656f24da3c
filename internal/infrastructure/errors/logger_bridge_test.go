package errors

import (
	"testing"

	"vigil/internal/testutils"
)

func TestLoggerBridgeLogsAtDebugWithRetrySource(t *testing.T) {
	capture := testutils.NewCaptureLogger()
	bridge := NewLoggerBridge(capture)

	bridge.Printf("attempt %d of %d", 2, 3)

	calls := capture.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	call := calls[0]
	if call.Level != "DEBUG" {
		t.Errorf("level = %q, want DEBUG", call.Level)
	}
	if call.Message != "attempt 2 of 3" {
		t.Errorf("message = %q", call.Message)
	}
	fields := testutils.FieldsToMap(t, call.Fields)
	if fields["source"] != "retry" {
		t.Errorf("fields[source] = %v, want retry", fields["source"])
	}
}

func TestNewLoggerBridgeNilLoggerFallsBack(t *testing.T) {
	if NewLoggerBridge(nil) == nil {
		t.Fatal("bridge should never be nil")
	}
}
