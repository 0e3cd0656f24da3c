package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorCodeString(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeNotFound, "NOT_FOUND"},
		{ErrCodeDuplicate, "DUPLICATE"},
		{ErrCodeConstraint, "CONSTRAINT"},
		{ErrCodeConnection, "CONNECTION"},
		{ErrCodeTransaction, "TRANSACTION"},
		{ErrCodeTimeout, "TIMEOUT"},
		{ErrCodeValidation, "VALIDATION"},
		{ErrCodeBusy, "BUSY"},
		{ErrCodeCorruption, "CORRUPTION"},
		{ErrCodeUnknown, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestRepositoryErrorMessage(t *testing.T) {
	err := NewRepositoryErrorWithContext("InsertOpenRecord",
		fmt.Errorf("disk unhappy"), ErrCodeConnection,
		map[string]string{"b_key": "2", "a_key": "1"})

	msg := err.Error()
	if !strings.HasPrefix(msg, "disk unhappy [") {
		t.Errorf("message should lead with the cause, got %q", msg)
	}
	for _, part := range []string{"op=InsertOpenRecord", "code=CONNECTION", "retryable=true"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message missing %q: %q", part, msg)
		}
	}
	// Context keys render sorted so log lines are stable.
	if strings.Index(msg, "a_key=1") > strings.Index(msg, "b_key=2") {
		t.Errorf("context keys not sorted: %q", msg)
	}
}

func TestRepositoryErrorNilReceiver(t *testing.T) {
	var err *RepositoryError
	if got := err.Error(); got != "repository error" {
		t.Errorf("nil receiver Error() = %q", got)
	}
	if err.Unwrap() != nil {
		t.Error("nil receiver Unwrap() should be nil")
	}
	if err.IsRetryable() {
		t.Error("nil receiver should not be retryable")
	}
}

func TestRepositoryErrorUnwrapAndIs(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewRepositoryError("CloseRecord", cause, ErrCodeNotFound)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	if !errors.Is(err, &RepositoryError{Code: ErrCodeNotFound}) {
		t.Error("errors.Is should match by code")
	}
	if errors.Is(err, &RepositoryError{Code: ErrCodeConnection}) {
		t.Error("errors.Is must not match a different code")
	}
}

func TestRetryabilityByCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeConnection, true},
		{ErrCodeTimeout, true},
		{ErrCodeTransaction, true},
		{ErrCodeBusy, true},
		{ErrCodeNotFound, false},
		{ErrCodeDuplicate, false},
		{ErrCodeConstraint, false},
		{ErrCodeValidation, false},
		{ErrCodeCorruption, false},
	}

	for _, tt := range tests {
		err := NewRepositoryError("op", fmt.Errorf("x"), tt.code)
		if err.Retryable != tt.want {
			t.Errorf("%s retryable = %v, want %v", tt.code, err.Retryable, tt.want)
		}
	}
}

func TestUnknownCodeRetryabilityFromMessage(t *testing.T) {
	busy := NewRepositoryError("op", fmt.Errorf("database table is locked"), ErrCodeUnknown)
	if !busy.Retryable {
		t.Error("locked message with unknown code should be retryable")
	}
	hard := NewRepositoryError("op", fmt.Errorf("syntax error"), ErrCodeUnknown)
	if hard.Retryable {
		t.Error("unrelated message with unknown code must not be retryable")
	}
}

func TestWithContextClonesMap(t *testing.T) {
	src := map[string]string{"key": "before"}
	err := NewRepositoryErrorWithContext("op", fmt.Errorf("x"), ErrCodeValidation, src)

	src["key"] = "after"
	if err.Context["key"] != "before" {
		t.Error("context map must be cloned, not aliased")
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := HandleNotFound("GetJSON", "settings", "trophy.personalBests")
	if !IsNotFound(notFound) {
		t.Error("IsNotFound should recognise a not-found repository error")
	}
	// Wrapped once more it must still match.
	if !IsNotFound(fmt.Errorf("loading state: %w", notFound)) {
		t.Error("IsNotFound should unwrap")
	}
	if IsNotFound(fmt.Errorf("plain error")) {
		t.Error("IsNotFound must reject non-repository errors")
	}
	if IsNotFound(NewRepositoryError("op", fmt.Errorf("x"), ErrCodeConnection)) {
		t.Error("IsNotFound must reject other codes")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewRepositoryError("op", fmt.Errorf("x"), ErrCodeBusy)) {
		t.Error("busy repository error should be retryable")
	}
	if IsRetryable(fmt.Errorf("plain error")) {
		t.Error("non-repository errors are never retryable")
	}
}

func TestLogFieldsCarriesMetadataAndSortedContext(t *testing.T) {
	err := NewRepositoryErrorWithContext("op", fmt.Errorf("locked"), ErrCodeBusy,
		map[string]string{"b_key": "2", "a_key": "1"})

	fields := err.LogFields()
	if len(fields) != 10 {
		t.Fatalf("len(fields) = %d, want 10", len(fields))
	}
	if fields[0] != "error_code" || fields[1] != "BUSY" {
		t.Errorf("fields[0:2] = %v %v", fields[0], fields[1])
	}
	if fields[2] != "retryable" || fields[3] != true {
		t.Errorf("fields[2:4] = %v %v", fields[2], fields[3])
	}
	// Context keys come out sorted.
	if fields[6] != "a_key" || fields[8] != "b_key" {
		t.Errorf("context keys out of order: %v %v", fields[6], fields[8])
	}

	var nilErr *RepositoryError
	if nilErr.LogFields() != nil {
		t.Error("nil receiver should yield no fields")
	}
}
