package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	cases := []struct {
		class ErrorClass
		want  string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.class.String(); got != tc.want {
			t.Errorf("ErrorClass(%d).String() = %q, want %q", tc.class, got, tc.want)
		}
	}
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "KafkaSource", "Consume", "fetch message")

	want := "KafkaSource.Consume: fetch message failed: boom"
	if err.Error() != want {
		t.Errorf("Wrap() = %q, want %q", err.Error(), want)
	}
	if !stderrors.Is(err, base) {
		t.Error("wrapped error must unwrap to the base error")
	}

	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("Wrap(nil) must return nil")
	}
}

func TestWrapTransient_Classification(t *testing.T) {
	err := WrapTransient(stderrors.New("publish refused"), "Publisher", "Publish", "write")

	if !IsTransient(err) {
		t.Error("WrapTransient result must be transient")
	}
	if IsFatal(err) || IsInvalid(err) {
		t.Error("WrapTransient result must not be fatal or invalid")
	}
	if Classify(err) != ErrorTransient {
		t.Errorf("Classify() = %v, want transient", Classify(err))
	}
}

func TestWrapFatal_Classification(t *testing.T) {
	err := WrapFatal(ErrSessionFatal, "NATSSource", "Consume", "session")

	if !IsFatal(err) {
		t.Error("WrapFatal result must be fatal")
	}
	if Classify(err) != ErrorFatal {
		t.Errorf("Classify() = %v, want fatal", Classify(err))
	}
}

func TestWrapInvalid_Classification(t *testing.T) {
	err := WrapInvalid(ErrInvalidConfig, "Config", "Validate", "watermarks")

	if !IsInvalid(err) {
		t.Error("WrapInvalid result must be invalid")
	}
	if Classify(err) != ErrorInvalid {
		t.Errorf("Classify() = %v, want invalid", Classify(err))
	}
}

func TestClassification_Sentinels(t *testing.T) {
	if !IsTransient(ErrRoutingFailed) {
		t.Error("ErrRoutingFailed must be transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline exceeded must be transient")
	}
	if !IsFatal(ErrSessionFatal) {
		t.Error("ErrSessionFatal must be fatal")
	}
	if !IsFatal(fmt.Errorf("wrapped: %w", ErrConnectionLost)) {
		t.Error("wrapped ErrConnectionLost must be fatal")
	}
	if !IsInvalid(ErrUnknownMode) {
		t.Error("ErrUnknownMode must be invalid")
	}
}

func TestClassify_UnknownDefaultsTransient(t *testing.T) {
	if Classify(stderrors.New("mystery")) != ErrorTransient {
		t.Error("unknown errors default to transient")
	}
	if Classify(nil) != ErrorTransient {
		t.Error("nil defaults to transient")
	}
}

func TestShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	transient := WrapTransient(stderrors.New("x"), "c", "m", "a")
	if !rc.ShouldRetry(transient, 0) {
		t.Error("transient error within budget should retry")
	}
	if rc.ShouldRetry(transient, rc.MaxRetries) {
		t.Error("exhausted budget must not retry")
	}
	if rc.ShouldRetry(WrapFatal(stderrors.New("x"), "c", "m", "a"), 0) {
		t.Error("fatal errors must not retry")
	}
	if rc.ShouldRetry(nil, 0) {
		t.Error("nil must not retry")
	}
}

func TestToRetryConfig(t *testing.T) {
	rc := RetryConfig{MaxRetries: 3, BackoffFactor: 2.0}
	cfg := rc.ToRetryConfig()

	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4 (retries + initial attempt)", cfg.MaxAttempts)
	}
	if !cfg.AddJitter {
		t.Error("jitter must be enabled")
	}
}
