package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	t.Run("direct domain error", func(t *testing.T) {
		err := New(CodeAuthNotOwner, "denied")
		if got := CodeOf(err); got != CodeAuthNotOwner {
			t.Errorf("expected %s, got %s", CodeAuthNotOwner, got)
		}
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		inner := New(CodeTokenExchangeFailed, "exchange rejected")
		err := fmt.Errorf("tool call: %w", inner)
		if got := CodeOf(err); got != CodeTokenExchangeFailed {
			t.Errorf("expected %s, got %s", CodeTokenExchangeFailed, got)
		}
	})

	t.Run("non-domain error", func(t *testing.T) {
		if got := CodeOf(errors.New("boom")); got != CodeUnknown {
			t.Errorf("expected %s, got %s", CodeUnknown, got)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if got := CodeOf(nil); got != CodeUnknown {
			t.Errorf("expected %s, got %s", CodeUnknown, got)
		}
	})
}

func TestErrorIs(t *testing.T) {
	cause := errors.New("upstream said no")
	err := Wrap(CodeAuthServiceFailed, "acquire service token", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause must match through the chain")
	}
	if !errors.Is(err, New(CodeAuthServiceFailed, "different message")) {
		t.Error("domain errors must match by code")
	}
	if errors.Is(err, New(CodeAuthNotOwner, "acquire service token")) {
		t.Error("different codes must not match")
	}
}

func TestErrorMessage(t *testing.T) {
	err := WithMetadata(CodeAuthNotConfigured, "service credentials are not configured",
		map[string]string{"client_id": ""})
	if err.Error() != "service credentials are not configured" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err.Metadata["client_id"] != "" {
		t.Errorf("unexpected metadata %v", err.Metadata)
	}
}
