package admission

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	if got := CodeOf(ErrNotFound); got != CodeNotFound {
		t.Fatalf("code = %q, want %q", got, CodeNotFound)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("code = %q, want empty", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("code = %q, want empty", got)
	}

	wrapped := fmt.Errorf("outer: %w", Wrap(CodeConfiguration, "bad setting", nil))
	if got := CodeOf(wrapped); got != CodeConfiguration {
		t.Fatalf("code = %q, want %q", got, CodeConfiguration)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	err := Wrap(CodeInvalidInput, "validation failed", cause)
	if err.Error() != "validation failed" {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
}
