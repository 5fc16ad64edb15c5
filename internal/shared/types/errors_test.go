package types

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := NewError(KindStop, "terminate pid 42", os.ErrPermission)
	wrapped := fmt.Errorf("stopping mihomo: %w", err)

	if !errors.Is(wrapped, ErrStop) {
		t.Fatalf("expected wrapped error to match ErrStop")
	}
	if errors.Is(wrapped, ErrLaunch) {
		t.Fatalf("stop error must not match ErrLaunch")
	}
	if !errors.Is(wrapped, os.ErrPermission) {
		t.Fatalf("expected cause to stay reachable through Unwrap")
	}
	if KindOf(wrapped) != KindStop {
		t.Fatalf("KindOf = %v, want %v", KindOf(wrapped), KindStop)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %v, want KindUnknown", got)
	}
}

func TestError_Message(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindNoMirrorAvailable}, "no mirror available"},
		{&Error{Kind: KindPrerequisiteMissing, Op: "ssh not found"}, "prerequisite missing: ssh not found"},
		{&Error{Kind: KindLaunch, Err: errors.New("exec: not found")}, "launch error: exec: not found"},
		{&Error{Kind: KindPersistence, Op: "write record", Err: errors.New("read-only")}, "persistence error: write record: read-only"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
	}
}
