package ops

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	notFound := NewDispatchError(CodeNotFound, "math.nope", "operation not found", nil)
	start := NewRuntimeStartError("boot failed", errors.New("no such module"))

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"code matches class sentinel", notFound, ErrDispatch, true},
		{"code matches code sentinel", notFound, ErrOpNotFound, true},
		{"different code", notFound, ErrArity, false},
		{"different class", notFound, ErrRuntimeStart, false},
		{"runtime start", start, ErrRuntimeStart, true},
		{"runtime start is not dispatch", start, ErrDispatch, false},
		{"wrapped", fmt.Errorf("outer: %w", notFound), ErrOpNotFound, true},
		{"plain error", errors.New("x"), ErrDispatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	err := NewDispatchError(CodeFailed, "math.add", "operation failed", cause)

	want := "[dispatch] operation failed (operation=math.add): boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap() does not expose cause")
	}
}

func TestErrorHelpers(t *testing.T) {
	start := NewRuntimeStartError("boot failed", nil)
	if !IsRuntimeStart(start) || IsDispatch(start) {
		t.Error("runtime start classification wrong")
	}

	d := (&Error{Class: ErrorClassDispatch, Message: "x"}).WithCode(CodeArity).WithOperation("a.b")
	if !IsDispatch(d) {
		t.Error("IsDispatch() = false")
	}
	if CodeOf(fmt.Errorf("wrap: %w", d)) != CodeArity {
		t.Errorf("CodeOf() = %q, want %q", CodeOf(d), CodeArity)
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf(plain) should be empty")
	}
}
