package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "backend error",
			err:  NewBackendError("stage", fmt.Errorf("boom")),
			want: ErrorKindBackend,
		},
		{
			name: "wrapped tool error",
			err:  fmt.Errorf("stage loop: %w", NewToolError("s", "websearch", fmt.Errorf("timeout"))),
			want: ErrorKindTool,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: ErrorKindCanceled,
		},
		{
			name: "deadline wins over kind",
			err:  NewBackendError("stage", context.DeadlineExceeded),
			want: ErrorKindCanceled,
		},
		{
			name: "foreign error",
			err:  fmt.Errorf("plain"),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	t.Run("passes through structured errors", func(t *testing.T) {
		orig := NewUnresolvedKeyError("k")
		got := AsError(fmt.Errorf("wrapped: %w", orig), "other")
		if got != orig {
			t.Errorf("AsError() = %v, want the original error", got)
		}
	})

	t.Run("coerces foreign errors", func(t *testing.T) {
		got := AsError(fmt.Errorf("boom"), "initial_architecture")
		if got.Kind != ErrorKindBackend {
			t.Errorf("Kind = %v, want backend", got.Kind)
		}
		if got.Stage != "initial_architecture" {
			t.Errorf("Stage = %q, want initial_architecture", got.Stage)
		}
	})

	t.Run("coerces cancellation", func(t *testing.T) {
		got := AsError(context.Canceled, "s")
		if got.Kind != ErrorKindCanceled {
			t.Errorf("Kind = %v, want canceled", got.Kind)
		}
	})
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewBackendError("s", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not reach the wrapped cause")
	}
}
