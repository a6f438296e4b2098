package cli

import (
	"errors"
	"testing"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{
			name:  "with field path",
			field: "transport.default",
			want:  "configuration error in transport.default: unknown transport",
		},
		{
			name:  "whole-file failure",
			field: "",
			want:  "configuration error: unknown transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.field, "unknown transport")
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	cause := errors.New("audit backend unreachable")
	err := NewCommandError("audit prune", cause)

	want := "gateway audit prune: audit backend unreachable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should see through CommandError")
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}
