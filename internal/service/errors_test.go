package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"parse", parseError("bad input", nil), ErrKindParse},
		{"service", serviceError("timeout", io.EOF), ErrKindService},
		{"compose", composeError("mismatch", nil), ErrKindCompose},
		{"wrapped", fmt.Errorf("extracting: %w", parseError("bad input", nil)), ErrKindParse},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngineError_UnwrapsCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := parseError("truncated stream", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is could not reach the wrapped cause")
	}
}

func TestEngineError_Message(t *testing.T) {
	err := serviceError("calling rewrite service", io.EOF)
	msg := err.Error()
	for _, part := range []string{"service_error", "calling rewrite service", "EOF"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error message %q missing %q", msg, part)
		}
	}
}
