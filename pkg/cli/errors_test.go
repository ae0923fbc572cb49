package cli

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("atlas.yaml", "unknown client type")
	if !strings.Contains(err.Error(), "atlas.yaml") || !strings.Contains(err.Error(), "unknown client type") {
		t.Errorf("Error() = %q, want path and message", err.Error())
	}

	bare := NewConfigError("", "missing endpoints")
	if strings.Contains(bare.Error(), "in ") {
		t.Errorf("Error() = %q, path fragment should be absent", bare.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("listen tcp: address in use")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("CommandError must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("Error() = %q, want the command name", err.Error())
	}
}
