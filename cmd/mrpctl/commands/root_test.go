package commands

import (
	"testing"

	"github.com/pion/logging"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logging.LogLevel
	}{
		{"error", logging.LogLevelError},
		{"WARN", logging.LogLevelWarn},
		{"info", logging.LogLevelInfo},
		{"debug", logging.LogLevelDebug},
		{"trace", logging.LogLevelTrace},
		{"off", logging.LogLevelDisabled},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if err != nil {
			t.Errorf("parseLogLevel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseLogLevel("loud"); err == nil {
		t.Error("parseLogLevel(loud) succeeded")
	}
}
