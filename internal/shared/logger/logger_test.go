package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		env, level string
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{"local", "", zapcore.DebugLevel, zapcore.InvalidLevel},
		{"prod", "", zapcore.InfoLevel, zapcore.DebugLevel},
		{"prod", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"local", "error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}
	for _, tc := range cases {
		l, err := New("settlement-service", tc.env, tc.level)
		if err != nil {
			t.Fatalf("New(%s, %q): %v", tc.env, tc.level, err)
		}
		if !l.Core().Enabled(tc.enabled) {
			t.Errorf("%s/%q: %s disabled", tc.env, tc.level, tc.enabled)
		}
		if tc.disabled != zapcore.InvalidLevel && l.Core().Enabled(tc.disabled) {
			t.Errorf("%s/%q: %s enabled", tc.env, tc.level, tc.disabled)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("settlement-service", "prod", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
