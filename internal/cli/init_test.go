package cli

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level     slog.Level
		debugOn   bool
		warningOn bool
	}{
		{slog.LevelDebug, true, true},
		{slog.LevelInfo, false, true},
		{slog.LevelError, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			logger := SetupLogger(tt.level)
			if logger.Component() != "app" {
				t.Errorf("Component() = %q, want app", logger.Component())
			}
			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debugOn {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugOn)
			}
			if got := slog.Default().Enabled(ctx, slog.LevelWarn); got != tt.warningOn {
				t.Errorf("default warn enabled = %v, want %v", got, tt.warningOn)
			}
		})
	}
	SetupLogger(slog.LevelInfo)
}
