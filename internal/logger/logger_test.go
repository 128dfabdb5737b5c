package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{"prod", "prod", "", zapcore.InfoLevel, false},
		{"local", "local", "", zapcore.DebugLevel, false},
		{"test quiet", "test", "", zapcore.WarnLevel, false},
		{"override", "prod", "error", zapcore.ErrorLevel, false},
		{"unknown env", "staging", "", 0, true},
		{"bad level", "local", "loud", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tc.enabled) {
				t.Errorf("level %s not enabled", tc.enabled)
			}
			if tc.enabled > zapcore.DebugLevel && l.Core().Enabled(tc.enabled-1) {
				t.Errorf("level %s unexpectedly enabled", tc.enabled-1)
			}
		})
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
}

func TestForEntity(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	ForEntity(ctx, 3, 42, zap.String("field", "sticky")).Info("built")
	ForTenant(ctx, 3).Info("run")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	got := entries[0].ContextMap()
	if got["tenant_id"] != int64(3) || got["entity_id"] != int64(42) || got["field"] != "sticky" {
		t.Errorf("entity fields = %v", got)
	}
	if _, ok := entries[1].ContextMap()["entity_id"]; ok {
		t.Error("tenant logger carries entity_id")
	}
}
