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
		env, level string
		want       zapcore.Level
		wantErr    bool
	}{
		{EnvProd, "", zapcore.InfoLevel, false},
		{EnvLocal, "", zapcore.DebugLevel, false},
		{EnvCLI, "", zapcore.WarnLevel, false},
		{EnvCLI, "debug", zapcore.DebugLevel, false},
		{EnvProd, "error", zapcore.ErrorLevel, false},
		{"staging", "", 0, true},
		{EnvProd, "loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("level %s should be disabled", tt.want-1)
			}
		})
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a no-op logger")
	}
	l := zap.NewExample()
	if got := FromContext(ContextWithLogger(context.Background(), l)); got != l {
		t.Error("logger not carried by context")
	}
}

func TestWith_PropagatesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core).With(zap.String("run_id", "r1")))

	ctx, l := With(ctx, zap.String("keyword", "cats"))
	l.Info("direct")
	FromContext(ctx).Info("via context")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		fields := e.ContextMap()
		if fields["run_id"] != "r1" || fields["keyword"] != "cats" {
			t.Errorf("%q fields = %v", e.Message, fields)
		}
	}
}
