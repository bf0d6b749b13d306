package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLevelsAndFormats(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"debug text", &Config{Level: "debug", Format: "text"}},
		{"info json", &Config{Level: "info", Format: "json"}},
		{"warn text", &Config{Level: "warn", Format: "text"}},
		{"error json", &Config{Level: "error", Format: "json"}},
		{"unknown level falls back to info", &Config{Level: "verbose", Format: "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.cfg)
			slog.Info("attestation verified")
		})
	}
}

func TestWithContextCarriesVerificationScope(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	ctx := context.Background()
	ctx = context.WithValue(ctx, RequestIDKey, "req-42")
	ctx = context.WithValue(ctx, TenantKey, "artisans-btp")
	ctx = context.WithValue(ctx, UsernameKey, "controleur")
	ctx = context.WithValue(ctx, AnalysisIDKey, "123e4567-e89b-12d3-a456-426614174000")

	WithContext(ctx).Info("attestation verified")

	out := buf.String()
	for _, want := range []string{"req-42", "artisans-btp", "controleur", "123e4567"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output, got %q", want, out)
		}
	}
	if !strings.Contains(out, "analysis_id") {
		t.Error("Expected analysis_id attribute in log output")
	}
}

func TestWithContextBare(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	WithContext(context.Background()).Info("no scope")

	out := buf.String()
	if strings.Contains(out, "tenant") || strings.Contains(out, "analysis_id") {
		t.Errorf("Expected no scope attributes on a bare context, got %q", out)
	}
}

func TestLevelHelpers(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.WithValue(context.Background(), AnalysisIDKey, "analysis-1")

	Info(ctx, "extraction finished", "score", "green")
	Debug(ctx, "keyword matched")
	Warn(ctx, "extraction call failed")
	Error(ctx, "failed to persist analysis")

	out := buf.String()
	for _, want := range []string{
		"extraction finished",
		"keyword matched",
		"extraction call failed",
		"failed to persist analysis",
		"analysis-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output", want)
		}
	}
}
