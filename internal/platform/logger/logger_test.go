package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "datalens/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestParseLevel_AllBranches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"  INFO  ", zerolog.InfoLevel},
		{"bogus", zerolog.DebugLevel},
		{"", zerolog.DebugLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInit_Get_Named_C_WithScan(t *testing.T) {
	var buf bytes.Buffer

	Init(Options{
		Level:        "debug",
		Format:       "json",
		Service:      "datalens",
		Component:    "test",
		Writer:       &buf,
		WithCaller:   false,
		SampleEvery:  0,
		StaticFields: map[string]string{"build": "dev"},
	})

	// Init is once-guarded; force the buffer-backed logger in for the rest
	// of the test regardless of which Init won the race
	log := zerolog.New(&buf).Level(zerolog.DebugLevel).With().
		Timestamp().
		Str("service", "datalens").
		Str("component", "test").
		Str("build", "dev").
		Logger()
	root.Store(&log)
	inited.Store(true)

	Get().Info().Msg("root-msg")

	Named("resolver").Info().Msg("named-msg")

	ctx := WithRequest(context.Background(), "req-123")
	ctx = WithScan(ctx, "github.com/acme/orders", "run-9")
	C(ctx).Info().Msg("ctx-msg")

	out := buf.String()
	kit.MustContain(t, out, "root-msg")
	kit.MustContain(t, out, "named-msg")
	kit.MustContain(t, out, "ctx-msg")
	kit.MustContain(t, out, `"component":"resolver"`)
	kit.MustContain(t, out, `"request_id":"req-123"`)
	kit.MustContain(t, out, `"repo":"github.com/acme/orders"`)
	kit.MustContain(t, out, `"run_id":"run-9"`)
	kit.MustContain(t, out, `"build":"dev"`)
	kit.MustContain(t, out, `"service":"datalens"`)
}

func TestFromEnv_Independently(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_SERVICE", "datalens")
	t.Setenv("LOG_COMPONENT", "scanner")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "3")

	opt := FromEnv()
	if opt.Level != "warn" {
		t.Fatalf("Level = %q, want warn", opt.Level)
	}
	if opt.Format != "json" {
		t.Fatalf("Format = %q, want json", opt.Format)
	}
	if opt.Service != "datalens" {
		t.Fatalf("Service = %q, want datalens", opt.Service)
	}
	if opt.Component != "scanner" {
		t.Fatalf("Component = %q, want scanner", opt.Component)
	}
	if !opt.WithCaller {
		t.Fatalf("WithCaller = false, want true")
	}
	if opt.SampleEvery != 3 {
		t.Fatalf("SampleEvery = %d, want 3", opt.SampleEvery)
	}
}

func TestC_NoValues(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	root.Store(&log)
	inited.Store(true)

	// Empty annotations must not add fields
	ctx := WithRequest(context.Background(), "")
	ctx = WithScan(ctx, "", "")
	C(ctx).Info().Msg("bare-msg")

	out := buf.String()
	kit.MustContain(t, out, "bare-msg")
	if strings.Contains(out, "request_id") || strings.Contains(out, `"repo"`) || strings.Contains(out, "run_id") {
		t.Fatalf("unexpected context fields in %q", out)
	}
}
