package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/needle-drop/lobby-service/pkg/logger"
)

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Init(logger.Config{
		Service:   "demo",
		Version:   "v0.0.1",
		Env:       logger.EnvDev,
		Backend:   logger.BackendStd,
		Level:     slog.LevelDebug,
		AddSource: true,
		Output:    &buf,
	})
	log.Info("Hello world")

	out := buf.String()
	assert.False(t, strings.HasPrefix(out, "{"), "expected text output, got %s", out)
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "service=demo")
	assert.Contains(t, out, "env=dev")
	assert.Contains(t, out, "instance.id=")
}

func TestInit_ProdStd_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Init(logger.Config{Service: "demo", Env: logger.EnvProd, Backend: logger.BackendStd, Output: &buf})
	log.Debug("hidden")
	log.Info("shown")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "shown", m["msg"])
	assert.Equal(t, "prod", m["env"])
}

func TestInit_InstanceIdentity(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Init(logger.Config{
		Service:    "demo",
		Env:        logger.EnvProd,
		Backend:    logger.BackendStd,
		InstanceID: "lobby-a",
		Attrs:      []slog.Attr{slog.String("store", "redis")},
		Output:     &buf,
	})
	log.Info("hello")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "redis", m["store"])
	inst, ok := m["instance"].(map[string]any)
	require.True(t, ok, buf.String())
	assert.Equal(t, "lobby-a", inst["id"])
	assert.EqualValues(t, os.Getpid(), inst["pid"])
	assert.NotEmpty(t, inst["started_at"])
	assert.Equal(t, "lobby-a", logger.Self().ID)
}

func TestNewInstance_GeneratesID(t *testing.T) {
	a, b := logger.NewInstance(""), logger.NewInstance("")
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, strings.HasPrefix(a.ID, a.Host+"-"), a.ID)
	assert.Equal(t, "fixed", logger.NewInstance("fixed").ID)
}

func TestInit_ZapBackend(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Output:           &buf,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	})
	log.Warn("zap says", slog.Int("n", 3))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "zap says", m["msg"])
	assert.Equal(t, "WARN", m["level"])
	assert.EqualValues(t, 3, m["n"])
	assert.Equal(t, "demo", m["service"])
}

func TestInit_SetsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Init(logger.Config{Env: logger.EnvDev, Output: &buf})
	assert.Same(t, log, logger.L())

	slog.Info("via default")
	assert.Contains(t, buf.String(), "service=app")
}

func TestAttrsFromCtx_PropagatesTraceIDs(t *testing.T) {
	assert.Nil(t, logger.AttrsFromCtx(context.Background()))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)
	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	log := logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Output:           &buf,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	})
	log.InfoContext(ctx, "with trace", logger.Args(ctx)...)

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
}

func TestParseEnvAndLevel(t *testing.T) {
	assert.Equal(t, logger.EnvProd, logger.ParseEnv(" Production "))
	assert.Equal(t, logger.EnvStage, logger.ParseEnv("staging"))
	assert.Equal(t, logger.EnvDev, logger.ParseEnv(""))

	lvl, err := logger.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = logger.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = logger.ParseLevel("loud")
	assert.Error(t, err)
}
