package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnrich_InnerCallsInheritFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).With(RequestID("rid-1")))

	inner := Enrich(ctx, UserID("u-1"))
	assert.Same(t, From(ctx), From(Enrich(ctx)))

	From(inner).Info("handled")
	From(ctx).Info("outer")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{"request_id": "rid-1", "user_id": "u-1"}, entries[0].ContextMap())
	assert.Equal(t, map[string]any{"request_id": "rid-1"}, entries[1].ContextMap())
}

func TestFrom_FallsBackToGlobal(t *testing.T) {
	assert.Same(t, L(), From(context.Background()))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"loud":    zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestBaseFields(t *testing.T) {
	assert.Empty(t, baseFields(Config{}))
	fs := baseFields(Config{Service: "jigcloud", Version: "1.2.0", Epoch: 1700000000000})
	require.Len(t, fs, 3)
	assert.Equal(t, "epoch", fs[2].Key)
	assert.True(t, Config{Env: "dev"}.console())
	assert.False(t, Config{Env: "staging"}.console())
}
