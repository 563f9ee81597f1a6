package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "cart", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithUserID(context.Background(), "u-42")
	ctx = logg.WithOrderID(ctx, "p-7")
	logg.Info(ctx, "order adopted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "cart", entry["service"])
	require.Equal(t, "u-42", entry["user_id"])
	require.Equal(t, "p-7", entry["order_id"])
	require.Equal(t, "order adopted", entry["message"])
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "checkout", Output: &buf})

	logg.Error(context.Background(), "charge failed", context.DeadlineExceeded)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Contains(t, entry, "stack")
	require.Equal(t, "context deadline exceeded", entry["error"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}
