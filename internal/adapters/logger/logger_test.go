package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/logger"
)

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	lg := logger.New()
	lg.SetOutput(&buf)

	lg.Info("starting daemon")
	require.Contains(t, buf.String(), "starting daemon")

	buf.Reset()
	lg.Warn("stale status file")
	require.Contains(t, buf.String(), "stale status file")

	buf.Reset()
	lg.Error(errors.New("socket gone"))
	require.Contains(t, buf.String(), "operation failed")
	require.Contains(t, buf.String(), "socket gone")
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	lg := logger.New()
	lg.SetOutput(&buf)
	lg.SetJSON(true)

	lg.Info("serving")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "serving", rec["msg"])
	require.Equal(t, "INFO", rec["level"])
}
