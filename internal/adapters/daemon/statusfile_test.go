package daemon_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/daemon"
	"go.trai.ch/pycheck/internal/core/domain"
)

func statusPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "status.json")
}

func TestStatusFile_RoundTrip(t *testing.T) {
	path := statusPath(t)
	record := domain.StatusRecord{PID: os.Getpid(), ConnectionName: "/tmp/pycheck-test.sock"}

	require.NoError(t, daemon.WriteStatus(path, record))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(data) > 0 && data[len(data)-1] == '\n', "status file must end with a newline")

	got, err := daemon.ReadStatus(path)
	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestStatusFile_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "status.json")
	record := domain.StatusRecord{PID: os.Getpid(), ConnectionName: "sock"}

	require.NoError(t, daemon.WriteStatus(path, record))

	_, err := daemon.ReadStatus(path)
	require.NoError(t, err)
}

func TestStatusFile_LegacySocknameAccepted(t *testing.T) {
	path := statusPath(t)
	payload := `{"pid": ` + strconv.Itoa(os.Getpid()) + `, "sockname": "/tmp/legacy.sock"}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	record, err := daemon.ReadStatus(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/legacy.sock", record.ConnectionName)
}

func TestStatusFile_Missing(t *testing.T) {
	_, err := daemon.ReadStatus(statusPath(t))
	require.ErrorIs(t, err, domain.ErrBadStatus)
}

func TestStatusFile_BadRecords(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"pid": 12`},
		{"not an object", `[1, 2, 3]`},
		{"missing pid", `{"connection_name": "/tmp/x.sock"}`},
		{"pid not an integer", `{"pid": "twelve", "connection_name": "/tmp/x.sock"}`},
		{"missing connection name", `{"pid": ` + strconv.Itoa(os.Getpid()) + `}`},
		{"connection name not a string", `{"pid": ` + strconv.Itoa(os.Getpid()) + `, "connection_name": 7}`},
		{"empty connection name", `{"pid": ` + strconv.Itoa(os.Getpid()) + `, "connection_name": ""}`},
		{"dead pid", `{"pid": 999999999, "connection_name": "/tmp/x.sock"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := statusPath(t)
			require.NoError(t, os.WriteFile(path, []byte(tt.payload), 0o600))

			_, err := daemon.ReadStatus(path)
			require.ErrorIs(t, err, domain.ErrBadStatus)
		})
	}
}

func TestStatusFile_RemoveIsIdempotent(t *testing.T) {
	path := statusPath(t)
	require.NoError(t, daemon.WriteStatus(path, domain.StatusRecord{PID: os.Getpid(), ConnectionName: "sock"}))

	daemon.RemoveStatus(path)
	daemon.RemoveStatus(path)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
