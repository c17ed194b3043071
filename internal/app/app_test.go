package app_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/fscache"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/app"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func newApp(t *testing.T, connector *mocks.MockDaemonConnector) *app.App {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logger.New()
	log.SetOutput(io.Discard)
	opts := domain.Options{SourceRoots: []string{"."}, StatusFile: "/tmp/pycheck-status.json"}
	return app.New(opts, log, connector, mocks.NewMockAnalyzer(ctrl), mocks.NewMockMetadataStore(ctrl), fscache.New()).
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{})
}

func TestApp_StartAlreadyRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockDaemonConnector(ctrl)
	connector.EXPECT().IsRunning("/tmp/s.json").Return(true)

	a := newApp(t, connector)
	require.NoError(t, a.Start(context.Background(), "/tmp/s.json"))
}

func TestApp_StartSpawns(t *testing.T) {
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockDaemonConnector(ctrl)
	connector.EXPECT().IsRunning("/tmp/s.json").Return(false)
	connector.EXPECT().Spawn(gomock.Any(), "/tmp/s.json").Return(nil)

	a := newApp(t, connector)
	require.NoError(t, a.Start(context.Background(), "/tmp/s.json"))
}

func TestApp_CheckSpawnFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockDaemonConnector(ctrl)
	connector.EXPECT().IsRunning("/tmp/s.json").Return(false)
	connector.EXPECT().Spawn(gomock.Any(), "/tmp/s.json").Return(domain.ErrDaemonStartTimeout)

	a := newApp(t, connector)
	status, err := a.Check(context.Background(), "/tmp/s.json", "check")
	require.Equal(t, 2, status)
	require.ErrorIs(t, err, domain.ErrDaemonStartTimeout)
}

func TestApp_StatusWithoutDaemon(t *testing.T) {
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockDaemonConnector(ctrl)
	connector.EXPECT().Status("/tmp/s.json").Return(domain.StatusRecord{}, zerr.Wrap(domain.ErrBadStatus, "missing"))

	a := newApp(t, connector)
	err := a.Status(context.Background(), "/tmp/s.json")
	require.ErrorIs(t, err, domain.ErrBadStatus)
	require.Contains(t, err.Error(), "pycheck start")
}

func TestApp_Kill(t *testing.T) {
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockDaemonConnector(ctrl)
	connector.EXPECT().Kill("/tmp/s.json").Return(nil)

	a := newApp(t, connector)
	require.NoError(t, a.Kill("/tmp/s.json"))
}

func TestApp_StatusFileOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newApp(t, mocks.NewMockDaemonConnector(ctrl))

	require.Equal(t, "/tmp/pycheck-status.json", a.StatusFile(""))
	require.Equal(t, "/elsewhere.json", a.StatusFile("/elsewhere.json"))
}
