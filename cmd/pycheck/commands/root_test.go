package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/cmd/pycheck/commands"
)

// fakeApp records the application calls the CLI makes.
type fakeApp struct {
	calls      []string
	statusFile string
	args       map[string]string
	status     int
	err        error
}

func (f *fakeApp) record(call, statusFile string) {
	f.calls = append(f.calls, call)
	f.statusFile = statusFile
}

func (f *fakeApp) StatusFile(override string) string {
	if override != "" {
		return override
	}
	return "/default/status.json"
}

func (f *fakeApp) Start(_ context.Context, statusFile string) error {
	f.record("start", statusFile)
	return f.err
}

func (f *fakeApp) Restart(_ context.Context, statusFile string) error {
	f.record("restart", statusFile)
	return f.err
}

func (f *fakeApp) Status(_ context.Context, statusFile string) error {
	f.record("status", statusFile)
	return f.err
}

func (f *fakeApp) Stop(_ context.Context, statusFile string) error {
	f.record("stop", statusFile)
	return f.err
}

func (f *fakeApp) Kill(statusFile string) error {
	f.record("kill", statusFile)
	return f.err
}

func (f *fakeApp) Check(_ context.Context, statusFile, command string) (int, error) {
	f.record(command, statusFile)
	return f.status, f.err
}

func (f *fakeApp) Command(_ context.Context, statusFile, command string, args map[string]string) (int, error) {
	f.record(command, statusFile)
	f.args = args
	return f.status, f.err
}

func (f *fakeApp) ServeDaemon(_ context.Context, statusFile string) error {
	f.record("daemon", statusFile)
	return f.err
}

func (f *fakeApp) ServeWorker(_ context.Context, statusFile string) error {
	f.record("worker", statusFile)
	return f.err
}

func execute(t *testing.T, app *fakeApp, args ...string) error {
	t.Helper()
	cli := commands.New(app)
	cli.SetArgs(args)
	var out, errOut bytes.Buffer
	cli.SetOutput(&out, &errOut)
	return cli.Execute(context.Background())
}

func TestCLI_LifecycleCommands(t *testing.T) {
	for _, cmd := range []string{"start", "restart", "status", "stop", "kill"} {
		t.Run(cmd, func(t *testing.T) {
			app := &fakeApp{}
			require.NoError(t, execute(t, app, cmd))
			require.Equal(t, []string{cmd}, app.calls)
			require.Equal(t, "/default/status.json", app.statusFile)
		})
	}
}

func TestCLI_StatusFileFlag(t *testing.T) {
	app := &fakeApp{}
	require.NoError(t, execute(t, app, "start", "--status-file", "/custom.json"))
	require.Equal(t, "/custom.json", app.statusFile)
}

func TestCLI_CheckExitStatus(t *testing.T) {
	app := &fakeApp{status: 1}
	err := execute(t, app, "check")

	var exit *commands.ExitError
	require.ErrorAs(t, err, &exit)
	require.Equal(t, 1, exit.Code)
	require.Equal(t, []string{"check"}, app.calls)
}

func TestCLI_CheckCleanRun(t *testing.T) {
	app := &fakeApp{}
	require.NoError(t, execute(t, app, "run"))
	require.Equal(t, []string{"run"}, app.calls)
}

func TestCLI_FailureWrapsExitError(t *testing.T) {
	cause := errors.New("daemon exploded")
	app := &fakeApp{status: 2, err: cause}
	err := execute(t, app, "recheck")

	var exit *commands.ExitError
	require.ErrorAs(t, err, &exit)
	require.Equal(t, 2, exit.Code)
	require.ErrorIs(t, err, cause)
}

func TestCLI_SuggestPassesModuleArg(t *testing.T) {
	app := &fakeApp{}
	require.NoError(t, execute(t, app, "suggest", "pkg.mod"))
	require.Equal(t, []string{"suggest"}, app.calls)
	require.Equal(t, map[string]string{"module": "pkg.mod"}, app.args)
}

func TestCLI_InspectRequiresModuleArg(t *testing.T) {
	app := &fakeApp{}
	require.Error(t, execute(t, app, "inspect"))
	require.Empty(t, app.calls)
}

func TestCLI_HiddenDaemonCommand(t *testing.T) {
	app := &fakeApp{}
	require.NoError(t, execute(t, app, "daemon", "--status-file", "/d.json"))
	require.Equal(t, []string{"daemon"}, app.calls)
	require.Equal(t, "/d.json", app.statusFile)
}

func TestCLI_HiddenWorkerCommand(t *testing.T) {
	app := &fakeApp{}
	require.NoError(t, execute(t, app, "worker", "--status-file", "/w.json"))
	require.Equal(t, []string{"worker"}, app.calls)
	require.Equal(t, "/w.json", app.statusFile)
}

func TestCLI_VersionCommand(t *testing.T) {
	app := &fakeApp{}
	cli := commands.New(app)
	cli.SetArgs([]string{"version"})
	var out, errOut bytes.Buffer
	cli.SetOutput(&out, &errOut)
	require.NoError(t, cli.Execute(context.Background()))
	require.Contains(t, out.String(), "pycheck version")
}
