package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/installgrid/internal/config"
	"github.com/vk/installgrid/internal/matrix"
	"github.com/vk/installgrid/internal/notify"
	"github.com/vk/installgrid/internal/testutil"
)

// fakeLoader satisfies config.Loader with a canned model.
type fakeLoader struct {
	model *config.Model
	err   error
}

func (f *fakeLoader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	return f.model, f.err
}

func baseModel() *config.Model {
	return &config.Model{
		Verify: &config.Verify{
			Package:    "seismicpro",
			Repository: "https://github.com/gazprom-neft/SeismicPro.git",
			Axes: matrix.AxisSet{
				OperatingSystems: []string{"ubuntu-22.04"},
				RuntimeVersions:  []string{"3.8"},
				InstallMethods:   []string{"index"},
			},
			Requirements: "requirements.txt",
			SourcePath:   ".",
			TestPath:     "tests",
			TestFilter:   "not slow",
		},
		Status: &config.Status{
			PythonVersion: "3.8",
			Requirements:  "requirements.txt",
			Lint:          config.Lint{Command: []string{"pylint"}, Ruleset: ".pylintrc", Targets: []string{"seismicpro"}},
			Tests:         config.Tests{Filter: "not slow", Path: "tests"},
		},
		Tools: &config.Tools{
			Provisioner:  []string{"igridenv"},
			Checkout:     []string{"igrid-checkout"},
			RuntimeSetup: []string{"igrid-python"},
		},
	}
}

func writeEvent(t *testing.T, eventType string) string {
	t.Helper()
	doc := "event_type: " + eventType + "\nsource_ref: abc123\nhead_repo: fork/SeismicPro\nbranch: feature\n"
	path := filepath.Join(t.TempDir(), "event.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
	return path
}

func newTestApp(t *testing.T, model *config.Model, inv *testutil.FakeInvoker, outW io.Writer, cfg Config) (*App, *Config) {
	t.Helper()
	cfg.GridPath = "testdata"
	cfg.LogLevel = "error"
	appConfig, err := NewConfig(cfg)
	require.NoError(t, err)
	a := NewApp(outW, appConfig, &fakeLoader{model: model}, WithInvoker(inv))
	return a, appConfig
}

func TestRun_AutoSelectsVerifyOnPullRequest(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, baseModel(), inv, out, Config{EventPath: writeEvent(t, "pull_request")})

	err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "verification matrix")
	assert.Contains(t, out.String(), "overall: Success")
	assert.NotEmpty(t, inv.CallsMatching("igridenv create"))
	assert.NotEmpty(t, inv.CallsMatching("pytest -m not slow tests"))
	// The remote reference pins the head repository to the exact revision.
	assert.NotEmpty(t, inv.CallsMatching("pip install git+https://github.com/fork/SeismicPro.git@abc123"))
}

func TestRun_AutoSelectsStatusOnPush(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, baseModel(), inv, out, Config{EventPath: writeEvent(t, "push")})

	err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "status pipeline:")
	assert.Contains(t, out.String(), "status: Success")
	assert.NotEmpty(t, inv.CallsMatching("igrid-checkout --repo"))
	assert.NotEmpty(t, inv.CallsMatching("pylint --rcfile .pylintrc seismicpro"))
}

func TestRun_PipelineOverrideWithoutEvent(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, baseModel(), inv, out, Config{Pipeline: PipelineStatus})

	err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "status pipeline:")
	// The synthetic descriptor falls back to the configured repository.
	assert.NotEmpty(t, inv.CallsMatching("--repo https://github.com/gazprom-neft/SeismicPro.git --ref HEAD"))
}

func TestRunVerify_FailingCellYieldsErrRunFailed(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	inv.Respond("pip install", testutil.Response{ExitCode: 1, Output: "No matching distribution found for segyio"})
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, baseModel(), inv, out, Config{EventPath: writeEvent(t, "pull_request")})

	err := a.Run(context.Background(), cfg)

	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, out.String(), "FAIL ubuntu-22.04/3.8/index")
	assert.Contains(t, out.String(), "class=resolution")
	assert.Contains(t, out.String(), "overall: Failure")
	// The failed environment is still torn down.
	assert.NotEmpty(t, inv.CallsMatching("igridenv destroy"))
}

func TestRunVerify_ChecksOutWorkingCopyForLocalMethod(t *testing.T) {
	t.Parallel()

	model := baseModel()
	model.Verify.Axes.InstallMethods = []string{"local"}
	inv := &testutil.FakeInvoker{}
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, model, inv, out, Config{EventPath: writeEvent(t, "pull_request")})

	err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	checkouts := inv.CallsMatching("igrid-checkout --repo https://github.com/fork/SeismicPro.git --ref abc123 --submodules")
	assert.Len(t, checkouts, 1)
	assert.NotEmpty(t, inv.CallsMatching("pip install -r requirements.txt"))
}

func TestRunVerify_CheckoutFailureAbortsRun(t *testing.T) {
	t.Parallel()

	model := baseModel()
	model.Verify.Axes.InstallMethods = []string{"local"}
	inv := &testutil.FakeInvoker{}
	inv.Respond("igrid-checkout", testutil.Response{ExitCode: 128, Output: "fatal: could not read from remote repository"})
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, model, inv, out, Config{EventPath: writeEvent(t, "pull_request")})

	err := a.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkout failed")
	// No environment is ever provisioned when the working copy is missing.
	assert.Empty(t, inv.CallsMatching("igridenv create"))
}

func TestRunStatus_LintFailureYieldsErrRunFailed(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	inv.Respond("pylint", testutil.Response{ExitCode: 4, Output: "seismicpro/gather.py:10: E1101"})
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, baseModel(), inv, out, Config{EventPath: writeEvent(t, "push")})

	err := a.Run(context.Background(), cfg)

	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, out.String(), "status: Failure (lint=failed, tests=passed)")
}

func TestRunVerify_PublishesSignedReport(t *testing.T) {
	t.Parallel()

	received := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- r
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	model := baseModel()
	model.Notify = &config.Notify{URL: srv.URL, Secret: "s3cret"}
	inv := &testutil.FakeInvoker{}
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, model, inv, out, Config{EventPath: writeEvent(t, "pull_request")})

	err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	req := <-received
	assert.NotEmpty(t, req.Header.Get("X-InstallGrid-Run-ID"))
	assert.True(t, notify.VerifySignature("s3cret", body, req.Header.Get("X-InstallGrid-Signature")))
	assert.Contains(t, string(body), `"overall":"Success"`)
}

func TestRunVerify_PublishFailureDoesNotChangeVerdict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	model := baseModel()
	model.Notify = &config.Notify{URL: srv.URL}
	inv := &testutil.FakeInvoker{}
	out := &bytes.Buffer{}
	a, cfg := newTestApp(t, model, inv, out, Config{EventPath: writeEvent(t, "pull_request")})

	err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "overall: Success")
}

func TestNewApp_PanicsOnConfigError(t *testing.T) {
	t.Parallel()

	appConfig, err := NewConfig(Config{GridPath: "testdata", Pipeline: PipelineVerify})
	require.NoError(t, err)

	require.Panics(t, func() {
		NewApp(io.Discard, appConfig, &fakeLoader{err: assert.AnError})
	})
}

func TestNewConfig_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing grid path",
			cfg:     Config{},
			wantErr: "GridPath",
		},
		{
			name:    "auto pipeline requires an event",
			cfg:     Config{GridPath: "grids"},
			wantErr: "EventPath",
		},
		{
			name:    "unknown pipeline",
			cfg:     Config{GridPath: "grids", Pipeline: "deploy"},
			wantErr: "invalid pipeline",
		},
		{
			name: "explicit pipeline without event is fine",
			cfg:  Config{GridPath: "grids", Pipeline: PipelineVerify},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewConfig(tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, PipelineVerify, got.Pipeline)
		})
	}
}
