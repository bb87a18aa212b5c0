package environ_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/installgrid/internal/environ"
	"github.com/vk/installgrid/internal/testutil"
)

func TestEnvironment_ReleaseRunsExactlyOnce(t *testing.T) {
	t.Parallel()

	var releases atomic.Int32
	env := environ.New("ubuntu-22.04", "3.8", "", &testutil.FakeInvoker{}, nil,
		func(context.Context) error {
			releases.Add(1)
			return nil
		})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, env.Release(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), releases.Load())
}

func TestEnvironment_ReleaseErrorIsSticky(t *testing.T) {
	t.Parallel()

	boom := errors.New("teardown exploded")
	env := environ.New("ubuntu-22.04", "3.8", "", &testutil.FakeInvoker{}, nil,
		func(context.Context) error { return boom })

	require.ErrorIs(t, env.Release(context.Background()), boom)
	// Second call reports the same outcome without re-running teardown.
	require.ErrorIs(t, env.Release(context.Background()), boom)
}

func TestEnvironment_ExecPrependsPrefix(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	env := environ.New("ubuntu-22.04", "3.8", "", inv,
		[]string{"igridenv", "exec", "--id", "e1", "--"}, nil)

	_, err := env.Exec(context.Background(), "python", "-c", "import seismicpro")
	require.NoError(t, err)

	calls := inv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "igridenv exec --id e1 -- python -c import seismicpro", calls[0])
}

func TestExecProvisioner_ProvisionAndRelease(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	p := &environ.ExecProvisioner{Command: []string{"igridenv"}, Invoker: inv}

	env, err := p.Provision(context.Background(), "macos-13", "3.9")
	require.NoError(t, err)
	require.NotEmpty(t, env.ID)
	assert.Equal(t, "macos-13", env.OS)
	assert.Equal(t, "3.9", env.Version)

	creates := inv.CallsMatching("igridenv create")
	require.Len(t, creates, 1)
	assert.Contains(t, creates[0], "--os macos-13")
	assert.Contains(t, creates[0], "--python 3.9")

	require.NoError(t, env.Release(context.Background()))
	destroys := inv.CallsMatching("igridenv destroy")
	require.Len(t, destroys, 1)
	assert.Contains(t, destroys[0], "--id "+env.ID)
}

func TestExecProvisioner_CreateFailure(t *testing.T) {
	t.Parallel()

	inv := &testutil.FakeInvoker{}
	inv.Respond("igridenv create", testutil.Response{ExitCode: 1, Output: "no such image\n"})
	p := &environ.ExecProvisioner{Command: []string{"igridenv"}, Invoker: inv}

	_, err := p.Provision(context.Background(), "beos-5", "3.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such image")
}

func TestExecProvisioner_RequiresCommand(t *testing.T) {
	t.Parallel()

	p := &environ.ExecProvisioner{Invoker: &testutil.FakeInvoker{}}
	_, err := p.Provision(context.Background(), "ubuntu-22.04", "3.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
