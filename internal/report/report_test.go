package report

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/installgrid/internal/matrix"
)

func specs(t *testing.T, axes matrix.AxisSet) []matrix.JobSpec {
	t.Helper()
	out, err := matrix.Expand(axes)
	require.NoError(t, err)
	return out
}

func TestAggregate_AllSuccess(t *testing.T) {
	t.Parallel()

	order := specs(t, matrix.AxisSet{
		OperatingSystems: []string{"A", "B"},
		RuntimeVersions:  []string{"3.8"},
		InstallMethods:   []string{"local", "index"},
	})

	var results []JobResult
	for _, s := range order {
		results = append(results, JobResult{Spec: s, Phase: PhaseDone, Status: StatusSuccess})
	}

	rep := Aggregate("run-1", order, results)
	assert.Equal(t, VerdictSuccess, rep.Overall)
	assert.True(t, rep.Succeeded())
	assert.Len(t, rep.Results, len(order))
}

func TestAggregate_SingleFailureFailsRun(t *testing.T) {
	t.Parallel()

	// Scenario from the two-cell matrix: A fails at Installing, B succeeds.
	order := specs(t, matrix.AxisSet{
		OperatingSystems: []string{"A", "B"},
		RuntimeVersions:  []string{"3.8"},
		InstallMethods:   []string{"local"},
	})

	results := []JobResult{
		{Spec: order[1], Phase: PhaseDone, Status: StatusSuccess},
		{Spec: order[0], Phase: PhaseInstalling, Status: StatusInstallFailed, Class: ClassResolution},
	}

	rep := Aggregate("run-1", order, results)
	assert.Equal(t, VerdictFailure, rep.Overall)
	require.Len(t, rep.Results, 2)

	// Report ordering follows the expander, not completion order.
	assert.Equal(t, order[0], rep.Results[0].Spec)
	assert.Equal(t, StatusInstallFailed, rep.Results[0].Status)
	assert.Equal(t, order[1], rep.Results[1].Spec)
	assert.Equal(t, StatusSuccess, rep.Results[1].Status)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	t.Parallel()

	order := specs(t, matrix.AxisSet{
		OperatingSystems: []string{"A", "B", "C"},
		RuntimeVersions:  []string{"3.8", "3.9"},
		InstallMethods:   []string{"local", "index", "lockfile"},
	})

	var results []JobResult
	for i, s := range order {
		res := JobResult{Spec: s, Phase: PhaseDone, Status: StatusSuccess}
		if i == 7 {
			res = JobResult{Spec: s, Phase: PhaseSmokeTesting, Status: StatusImportFailed}
		}
		results = append(results, res)
	}

	baseline := Aggregate("run-1", order, results)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]JobResult, len(results))
		copy(shuffled, results)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		rep := Aggregate("run-1", order, shuffled)
		assert.Equal(t, baseline.Overall, rep.Overall)
		assert.Equal(t, baseline.Results, rep.Results, "report ordering must not depend on input order")
	}
}

func TestAggregate_MissingResultIsAFailure(t *testing.T) {
	t.Parallel()

	order := specs(t, matrix.AxisSet{
		OperatingSystems: []string{"A", "B"},
		RuntimeVersions:  []string{"3.8"},
		InstallMethods:   []string{"local"},
	})

	results := []JobResult{{Spec: order[0], Phase: PhaseDone, Status: StatusSuccess}}

	rep := Aggregate("run-1", order, results)
	assert.Equal(t, VerdictFailure, rep.Overall)
	require.Len(t, rep.Results, 2)
	assert.Contains(t, rep.Results[1].Diagnostic, "no result")
}

func TestRender_ListsEveryFailingCellWithPhase(t *testing.T) {
	t.Parallel()

	order := specs(t, matrix.AxisSet{
		OperatingSystems: []string{"macos-13", "ubuntu-22.04"},
		RuntimeVersions:  []string{"3.8"},
		InstallMethods:   []string{"index"},
	})

	results := []JobResult{
		{Spec: order[0], Phase: PhaseInstalling, Status: StatusInstallFailed, Class: ClassTransient,
			Diagnostic: "python -m pip install git+https://example.test/pkg.git@deadbeef (exit 1): connection reset by peer"},
		{Spec: order[1], Phase: PhaseDone, Status: StatusSuccess},
	}

	rep := Aggregate("run-9", order, results)
	var buf bytes.Buffer
	rep.Render(&buf)
	out := buf.String()

	assert.Contains(t, out, "FAIL macos-13/3.8/index")
	assert.Contains(t, out, "phase=Installing")
	assert.Contains(t, out, "status=InstallFailed")
	assert.Contains(t, out, "class=transient")
	assert.Contains(t, out, "connection reset by peer")
	assert.Contains(t, out, "ok   ubuntu-22.04/3.8/index")
	assert.Contains(t, out, "overall: Failure")
}

func TestStatusAndPhaseNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ProvisionFailed", StatusProvisionFailed.String())
	assert.Equal(t, "ImportFailed", StatusImportFailed.String())
	assert.Equal(t, "RunningTests", PhaseRunningTests.String())

	text, err := StatusTestsFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "TestsFailed", string(text))
}
