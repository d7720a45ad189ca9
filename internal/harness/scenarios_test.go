package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectRoot returns the project root directory.
// Tests run from the package directory, scenario files live at the root.
func projectRoot() string {
	root, _ := filepath.Abs("../..")
	return root
}

func scenarioPath(name string) string {
	return filepath.Join(projectRoot(), "testdata", "scenarios", name+".yaml")
}

// TestScenarios runs every scenario shipped in testdata/scenarios.
func TestScenarios(t *testing.T) {
	files, err := FindScenarios(filepath.Join(projectRoot(), "testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"scenario_a_fallback", "scenario_e_installation"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(scenarioPath(name))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
		})
	}
}

func TestScenarioC_OutcomesAndExclusion(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("scenario_c_rewrite"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "scenario failed: %v", result.Errors)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "int(2)", result.Outcomes[0].Value)
	assert.Equal(t, "long(4294967294)", result.Outcomes[1].Value)
	assert.Equal(t, "long(2)", result.Outcomes[2].Value)

	node, ok := result.Node("node-1")
	require.True(t, ok)
	assert.Equal(t, []string{"narrow"}, node.Stats.Excluded)
	assert.Equal(t, []string{"wide"}, node.Stats.Chain)
}

func TestScenarioB_UnsupportedOutcome(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("scenario_b_unsupported"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "scenario failed: %v", result.Errors)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t,
		"unsupported specialization: node NoFallback@node-1, sources [a], values (opaque(UNKNOWN))",
		result.Outcomes[1].Error)
}

func TestScenarioF_GuardedObjectOutcomes(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("scenario_f_guarded_object"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "scenario failed: %v", result.Errors)

	values := make([]string, len(result.Outcomes))
	for i, o := range result.Outcomes {
		values[i] = o.Value
	}
	assert.Equal(t, []string{`"(int)"`, `"(int)"`, `"(object)"`, `"(object)"`}, values)

	node, ok := result.Node("node-1")
	require.True(t, ok)
	assert.Equal(t, []string{"f1", "f2"}, node.Stats.Chain)
	assert.Equal(t, int64(0), node.Stats.Fallback)
}

func TestScenarioG_TypedGuardFallbackOutcomes(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("scenario_g_typed_guard"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "scenario failed: %v", result.Errors)

	require.Len(t, result.Outcomes, 3)
	for _, o := range result.Outcomes {
		assert.Equal(t, "int(2)", o.Value)
	}

	node, ok := result.Node("node-1")
	require.True(t, ok)
	assert.Equal(t, int64(2), node.Stats.Fallback)
	assert.Equal(t, int64(1), node.Stats.Executions["access"])
	assert.Equal(t, int64(2), node.Stats.Guards["always"])
}
