package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	testSpecsDir     = filepath.Join("..", "..", "testdata", "specs")
	testScenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
)

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile writes content to dir/name, creating dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const flipSpec = `
package specs

node: Flip: {
	children: ["x"]
	specialization: [
		{name: "int", accepts: ["int"], impl: "negate"},
		{name: "long", accepts: ["long"], impl: "negate"},
	]
	fallback: {name: "other", impl: "identity"}
}
`

// recordRun runs a testdata scenario into dbPath under runID.
func recordRun(t *testing.T, dbPath, runID, scenario string) {
	t.Helper()
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, _, err := execute(t, cmd,
		"--db", dbPath, "--run", runID,
		testSpecsDir, filepath.Join(testScenariosDir, scenario))
	require.NoError(t, err)
}
