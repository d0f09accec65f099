package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/mirror"
	"github.com/roach88/clusteval/internal/testutil"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type response[T any] struct {
	Status  string    `json:"status"`
	Data    T         `json:"data"`
	Error   *CLIError `json:"error"`
	TraceID string    `json:"trace_id"`
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// writeConfig writes a config file outside the repository and returns
// its path. extra is appended verbatim.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clusteval.yaml")
	content := "log:\n  level: error\nfinder:\n  debounce: 10ms\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// seedRepository lays out a small repository.
func seedRepository(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteFile(t, root, "data/datasets/iris.txt", "5.1 3.5 1.4 0.2\n", epoch)
	testutil.WriteFile(t, root, "data/datasets/configs/iris.dsconfig", "datasetName = iris\n", epoch)
	testutil.WriteFile(t, root, "programs/kmeans.jar", "jar", epoch)
	testutil.WriteFile(t, root, "runs/kmeans_iris.run", "mode = clustering\n", epoch)
	testutil.WriteFile(t, root, "supp/statistics/data/basic.cue", `
plugin: NumberOfSamples: {
	name: "statistics.data.NumberOfSamplesDataStatistic"
	base: "DataStatistic"
}
plugin: ClusteringCoefficient: {
	name:     "statistics.data.ClusteringCoefficientDataStatistic"
	base:     "DataStatistic"
	requires: ["igraph"]
}
`, epoch)
	return absRoot(root)
}

// absRoot returns root as the CLI reports it.
func absRoot(root string) string {
	abs, _ := filepath.Abs(root)
	return abs
}

func TestInit_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	out, err := execute(t, "--config", writeConfig(t, ""), "--format", "json", "init", root)
	require.NoError(t, err)

	resp := decode[InitResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, root, resp.Data.Root)
	assert.Contains(t, resp.Data.Directories, filepath.Join(root, "data", "datasets"))
	assert.Contains(t, resp.Data.Directories, filepath.Join(root, "supp", "contexts"))
	for _, dir := range resp.Data.Directories {
		assert.DirExists(t, dir)
	}
}

func TestInit_Text(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, "--config", writeConfig(t, ""), "init", root)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Initialized repository at "+root)
}

func TestScan_JSON(t *testing.T) {
	root := seedRepository(t)
	out, err := execute(t, "--config", writeConfig(t, ""), "--format", "json", "scan", root)
	require.NoError(t, err)

	resp := decode[ScanResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.TraceID)
	assert.Equal(t, root, resp.Data.Root)
	assert.Equal(t, 4, resp.Data.Stats.Registered)
	assert.Equal(t, 1, resp.Data.Stats.Classes)
	assert.Equal(t, 1, resp.Data.Stats.Refused)
	assert.Equal(t, 1, resp.Data.Objects["DataSet"])
	assert.Equal(t, 1, resp.Data.Objects["Run"])
	assert.Equal(t, 1, resp.Data.Classes)
	require.Len(t, resp.Data.Missing, 1)
	assert.Equal(t, "igraph", resp.Data.Missing[0].Library)
}

func TestScan_AvailableLibrariesFromConfig(t *testing.T) {
	root := seedRepository(t)
	cfg := writeConfig(t, "compute:\n  available: [igraph]\n")
	out, err := execute(t, "--config", cfg, "--format", "json", "scan", root)
	require.NoError(t, err)

	resp := decode[ScanResult](t, out)
	assert.Equal(t, 2, resp.Data.Classes)
	assert.Empty(t, resp.Data.Missing)
}

func TestScan_ErrorsExitWithFailure(t *testing.T) {
	root := seedRepository(t)
	testutil.WriteFile(t, root, "supp/contexts/broken.cue", "plugin: X: {", epoch)

	out, err := execute(t, "--config", writeConfig(t, ""), "scan", root)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ 1 path(s) with errors")
	assert.Contains(t, out, "broken.cue")
}

func TestScan_MirrorsToDatabase(t *testing.T) {
	root := seedRepository(t)
	db := filepath.Join(t.TempDir(), "mirror.db")
	cfg := writeConfig(t, "")

	_, err := execute(t, "--config", cfg, "scan", "--db", db, root)
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "--format", "json", "mirror", "--db", db, "--journal")
	require.NoError(t, err)
	resp := decode[MirrorResult](t, out)
	assert.Len(t, resp.Data.Objects, 4)
	require.Len(t, resp.Data.Classes, 1)
	assert.Equal(t, "statistics.data.NumberOfSamplesDataStatistic", resp.Data.Classes[0].Name)
	assert.Len(t, resp.Data.Transitions, 5)

	// A second scan of an unchanged tree writes nothing new.
	_, err = execute(t, "--config", cfg, "scan", "--db", db, root)
	require.NoError(t, err)
	m, err := mirror.Open(db)
	require.NoError(t, err)
	defer m.Close()
	journal, err := m.Transitions(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, journal, 10, "the second process registers everything again")
}

func TestScan_MirrorEnabledInConfig(t *testing.T) {
	root := seedRepository(t)
	cfg := writeConfig(t, "mirror:\n  enabled: true\n")

	_, err := execute(t, "--config", cfg, "scan", root)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, ".clusteval", "mirror.db"))

	out, err := execute(t, "--config", writeConfig(t, "repository:\n  root: "+root+"\n"), "--format", "json", "mirror")
	require.NoError(t, err)
	assert.Len(t, decode[MirrorResult](t, out).Data.Objects, 4)
}

func TestScan_TraceID(t *testing.T) {
	root := seedRepository(t)
	traces := filepath.Join(t.TempDir(), "traces.jsonl")
	cfg := writeConfig(t, "tracing:\n  enabled: true\n  exporter: file\n  file_path: "+traces+"\n")

	out, err := execute(t, "--config", cfg, "--format", "json", "scan", root)
	require.NoError(t, err)
	resp := decode[ScanResult](t, out)
	assert.Len(t, resp.TraceID, 32)

	data, err := os.ReadFile(traces)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"clusteval.scan"`)
	assert.Contains(t, string(data), resp.TraceID)
}

func TestClasses(t *testing.T) {
	root := seedRepository(t)
	out, err := execute(t, "--config", writeConfig(t, ""), "classes", "--kind", "DataStatistic", root)
	require.NoError(t, err)

	assert.Contains(t, out, "statistics.data.NumberOfSamplesDataStatistic")
	assert.NotContains(t, strings.SplitN(out, "The following", 2)[0], "ClusteringCoefficient")
	assert.Contains(t, out, `install.packages(c("igraph"))`)
}

func TestClasses_EmptyKind(t *testing.T) {
	root := seedRepository(t)
	out, err := execute(t, "--config", writeConfig(t, ""), "--format", "json", "classes", "--kind", "Context", root)
	require.NoError(t, err)
	resp := decode[ClassesResult](t, out)
	assert.Empty(t, resp.Data.Classes)
}

func TestClasses_RejectsStaticKind(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, ""), "classes", "--kind", "DataSet", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [C006]")
}

func TestResolve(t *testing.T) {
	root := seedRepository(t)
	path := filepath.Join(root, "data", "datasets", "iris.txt")

	out, err := execute(t, "--config", writeConfig(t, ""), "--format", "json", "resolve", "--root", root, path)
	require.NoError(t, err)
	resp := decode[ResolveResult](t, out)
	assert.Equal(t, root, resp.Data.Repository)
	assert.Empty(t, resp.Data.Parent)
	require.NotNil(t, resp.Data.Object)
	assert.Equal(t, "DataSet", resp.Data.Object.Kind)
	assert.Equal(t, "iris", resp.Data.Object.Name)
	assert.Equal(t, epoch.UnixMilli(), resp.Data.Object.ChangeDate)
}

func TestResolve_InsideRunResult(t *testing.T) {
	root := seedRepository(t)
	runRoot := filepath.Join(root, "results", "03_01-12_00_00_kmeans_iris")
	path := testutil.WriteFile(t, runRoot, "inputs/iris.txt", "5.1 3.5 1.4 0.2\n", epoch)
	testutil.WriteFile(t, runRoot, "configs/kmeans_iris.run", "mode = clustering\n", epoch)

	out, err := execute(t, "--config", writeConfig(t, ""), "--format", "json", "resolve", "--root", root, path)
	require.NoError(t, err)
	resp := decode[ResolveResult](t, out)
	assert.Equal(t, runRoot, resp.Data.Repository)
	assert.Equal(t, root, resp.Data.Parent)
	require.NotNil(t, resp.Data.Object)
	assert.Equal(t, runRoot, resp.Data.Object.Repository)
}

func TestResolve_NothingRegistered(t *testing.T) {
	root := seedRepository(t)
	out, err := execute(t, "--config", writeConfig(t, ""), "resolve", "--root", root, filepath.Join(root, "data", "missing.txt"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "repository "+root)
}

func TestMirror_MissingDatabase(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, ""), "mirror", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [C003]")
}

func TestConfig_Invalid(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, "tracing:\n  exporter: carrier-pigeon\n"), "scan", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [C001]")
}
