package manifest

import (
	"errors"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/object"
)

func compileLabel(t *testing.T, src, label string, kinds []*object.Kind) (*object.Class, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v.LookupPath(cue.ParsePath("plugin."+label)), kinds)
}

func TestCompile_Basic(t *testing.T) {
	class, err := compileLabel(t, `
		plugin: Diameter: {
			name:     "statistics.data.Diameter"
			base:     "DataStatistic"
			requires: ["igraph", "lattice"]
		}
	`, "Diameter", nil)
	require.NoError(t, err)

	assert.Equal(t, "statistics.data.Diameter", class.Name)
	assert.Equal(t, "Diameter", class.SimpleName)
	assert.Same(t, object.DataStatistic, class.Base)
	assert.Equal(t, []string{"igraph", "lattice"}, class.Requires)
}

func TestCompile_NameDefaultsToLabel(t *testing.T) {
	class, err := compileLabel(t, `plugin: Silhouette: base: "ClusteringQualityMeasure"`, "Silhouette", nil)
	require.NoError(t, err)
	assert.Equal(t, "Silhouette", class.Name)
	assert.Empty(t, class.Requires)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		kinds []*object.Kind
		code  string
	}{
		{"missing base", `plugin: X: name: "a.X"`, nil, ErrCodeMissing},
		{"unknown base", `plugin: X: base: "Nope"`, nil, ErrCodeUnknownBase},
		{"static base", `plugin: X: base: "DataSet"`, nil, ErrCodeUnknownBase},
		{"base not accepted", `plugin: X: base: "DataStatistic"`, []*object.Kind{object.DistanceMeasure}, ErrCodeWrongBase},
		{"base not a string", `plugin: X: base: 3`, nil, ErrCodeBadValue},
		{"requires not strings", `plugin: X: { base: "DataStatistic", requires: [1] }`, nil, ErrCodeBadValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileLabel(t, tt.src, "X", tt.kinds)
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestCompile_ErrorCarriesPosition(t *testing.T) {
	v := cuecontext.New().CompileString("plugin: X: {\n\tbase: \"Nope\"\n}\n", cue.Filename("x.cue"))
	require.NoError(t, v.Err())

	_, err := Compile(v.LookupPath(cue.ParsePath("plugin.X")), nil)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.True(t, le.Pos.IsValid())
	assert.Equal(t, 2, le.Pos.Line())
	assert.Contains(t, err.Error(), "x.cue:2:")
}

func TestLoadDir_Valid(t *testing.T) {
	classes, errs := LoadDir(filepath.Join("testdata", "valid"), nil, LoadModeCollectAll)
	require.Empty(t, errs)
	require.Len(t, classes, 3)

	// Files in name order, plugins in declaration order.
	assert.Equal(t, "distance.EuclidianDistance", classes[0].Name)
	assert.Equal(t, "statistics.data.ClusteringCoefficient", classes[1].Name)
	assert.Equal(t, "NumberOfSamples", classes[2].Name)

	for _, c := range classes {
		assert.NotEmpty(t, c.Source)
		assert.NotZero(t, c.ChangeDate)
	}
	assert.Equal(t, filepath.Join("testdata", "valid", "statistics.cue"), classes[1].Source)
}

func TestLoadDir_RestrictedKinds(t *testing.T) {
	classes, errs := LoadDir(filepath.Join("testdata", "valid"), []*object.Kind{object.DataStatistic}, LoadModeCollectAll)
	assert.Len(t, classes, 2)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeWrongBase)
}

func TestLoadDir_CollectAll(t *testing.T) {
	classes, errs := LoadDir(filepath.Join("testdata", "broken"), nil, LoadModeCollectAll)

	require.Len(t, errs, 2)
	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
	require.True(t, errors.As(errs[1], &le))
	assert.Equal(t, ErrCodeUnknownBase, le.Code)

	require.Len(t, classes, 1)
	assert.Equal(t, "Fine", classes[0].Name)
}

func TestLoadDir_FailFast(t *testing.T) {
	classes, errs := LoadDir(filepath.Join("testdata", "broken"), nil, LoadModeFailFast)
	assert.Len(t, errs, 1)
	assert.Empty(t, classes)
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	_, errs := LoadDir(filepath.Join("testdata", "nope"), nil, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeScanError)
}

func TestLoadFile_NoPlugins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.cue")
	require.NoError(t, writeString(path, "other: 1\n"))

	classes, errs := LoadFile(path, nil, LoadModeCollectAll)
	assert.Empty(t, classes)
	assert.Empty(t, errs)
}

func TestIsManifest(t *testing.T) {
	assert.True(t, IsManifest("/x/a.cue"))
	assert.False(t, IsManifest("/x/.hidden.cue"))
	assert.False(t, IsManifest("/x/a.txt"))
}
