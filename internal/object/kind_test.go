package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Lineage(t *testing.T) {
	lineage := ClusteringRun.Lineage()
	require.Len(t, lineage, 3)
	assert.Same(t, ClusteringRun, lineage[0])
	assert.Same(t, ExecutionRun, lineage[1])
	assert.Same(t, Run, lineage[2])
}

func TestKind_InheritsFlavor(t *testing.T) {
	child := NewKind("kindTestDynamicChild", Static, DataStatistic)
	assert.Equal(t, Dynamic, child.Flavor(), "child kind takes the parent's flavor")
	assert.True(t, child.Is(DataStatistic))
	assert.False(t, DataStatistic.Is(child))
}

func TestNewKind_Idempotent(t *testing.T) {
	a := NewKind("kindTestOnce", Static, nil)
	b := NewKind("kindTestOnce", Dynamic, nil)
	assert.Same(t, a, b)

	found, ok := LookupKind("kindTestOnce")
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestKinds_ContainsBuiltins(t *testing.T) {
	all := Kinds()
	assert.Contains(t, all, DataSet)
	assert.Contains(t, all, RunResultPostprocessor)

	_, ok := LookupKind("NoSuchKind")
	assert.False(t, ok)
}

func TestSimpleName(t *testing.T) {
	assert.Equal(t, "Diameter", SimpleName("statistics.data.Diameter"))
	assert.Equal(t, "Plain", SimpleName("Plain"))
}
