package compute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/object"
)

func newGate(svc Service) (*Gate, *Facts) {
	facts := NewFacts()
	return NewGate(NewPool(svc, time.Minute, nil), facts, time.Second, nil), facts
}

func TestGate_NoRequirements(t *testing.T) {
	svc := NewStatic()
	g, facts := newGate(svc)
	facts.Add("stats.Plain", "stale")

	require.NoError(t, g.Ensure(context.Background(), object.NewClass("stats.Plain", object.DataStatistic)))
	assert.Equal(t, 0, svc.Dials(), "no connection needed")
	assert.Empty(t, facts.For("stats.Plain"))
}

func TestGate_MissingLibraryRecordsFact(t *testing.T) {
	g, facts := newGate(NewStatic("igraph"))
	px := object.NewClass("stats.PluginX", object.DataStatistic, "igraph", "optionalLib")

	err := g.Ensure(context.Background(), px)
	require.Error(t, err)
	assert.True(t, IsDependencyError(err))
	assert.ErrorIs(t, err, ErrLibraryUnavailable)

	var de *DependencyError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "stats.PluginX", de.Class)
	assert.Equal(t, "optionalLib", de.Library)

	assert.Equal(t, []MissingDependency{{Class: "stats.PluginX", Library: "optionalLib"}}, facts.Snapshot())
}

func TestGate_RepeatedFailuresDeduplicate(t *testing.T) {
	g, facts := newGate(NewStatic())
	px := object.NewClass("stats.PluginX", object.DataStatistic, "optionalLib")

	for i := 0; i < 3; i++ {
		require.Error(t, g.Ensure(context.Background(), px))
	}
	assert.Equal(t, []string{"optionalLib"}, facts.For("stats.PluginX"))
}

func TestGate_SuccessClearsFacts(t *testing.T) {
	svc := NewStatic()
	g, facts := newGate(svc)
	px := object.NewClass("stats.PluginX", object.DataStatistic, "optionalLib")

	require.Error(t, g.Ensure(context.Background(), px))
	require.Equal(t, 1, facts.Len())

	svc.Install("optionalLib")
	require.NoError(t, g.Ensure(context.Background(), px))
	assert.Equal(t, 0, facts.Len())
}

func TestGate_UnreachableServiceRecordsServiceName(t *testing.T) {
	g, facts := newGate(Unavailable{})
	px := object.NewClass("stats.PluginX", object.DataStatistic, "optionalLib")

	err := g.Ensure(context.Background(), px)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, []string{"R"}, facts.For("stats.PluginX"))
}

func TestGate_LoadedLibrariesAreCachedPerConnection(t *testing.T) {
	svc := NewStatic("igraph")
	g, _ := newGate(svc)
	a := object.NewClass("stats.A", object.DataStatistic, "igraph")
	b := object.NewClass("stats.B", object.DataStatistic, "igraph")

	require.NoError(t, g.Ensure(context.Background(), a))
	require.NoError(t, g.Ensure(context.Background(), b))
	assert.Equal(t, 1, svc.Loads())
	assert.Equal(t, 1, svc.Dials())
}

func TestGate_TimeoutIsDependencyFailure(t *testing.T) {
	ln := startServer(t, func(line string) string {
		time.Sleep(500 * time.Millisecond)
		return "OK"
	})
	facts := NewFacts()
	g := NewGate(NewPool(NewTCP(ln, time.Second), time.Minute, nil), facts, 50*time.Millisecond, nil)

	err := g.Ensure(context.Background(), object.NewClass("stats.Slow", object.DataStatistic, "slowLib"))
	require.Error(t, err)
	assert.True(t, IsDependencyError(err))
	assert.Equal(t, []string{"slowLib"}, facts.For("stats.Slow"))
}
