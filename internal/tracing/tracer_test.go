package tracing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// restoreGlobal puts the previous global provider back after the test.
func restoreGlobal(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_FileExporter(t *testing.T) {
	restoreGlobal(t)
	path := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "file"
	cfg.FilePath = path
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	ctx, parent := p.Tracer("test").Start(context.Background(), "scan")
	_, child := p.Tracer("test").Start(ctx, "mirror.register")
	child.SetAttributes(attribute.String("subject", "/repo/data/datasets/iris.txt"))
	child.SetStatus(codes.Error, "disk full")
	child.End()
	parent.End()
	require.NoError(t, p.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []SpanRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)

	byName := map[string]SpanRecord{}
	for _, r := range records {
		byName[r.Name] = r
	}
	assert.Equal(t, "ERROR", byName["mirror.register"].Status)
	assert.Equal(t, "disk full", byName["mirror.register"].StatusMsg)
	assert.Equal(t, "/repo/data/datasets/iris.txt", byName["mirror.register"].Attributes["subject"])
	assert.Equal(t, byName["scan"].SpanID, byName["mirror.register"].ParentSpanID)
	assert.Equal(t, byName["scan"].TraceID, byName["mirror.register"].TraceID)
	assert.Empty(t, byName["scan"].ParentSpanID)
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Writer = &buf
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "initialize")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"initialize"`)
}

func TestNewProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"file without path", Config{Enabled: true, Exporter: "file"}, "file_path required"},
		{"unknown exporter", Config{Enabled: true, Exporter: "zipkin"}, "unsupported exporter type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFileExporter_ShutdownTwice(t *testing.T) {
	e, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
	assert.Error(t, e.ExportSpans(context.Background(), nil))
}
