package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// mockPipeline is a mock implementation of driving.PipelineService.
type mockPipeline struct {
	mu      sync.Mutex
	sources []string
	report  *domain.Report
	failFor string
}

func (m *mockPipeline) ProcessDocument(
	_ context.Context,
	req domain.ProcessRequest,
) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, req.Source)
	if m.failFor != "" && filepath.Base(req.Source) == m.failFor {
		return nil, errors.New("pipeline failed")
	}
	return m.report, nil
}

func (m *mockPipeline) ResumeSkeleton(
	_ context.Context,
	_ domain.ResumeRequest,
) (*domain.Report, error) {
	return m.report, nil
}

func (m *mockPipeline) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sources))
	copy(out, m.sources)
	return out
}

func testReport() *domain.Report {
	return &domain.Report{
		Title:  "Notes",
		Status: domain.ReportStatusComplete,
		Sections: []domain.ReportSection{
			{Title: "Summary", Content: "Everything settled."},
		},
	}
}

// startWatcher runs the watcher against dir and returns a cancel
// function that also waits for Run to return.
func startWatcher(t *testing.T, w *Watcher, dir string) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, dir)
	}()

	// Let the watch become active before the test writes files.
	time.Sleep(50 * time.Millisecond)

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestNew(t *testing.T) {
	t.Run("nil pipeline returns error", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err)
	})

	t.Run("default settle", func(t *testing.T) {
		w, err := New(Config{Pipeline: &mockPipeline{}})
		require.NoError(t, err)
		assert.Equal(t, DefaultSettle, w.settle)
	})
}

func TestEligible(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"notes.txt", true},
		{"readme.md", true},
		{"README.MD", true},
		{"archive.pdf", false},
		{"notes.report.md", false},
		{"noext", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, eligible(tt.path))
		})
	}
}

func TestWatcher_ReportPath(t *testing.T) {
	t.Run("alongside the source by default", func(t *testing.T) {
		w, err := New(Config{Pipeline: &mockPipeline{}})
		require.NoError(t, err)
		got := w.reportPath(filepath.Join("in", "notes.txt"))
		assert.Equal(t, filepath.Join("in", "notes.report.md"), got)
	})

	t.Run("into the output dir when set", func(t *testing.T) {
		w, err := New(Config{Pipeline: &mockPipeline{}, OutputDir: "out"})
		require.NoError(t, err)
		got := w.reportPath(filepath.Join("in", "notes.txt"))
		assert.Equal(t, filepath.Join("out", "notes.report.md"), got)
	})
}

func TestWatcher_Run_RejectsMissingDir(t *testing.T) {
	w, err := New(Config{Pipeline: &mockPipeline{}})
	require.NoError(t, err)

	err = w.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestWatcher_Run_RejectsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, err := New(Config{Pipeline: &mockPipeline{}})
	require.NoError(t, err)

	err = w.Run(context.Background(), path)
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestWatcher_ProcessesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	pipeline := &mockPipeline{report: testReport()}

	w, err := New(Config{Pipeline: pipeline, Settle: 50 * time.Millisecond})
	require.NoError(t, err)
	stop := startWatcher(t, w, dir)
	defer stop()

	source := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(source, []byte("meeting notes"), 0o644))

	reportFile := filepath.Join(dir, "notes.report.md")
	require.Eventually(t, func() bool {
		_, err := os.Stat(reportFile)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(reportFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Notes")
	assert.Equal(t, []string{source}, pipeline.calls())
}

func TestWatcher_WritesToOutputDir(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	pipeline := &mockPipeline{report: testReport()}

	w, err := New(Config{Pipeline: pipeline, OutputDir: outDir, Settle: 50 * time.Millisecond})
	require.NoError(t, err)
	stop := startWatcher(t, w, dir)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.md"), []byte("# spec"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(outDir, "spec.report.md"))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	pipeline := &mockPipeline{report: testReport()}

	w, err := New(Config{Pipeline: pipeline, Settle: 150 * time.Millisecond})
	require.NoError(t, err)
	stop := startWatcher(t, w, dir)
	defer stop()

	source := filepath.Join(dir, "growing.txt")
	require.NoError(t, os.WriteFile(source, []byte("part one"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(source, []byte("part one, part two"), 0o644))

	require.Eventually(t, func() bool {
		return len(pipeline.calls()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	// No second run fires after the settle window passes again.
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, pipeline.calls(), 1)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	pipeline := &mockPipeline{report: testReport()}

	w, err := New(Config{Pipeline: pipeline, Settle: 50 * time.Millisecond})
	require.NoError(t, err)
	stop := startWatcher(t, w, dir)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "trace.log"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, pipeline.calls())
}

func TestWatcher_ContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	pipeline := &mockPipeline{report: testReport(), failFor: "bad.txt"}

	w, err := New(Config{Pipeline: pipeline, Settle: 50 * time.Millisecond})
	require.NoError(t, err)
	stop := startWatcher(t, w, dir)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return len(pipeline.calls()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.txt"), []byte("y"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "good.report.md"))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	// The failed file produced no report.
	_, err = os.Stat(filepath.Join(dir, "bad.report.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.report.md")

	require.NoError(t, writeReport(path, []byte("# Done\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Done\n", string(data))

	// The temp file is gone after the rename.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
