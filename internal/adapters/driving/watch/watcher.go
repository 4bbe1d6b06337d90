// Package watch runs the report pipeline on documents dropped into a
// directory. Files are processed once they stop changing for a settle
// interval, and failures on one file never stop the watch.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driving"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
)

const (
	// DefaultSettle is the quiet period a file must hold before it is
	// processed.
	DefaultSettle = 2 * time.Second

	// ReportSuffix names the reports this watcher writes. Files ending
	// in it are never picked up again as inputs.
	ReportSuffix = ".report.md"
)

// Config configures a Watcher.
type Config struct {
	// Pipeline runs each settled document.
	Pipeline driving.PipelineService

	// OutputDir receives report files. Empty writes them next to the
	// source document.
	OutputDir string

	// Settle is the quiet period before a changed file is processed.
	// Non-positive falls back to DefaultSettle.
	Settle time.Duration
}

// Watcher debounces filesystem events and feeds settled documents to
// the pipeline.
type Watcher struct {
	pipeline  driving.PipelineService
	outputDir string
	settle    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher from the config.
func New(cfg Config) (*Watcher, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("watch: pipeline service is required")
	}

	settle := cfg.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	return &Watcher{
		pipeline:  cfg.Pipeline,
		outputDir: cfg.OutputDir,
		settle:    settle,
		timers:    make(map[string]*time.Timer),
	}, nil
}

// Run watches dir until the context is cancelled. It returns the
// context error on cancellation.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return domain.ConfigErrorf("watch directory %s: %v", dir, err)
	}
	if !info.IsDir() {
		return domain.ConfigErrorf("watch target %s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return err
	}

	logger.Info("Watching %s (settle %s)", dir, w.settle)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				if eligible(ev.Name) {
					w.schedule(ctx, ev.Name)
				}
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				w.cancel(ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// eligible reports whether path is a document this watcher should
// process.
func eligible(path string) bool {
	if strings.HasSuffix(path, ReportSuffix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

// schedule arms, or re-arms on repeated writes, the settle timer for a
// path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.process(ctx, path)
	})
}

// cancel drops the pending timer for a path that was removed or
// renamed away.
func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}

// process runs one settled document through the pipeline and writes
// its report.
func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	logger.Info("Processing %s", path)
	report, err := w.pipeline.ProcessDocument(ctx, domain.ProcessRequest{Source: path})
	if err != nil {
		logger.Error("Processing %s failed: %v", path, err)
		return
	}

	out := w.reportPath(path)
	if err := writeReport(out, []byte(report.Markdown())); err != nil {
		logger.Error("Writing report for %s failed: %v", path, err)
		return
	}
	logger.Info("Report for %s written to %s (status %s)", path, out, report.Status)
}

// reportPath derives the report file for a source document.
func (w *Watcher) reportPath(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	dir := w.outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, base+ReportSuffix)
}

// writeReport writes via a temp file and rename so a watcher on the
// output directory never reads a half-written report.
func writeReport(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
