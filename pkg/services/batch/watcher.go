package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/receipts"
)

const defaultSettle = 500 * time.Millisecond

// Watcher analyzes images as they appear in a directory and writes one JSON
// file per image into an output directory.
type Watcher struct {
	dir      string
	outDir   string
	analyzer Analyzer
	log      logrus.FieldLogger
	settle   time.Duration
	lastID   atomic.Int64
	ready    chan struct{}
	onRecord func(path string, rec models.ReceiptRecord)
	seen     map[string]time.Time
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir, outDir string, analyzer Analyzer, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		dir:      dir,
		outDir:   outDir,
		analyzer: analyzer,
		log:      log,
		settle:   defaultSettle,
		ready:    make(chan struct{}),
		seen:     make(map[string]time.Time),
	}
}

// SetSettle sets how long a file must stay quiet before it is analyzed
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// OnRecord registers a callback run after each record is written
func (w *Watcher) OnRecord(fn func(path string, rec models.ReceiptRecord)) {
	w.onRecord = fn
}

// Ready is closed once Run is watching the directory
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Backfill analyzes images already in the directory that have no output yet
func (w *Watcher) Backfill(ctx context.Context) error {
	paths, err := ListImages(w.dir, 0)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := os.Stat(w.outputPath(p)); err == nil {
			continue
		}
		w.handle(ctx, p)
	}
	return nil
}

// Run watches until ctx is cancelled. Backfill should be called first when
// existing images matter; Run only sees new ones.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	close(w.ready)
	w.log.WithField("dir", w.dir).Info("watching for receipt images")

	settled := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsImage(evt.Name) {
				continue
			}
			if t, ok := pending[evt.Name]; ok {
				t.Reset(w.settle)
				continue
			}
			name := evt.Name
			pending[name] = time.AfterFunc(w.settle, func() {
				select {
				case settled <- name:
				case <-ctx.Done():
				}
			})
		case name := <-settled:
			delete(pending, name)
			w.handle(ctx, name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.log.WithField("image", path).WithError(err).Warn("image disappeared before analysis")
		return
	}
	if mod, ok := w.seen[path]; ok && mod.Equal(info.ModTime()) {
		return
	}
	w.seen[path] = info.ModTime()

	id := int(w.lastID.Add(1))
	out := w.analyzer.Analyze(ctx, receipts.FileSource(id, path))
	if _, err := WritePerImage(w.outDir, path, out.Record); err != nil {
		w.log.WithField("image", path).WithError(err).Error("failed to write record")
		return
	}
	if w.onRecord != nil {
		w.onRecord(path, out.Record)
	}
}

func (w *Watcher) outputPath(imagePath string) string {
	base := filepath.Base(imagePath)
	return filepath.Join(w.outDir, base[:len(base)-len(filepath.Ext(base))]+".json")
}
