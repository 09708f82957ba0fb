package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-scan/pkg/logger"
	"receipt-scan/pkg/models"
)

func TestWatcherBackfillSkipsDone(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "a.jpg", "b.png", "notes.txt")
	require.NoError(t, os.WriteFile(filepath.Join(out, "b.json"), []byte("{}"), 0o644))

	analyzer := &scriptedAnalyzer{responses: map[string]string{"a.jpg": receiptJSON("A")}}
	w := NewWatcher(in, out, analyzer, logger.Discard())
	require.NoError(t, w.Backfill(context.Background()))

	require.Len(t, analyzer.seen, 1)
	assert.Equal(t, 1, analyzer.seen[0].ID)
	assert.Contains(t, readFile(t, filepath.Join(out, "a.json")), `"name_of_establishment": "A"`)
	assert.Equal(t, "{}", readFile(t, filepath.Join(out, "b.json")))
}

func TestWatcherProcessesNewImages(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	analyzer := &scriptedAnalyzer{responses: map[string]string{"new.jpg": receiptJSON("New")}}
	w := NewWatcher(in, out, analyzer, logger.Discard())
	w.SetSettle(20 * time.Millisecond)

	done := make(chan models.ReceiptRecord, 1)
	w.OnRecord(func(path string, rec models.ReceiptRecord) { done <- rec })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-errc:
		t.Fatalf("watcher stopped early: %v", err)
	}
	writeFiles(t, in, "new.jpg", "ignored.txt")

	select {
	case rec := <-done:
		assert.Equal(t, "New", rec.NameOfEstablishment)
		assert.Equal(t, 1, rec.ReceiptID)
	case <-time.After(5 * time.Second):
		t.Fatal("image was not processed")
	}
	assert.FileExists(t, filepath.Join(out, "new.json"))
	assert.NoFileExists(t, filepath.Join(out, "ignored.json"))

	cancel()
	assert.NoError(t, <-errc)
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), t.TempDir(), &scriptedAnalyzer{}, logger.Discard())
	assert.Error(t, w.Run(context.Background()))
}
