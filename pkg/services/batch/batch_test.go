package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/receipts"
)

// scriptedAnalyzer answers with a canned model response per image name
type scriptedAnalyzer struct {
	mu        sync.Mutex
	responses map[string]string
	seen      []receipts.Source
}

func (s *scriptedAnalyzer) Analyze(ctx context.Context, src receipts.Source) extraction.Outcome {
	s.mu.Lock()
	s.seen = append(s.seen, src)
	raw := s.responses[filepath.Base(src.Path)]
	s.mu.Unlock()
	return extraction.NewPipeline(nil).Process(raw, extraction.Meta{ReceiptID: src.ID, ImagePath: src.Path})
}

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func receiptJSON(name string) string {
	return "```json\n{\"name_of_establishment\": \"" + name + "\", \"total\": 1}\n```"
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
