package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"receipt-scan/pkg/services/extraction"
)

// CleanResult is the outcome for one file
type CleanResult struct {
	Path    string
	Cleaned bool
	Err     error
}

// CleanDir rewrites every *.json file in dir to the JSON payload found in it,
// dropping code fences and surrounding prose. Files without a payload that
// parses are left untouched and reported with an error.
func CleanDir(dir string, sanitizer *extraction.Sanitizer) ([]CleanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if sanitizer == nil {
		sanitizer = extraction.NewSanitizer(extraction.StrategyAuto, false)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make([]CleanResult, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		results = append(results, cleanFile(path, sanitizer))
	}
	return results, nil
}

func cleanFile(path string, sanitizer *extraction.Sanitizer) CleanResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return CleanResult{Path: path, Err: err}
	}
	raw := string(data)
	payload := sanitizer.Sanitize(raw)
	if _, err := extraction.Parse(payload, raw); err != nil {
		return CleanResult{Path: path, Err: err}
	}
	if payload.Text == raw {
		return CleanResult{Path: path}
	}
	if err := os.WriteFile(path, []byte(payload.Text), 0o644); err != nil {
		return CleanResult{Path: path, Err: err}
	}
	return CleanResult{Path: path, Cleaned: true}
}
