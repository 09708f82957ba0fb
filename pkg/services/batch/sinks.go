package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"receipt-scan/pkg/models"
)

// DefaultDocument is the batch output file name
const DefaultDocument = "receipt_analysis.json"

// WriteDocument writes all records as one JSON array, indented by two spaces
func WriteDocument(path string, records []models.ReceiptRecord) error {
	if records == nil {
		records = []models.ReceiptRecord{}
	}
	return writeJSON(path, records)
}

// WritePerImage writes rec to dir/<image stem>.json and returns that path
func WritePerImage(dir, imagePath string, rec models.ReceiptRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Base(imagePath)
	out := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".json")
	return out, writeJSON(out, rec)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
