package receipts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-scan/pkg/logger"
	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/vlm"
)

type fakeImages struct {
	prepareErr error
	lines      []models.TextLine
	ocrErr     error
	ocr        bool
}

func (f *fakeImages) Prepare(r io.Reader) (vlm.Image, error) {
	if f.prepareErr != nil {
		return vlm.Image{}, f.prepareErr
	}
	data, err := io.ReadAll(r)
	return vlm.Image{Data: data, MIMEType: "image/jpeg"}, err
}

func (f *fakeImages) TextEnabled() bool { return f.ocr }

func (f *fakeImages) ExtractText(ctx context.Context, img vlm.Image) ([]models.TextLine, error) {
	return f.lines, f.ocrErr
}

type fakeCaller struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	prompts []string
}

func (f *fakeCaller) Name() string { return "fake" }

func (f *fakeCaller) Describe(ctx context.Context, img vlm.Image, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func bytesSource(id int, path string) Source {
	return Source{ID: id, Path: path, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("jpeg"))), nil
	}}
}

func newAnalyzer(images ImageService, caller vlm.Caller, timeout time.Duration) *Analyzer {
	return NewAnalyzer(images, caller, nil, Options{Prompt: "read it", Timeout: timeout}, logger.Discard())
}

func TestAnalyzeSuccess(t *testing.T) {
	caller := &fakeCaller{reply: "```json\n{\"name_of_establishment\": \"Cafe X\", \"items\": [{\"name\": \"Tea\", \"quantity\": 2, \"price_per_item\": 1.5}], \"total\": 3.0}\n```"}

	out := newAnalyzer(&fakeImages{}, caller, time.Second).Analyze(context.Background(), bytesSource(7, "cafe.jpg"))

	require.False(t, out.Degraded())
	assert.Equal(t, 7, out.Record.ReceiptID)
	assert.Equal(t, "cafe.jpg", out.Record.ImagePath)
	assert.Equal(t, "Cafe X", out.Record.NameOfEstablishment)
	assert.Equal(t, 1, out.Record.NumberOfItems)
	assert.Equal(t, []string{"read it"}, caller.prompts)
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name   string
		images *fakeImages
		caller *fakeCaller
		src    Source
		reason extraction.Reason
		raw    string
	}{
		{
			name:   "unreadable model reply",
			images: &fakeImages{},
			caller: &fakeCaller{reply: "I could not read this receipt."},
			src:    bytesSource(1, "a.jpg"),
			reason: extraction.ReasonNoPayload,
			raw:    "I could not read this receipt.",
		},
		{
			name:   "transport error",
			images: &fakeImages{},
			caller: &fakeCaller{err: errors.New("connection refused")},
			src:    bytesSource(1, "a.jpg"),
			reason: extraction.ReasonTransport,
		},
		{
			name:   "timeout",
			images: &fakeImages{},
			caller: &fakeCaller{block: true},
			src:    bytesSource(1, "a.jpg"),
			reason: extraction.ReasonTimeout,
		},
		{
			name:   "undecodable image",
			images: &fakeImages{prepareErr: errors.New("unknown format")},
			caller: &fakeCaller{},
			src:    bytesSource(1, "a.jpg"),
			reason: extraction.ReasonDecode,
		},
		{
			name:   "missing file",
			images: &fakeImages{},
			caller: &fakeCaller{},
			src:    FileSource(1, filepath.Join(os.TempDir(), "does-not-exist", "r.jpg")),
			reason: extraction.ReasonDecode,
		},
		{
			name:   "no opener",
			images: &fakeImages{},
			caller: &fakeCaller{},
			src:    Source{ID: 1},
			reason: extraction.ReasonDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newAnalyzer(tt.images, tt.caller, 20*time.Millisecond).Analyze(context.Background(), tt.src)

			require.True(t, out.Degraded())
			assert.Equal(t, tt.reason, out.Failure.Reason)
			assert.False(t, out.Record.Success)
			assert.Equal(t, tt.raw, out.Record.RawResponse)
			assert.Equal(t, models.Sentinel, out.Record.Total.String())
			assert.Equal(t, 1, out.Record.ReceiptID)
		})
	}
}

func TestAnalyzeAddsOCRHint(t *testing.T) {
	caller := &fakeCaller{reply: `{"total": 1}`}
	images := &fakeImages{ocr: true, lines: []models.TextLine{{Text: "CAFE X"}, {Text: "TOTAL 1.00"}}}

	out := newAnalyzer(images, caller, time.Second).Analyze(context.Background(), bytesSource(1, "a.jpg"))

	require.False(t, out.Degraded())
	require.Len(t, caller.prompts, 1)
	assert.True(t, strings.HasPrefix(caller.prompts[0], "read it"))
	assert.Contains(t, caller.prompts[0], "CAFE X\nTOTAL 1.00\n")
}

func TestAnalyzeIgnoresOCRFailure(t *testing.T) {
	caller := &fakeCaller{reply: `{"total": 1}`}
	images := &fakeImages{ocr: true, ocrErr: errors.New("401 unauthorized")}

	out := newAnalyzer(images, caller, time.Second).Analyze(context.Background(), bytesSource(1, "a.jpg"))

	assert.False(t, out.Degraded())
	assert.Equal(t, []string{"read it"}, caller.prompts)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	rc, err := FileSource(3, path).Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
