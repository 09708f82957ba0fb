package ocr

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"receipt-scan/pkg/services/vlm"
)

const jpegQuality = 90

// Prepare decodes a receipt photo, straightens it using its EXIF orientation,
// optionally enhances it, shrinks it to fit the configured maximum dimension
// and re-encodes it as JPEG.
func (s *Service) Prepare(r io.Reader) (vlm.Image, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return vlm.Image{}, fmt.Errorf("failed to decode image: %w", err)
	}

	img := src
	if s.enhance {
		img = enhanceForOCR(img)
	}
	img = fit(img, s.maxDimension)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return vlm.Image{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return vlm.Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// PrepareFile is Prepare for an image on disk
func (s *Service) PrepareFile(path string) (vlm.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return vlm.Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return s.Prepare(f)
}

// enhanceForOCR boosts contrast and sharpness on faded thermal-paper prints
func enhanceForOCR(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	return imaging.AdjustGamma(img, 1.2)
}

// fit shrinks img to fit a limit x limit box. Smaller images are left alone.
func fit(img image.Image, limit int) image.Image {
	if limit <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	return imaging.Fit(img, limit, limit, imaging.Lanczos)
}
