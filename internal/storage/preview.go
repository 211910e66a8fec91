package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// Preview bounds for template screenshots
const (
	PreviewWidth  = 300
	PreviewHeight = 300
)

// GeneratePreview decodes an image and scales it to fit the preview bounds,
// preserving the aspect ratio. The result is encoded in the source format.
func GeneratePreview(r io.Reader, maxWidth, maxHeight int) ([]byte, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := calculateDimensions(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	thumbImg := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(thumbImg, thumbImg.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, thumbImg); err != nil {
			return nil, "", fmt.Errorf("failed to encode PNG preview: %w", err)
		}
	case "gif":
		if err := gif.Encode(&buf, thumbImg, nil); err != nil {
			return nil, "", fmt.Errorf("failed to encode GIF preview: %w", err)
		}
	default:
		format = "jpeg"
		if err := jpeg.Encode(&buf, thumbImg, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", fmt.Errorf("failed to encode JPEG preview: %w", err)
		}
	}

	return buf.Bytes(), format, nil
}

// calculateDimensions calculates new dimensions while preserving aspect ratio.
// Images already inside the bounds keep their size.
func calculateDimensions(origWidth, origHeight, maxWidth, maxHeight int) (int, int) {
	if origWidth <= 0 || origHeight <= 0 {
		return maxWidth, maxHeight
	}
	if origWidth <= maxWidth && origHeight <= maxHeight {
		return origWidth, origHeight
	}

	ratio := float64(origWidth) / float64(origHeight)

	width := maxWidth
	height := int(float64(width) / ratio)

	// If height is too large, recalculate width based on maxHeight
	if height > maxHeight {
		height = maxHeight
		width = int(float64(height) * ratio)
	}

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return width, height
}
