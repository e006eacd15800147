// Package imaging normalises uploaded receipt scans.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height for stored scans. Large enough
// to keep a signature on an A4 page legible.
const MaxDimension = 2000

// JPEGQuality is the compression quality for re-encoded scans.
const JPEGQuality = 85

// MIME types of stored receipt files.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEPDF  = "application/pdf"
)

// ScanResult is a normalised receipt file.
type ScanResult struct {
	Data []byte
	MIME string
}

// ProcessScan reads an uploaded receipt, validates the format by sniffing
// bytes and normalises it. PDFs are stored as is. JPEG and PNG photos are
// downscaled to MaxDimension and re-encoded as JPEG.
func ProcessScan(r io.Reader) (*ScanResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading scan: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	// Sniff the type from bytes, never from client headers.
	detected := http.DetectContentType(data)
	switch detected {
	case MIMEPDF:
		return &ScanResult{Data: data, MIME: MIMEPDF}, nil
	case MIMEJPEG, MIMEPNG:
	default:
		return nil, fmt.Errorf("unsupported file format: %s (only PDF, JPEG and PNG accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &ScanResult{Data: buf.Bytes(), MIME: MIMEJPEG}, nil
}

// downscale resizes img so neither side exceeds maxDim, keeping the aspect
// ratio. Images already within bounds are returned unchanged.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
