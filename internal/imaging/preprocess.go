// Package imaging prepares locally stored screenshots for upload to the
// analysis endpoint: border cropping, downscaling, and re-encoding under the
// endpoint's inline payload ceiling.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	// maxLongEdge is the pixel limit on the longest image edge before upload.
	maxLongEdge = 1920
	// maxPayloadBytes is the remote endpoint's inline payload ceiling.
	maxPayloadBytes = 4 * 1024 * 1024
	// warnFileBytes triggers a non-fatal log when the source file is large.
	warnFileBytes = 2 * 1024 * 1024

	jpegQualityHigh = 85
	jpegQualityLow  = 60

	// blackThreshold: a pixel is border-black when all RGB channels are at or
	// below this value (8-bit).
	blackThreshold = 15
	// minBorderPx: borders thinner than this are left alone.
	minBorderPx = 5
)

// Result is an upload-ready screenshot payload.
type Result struct {
	Base64        string `json:"base64"`
	MimeType      string `json:"mimeType"`
	OriginalSize  int64  `json:"originalSize"`
	ProcessedSize int    `json:"processedSize"`
	WasResized    bool   `json:"wasResized"`
	WasCompressed bool   `json:"wasCompressed"`
	WasCropped    bool   `json:"wasCropped"`
}

// Preprocessor validates and transforms screenshot files.
type Preprocessor struct {
	log *zap.Logger
}

// NewPreprocessor creates a preprocessor. A nil logger disables logging.
func NewPreprocessor(log *zap.Logger) *Preprocessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Preprocessor{log: log}
}

// Preprocess reads, validates, and transforms the screenshot at path into an
// upload-ready encoded payload. Failures to read or decode the file are
// returned as errors; an encoded result that still exceeds the payload
// ceiling after the lowest-quality pass is accepted and left to the remote
// side to reject.
func (p *Preprocessor) Preprocess(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat screenshot: %w", err)
	}
	if info.Size() > warnFileBytes {
		p.log.Warn("screenshot file is large",
			zap.String("path", path),
			zap.Int64("bytes", info.Size()))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open screenshot: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	result := &Result{OriginalSize: info.Size()}

	if cropped, ok := cropBlackBorders(img); ok {
		img = cropped
		result.WasCropped = true
	}

	bounds := img.Bounds()
	if w, h := bounds.Dx(), bounds.Dy(); w > maxLongEdge || h > maxLongEdge {
		img = downscale(img, maxLongEdge)
		result.WasResized = true
		p.log.Debug("screenshot downscaled",
			zap.Int("fromWidth", w), zap.Int("fromHeight", h),
			zap.Int("toWidth", img.Bounds().Dx()), zap.Int("toHeight", img.Bounds().Dy()))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	result.MimeType = "image/png"

	// PNG over the ceiling: fall back to JPEG, first at high quality, then
	// at low quality. The low-quality result is accepted even if still over.
	if buf.Len() > maxPayloadBytes {
		for _, quality := range []int{jpegQualityHigh, jpegQualityLow} {
			buf.Reset()
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
				return nil, fmt.Errorf("encode jpeg q%d: %w", quality, err)
			}
			result.MimeType = "image/jpeg"
			result.WasCompressed = true
			if buf.Len() <= maxPayloadBytes {
				break
			}
		}
		if buf.Len() > maxPayloadBytes {
			p.log.Warn("screenshot payload still over limit after compression",
				zap.Int("bytes", buf.Len()))
		}
	}

	result.ProcessedSize = buf.Len()
	result.Base64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	return result, nil
}

// downscale scales img so its longest edge is at most limit, preserving
// aspect ratio.
func downscale(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var nw, nh int
	if w >= h {
		nw = limit
		nh = h * limit / w
	} else {
		nh = limit
		nw = w * limit / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
