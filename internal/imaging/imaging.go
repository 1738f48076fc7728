// Package imaging normalises uploaded item photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"

	"github.com/erazemk/najdeno/internal/apperr"
)

// MaxDimension is the maximum width or height of a stored photo.
const MaxDimension = 1024

// JPEGQuality is the compression quality for stored photos.
const JPEGQuality = 85

// MaxUploadSize is the default limit on raw upload size.
const MaxUploadSize = 10 << 20

// ErrTooLarge is wrapped by errors for uploads over the size limit.
var ErrTooLarge = errors.New("image too large")

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a normalised JPEG.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Normalize reads at most limit bytes, checks the format by sniffing the
// content, downscales to MaxDimension and re-encodes as JPEG. Rejections are
// validation errors. A limit <= 0 uses MaxUploadSize.
func Normalize(r io.Reader, limit int64) (*Photo, error) {
	if limit <= 0 {
		limit = MaxUploadSize
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, &apperr.Error{
			Kind:    apperr.KindValidation,
			Message: fmt.Sprintf("image exceeds %s", humanize.IBytes(uint64(limit))),
			Err:     ErrTooLarge,
		}
	}

	// Client headers are not trusted.
	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, apperr.Validation("unsupported image format %s, only JPEG and PNG are accepted", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Validation("decoding image: %v", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// downscale fits img within maxDim on both sides, keeping the aspect ratio.
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
