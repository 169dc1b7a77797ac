// Package imaging normalizes item photos before they are stored.
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
	_ "golang.org/x/image/webp"

	"github.com/erazemk/jaego/internal/model"
)

const (
	// MaxUploadSize caps the raw upload.
	MaxUploadSize = 5 << 20
	// MaxDimension bounds the longer side of a stored photo.
	MaxDimension = 1280
	// ThumbDimension bounds the longer side of a thumbnail.
	ThumbDimension = 240

	jpegQuality = 85
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Photo is a re-encoded JPEG with its thumbnail.
type Photo struct {
	Data   []byte
	Thumb  []byte
	Width  int
	Height int
}

const MIME = "image/jpeg"

// Process validates an upload by its content, shrinks it to MaxDimension
// and re-encodes it as JPEG. Invalid uploads return INVALID_ARGUMENT.
func Process(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, model.InvalidArgument("image must be at most %d MB", MaxUploadSize>>20)
	}

	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, model.InvalidArgument("unsupported image type %s", detected)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, model.InvalidArgument("image could not be decoded")
	}

	full := fit(src, MaxDimension)
	encoded, err := encode(full)
	if err != nil {
		return nil, err
	}
	thumb, err := encode(fit(full, ThumbDimension))
	if err != nil {
		return nil, err
	}

	b := full.Bounds()
	return &Photo{Data: encoded, Thumb: thumb, Width: b.Dx(), Height: b.Dy()}, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so its longer side is at most max. Smaller images are
// returned unchanged.
func fit(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}

	nw, nh := max, max
	if w > h {
		nh = h * max / w
	} else {
		nw = w * max / h
	}
	nw, nh = maxInt(nw, 1), maxInt(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Keys returns the blob keys of an item's photo and thumbnail.
func Keys(itemID string) (photo, thumb string) {
	return "items/" + itemID + ".jpg", "items/" + itemID + "_thumb.jpg"
}
