package objectstore

import (
	"bytes"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"github.com/go-faster/errors"
	"golang.org/x/image/draw"
)

// Proof images are scaled to fit this box and re-encoded as JPEG.
const (
	MaxWidth    = 800
	MaxHeight   = 800
	JPEGQuality = 70
)

// MaxPixels caps the decoded size of a proof image. A few kilobytes of PNG
// can declare dimensions that take gigabytes to decode.
const MaxPixels = 40_000_000

// ErrImageTooLarge is returned for images above MaxPixels.
var ErrImageTooLarge = errors.New("image too large")

// Compress decodes a JPEG, PNG or GIF image, scales it down to fit
// MaxWidth x MaxHeight keeping the aspect ratio, and re-encodes it as JPEG.
// Smaller images are only re-encoded.
func Compress(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image config")
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, errors.Wrapf(ErrImageTooLarge, "%dx%d", cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), MaxWidth, MaxHeight)

	var out image.Image = src
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

func fit(w, h, maxW, maxH int) (int, int) {
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}
	return max(w, 1), max(h, 1)
}
