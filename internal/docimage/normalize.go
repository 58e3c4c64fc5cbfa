// Package docimage prepares photographed documents for OCR and vision
// models: it honours EXIF orientation, turns sideways photos upright,
// downscales to the provider limit and re-encodes as grayscale JPEG.
package docimage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/tbourn/go-vehicle-assistant/internal/config"
)

// ErrCorruptImage is returned when the input cannot be decoded.
var ErrCorruptImage = errors.New("corrupt image")

// MIMEType of every normalized image. WebP has no pure-Go encoder, so JPEG
// is used for all output.
const MIMEType = "image/jpeg"

// Normalizer is a pure transform from raw upload bytes to normalized bytes.
type Normalizer struct {
	MaxDimension int
	Quality      int
	Detector     OrientationDetector
}

// NewNormalizer returns a Normalizer configured from cfg with the projection
// based orientation detector.
func NewNormalizer(cfg config.ImageConfig) *Normalizer {
	return &Normalizer{MaxDimension: cfg.MaxDimension, Quality: cfg.JPEGQuality, Detector: ProjectionDetector{}}
}

// Normalize decodes raw, fixes orientation, downscales and re-encodes it.
//
// Landscape input is treated as a document photographed sideways: it is
// rotated by the detected quarter turn, or 90° clockwise when detection is
// inconclusive, so the result is always at least as tall as it is wide.
func (n *Normalizer) Normalize(raw []byte) ([]byte, error) {
	img, err := decode(raw)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > b.Dy() {
		img = rotateClockwise(img, n.landscapeTurn(img))
	}

	if limit := n.MaxDimension; limit > 0 {
		b = img.Bounds()
		if b.Dx() > limit || b.Dy() > limit {
			img = imaging.Fit(img, limit, limit, imaging.Lanczos)
		}
	}

	q := n.Quality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, toGray(img), imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// landscapeTurn picks the clockwise quarter turn for a landscape image.
// Half turns and inconclusive results fall back to 90.
func (n *Normalizer) landscapeTurn(img image.Image) int {
	if n.Detector == nil {
		return 90
	}
	angle, ok := n.Detector.Detect(imaging.Fit(img, detectSize, detectSize, imaging.Box))
	if ok && (angle == 90 || angle == 270) {
		return angle
	}
	return 90
}

// Thumbnail returns a small JPEG data URI preview of raw.
func Thumbnail(raw []byte, size int) (string, error) {
	img, err := decode(raw)
	if err != nil {
		return "", err
	}
	img = imaging.Fit(img, size, size, imaging.Box)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(60)); err != nil {
		return "", err
	}
	return DataURI(MIMEType, buf.Bytes()), nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffMIME returns the content type of data ("image/png", "application/pdf", ...).
func SniffMIME(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// IsImage reports whether mime is an image type this package decodes.
func IsImage(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff":
		return true
	}
	return false
}

func decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptImage)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return img, nil
}

func rotateClockwise(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return img
}

// toGray converts to a single-channel image so the JPEG encoder writes one
// component.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
