package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrUnsupportedImage is returned for payloads that are not JPEG or PNG.
var ErrUnsupportedImage = errors.New("unsupported image")

// Prepare decodes img, fits it inside maxPx x maxPx keeping the aspect ratio
// and re-encodes it as JPEG at quality 85.
func Prepare(img []byte, maxPx int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxPx > 0 && (w > maxPx || h > maxPx) {
		if w >= h {
			h = max(1, h*maxPx/w)
			w = maxPx
		} else {
			w = max(1, w*maxPx/h)
			h = maxPx
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		src = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, src, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return out.Bytes(), nil
}
