package icon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Header is the native size of an icon file.
type Header struct {
	Width  int
	Height int
	SVG    bool
}

// Strip reports whether the icon is a horizontal strip, at least one and a
// half times wider than tall.
func (h Header) Strip() bool {
	return h.Height > 0 && 2*h.Width >= 3*h.Height
}

func isSVG(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return true
	}
	head := data[:min(len(data), 512)]
	return bytes.Contains(head, []byte("<svg"))
}

// ReadHeader returns the native size of an icon without decoding pixels.
// SVG sizes come from the view box.
func ReadHeader(path string, data []byte) (Header, error) {
	if isSVG(path, data) {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
		if err != nil {
			return Header{}, fmt.Errorf("failed to parse svg: %w", err)
		}
		return Header{
			Width:  int(math.Ceil(icon.ViewBox.W)),
			Height: int(math.Ceil(icon.ViewBox.H)),
			SVG:    true,
		}, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Header{}, fmt.Errorf("failed to read image header: %w", err)
	}
	return Header{Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode decodes an icon file for display at size. Strips keep their native
// size; everything else is scaled into a size×size square.
func Decode(ctx context.Context, path string, data []byte, size int) (image.Image, Header, error) {
	header, err := ReadHeader(path, data)
	if err != nil {
		return nil, header, err
	}
	if header.Width <= 0 || header.Height <= 0 {
		return nil, header, fmt.Errorf("invalid image size %dx%d", header.Width, header.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, header, err
	}

	var src image.Image
	if header.SVG {
		w, h := header.Width, header.Height
		if !header.Strip() {
			w, h = fitSize(header.Width, header.Height, size)
		}
		src, err = rasterizeSVG(data, w, h)
	} else {
		src, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, header, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, header, err
	}

	if header.Strip() {
		return src, header, nil
	}
	return fitSquare(src, size), header, nil
}

// fitSize scales w×h to fit in a size×size square, keeping the aspect ratio.
func fitSize(w, h, size int) (int, int) {
	if w >= h {
		return size, max(1, h*size/w)
	}
	return max(1, w*size/h), size
}

func fitSquare(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	b := src.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), size)
	off := image.Pt((size-w)/2, (size-h)/2)
	draw.CatmullRom.Scale(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(w, h))}, src, b, draw.Over, nil)
	return dst
}

func rasterizeSVG(data []byte, w, h int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return img, nil
}
