package icon

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

// conversionChunk is the number of bytes converted per task. It must be a
// multiple of 4.
const conversionChunk = 1024

// SelectPixmap picks the smallest pixmap with both sides at least size, or
// the largest pixmap when none is big enough.
func SelectPixmap(pixmaps []snidbus.Pixmap, size int) (snidbus.Pixmap, bool) {
	var best, largest snidbus.Pixmap
	foundBest, foundLargest := false, false

	for _, p := range pixmaps {
		if p.Width <= 0 || p.Height <= 0 {
			continue
		}
		area := int(p.Width) * int(p.Height)

		if !foundLargest || area > int(largest.Width)*int(largest.Height) {
			largest = p
			foundLargest = true
		}

		if int(p.Width) >= size && int(p.Height) >= size {
			if !foundBest || area < int(best.Width)*int(best.Height) {
				best = p
				foundBest = true
			}
		}
	}

	if foundBest {
		return best, true
	}
	return largest, foundLargest
}

// ConvertARGB converts premultiplied ARGB pixels to premultiplied RGBA. The
// buffer is converted in chunks that run concurrently; ctx is checked before
// each chunk.
func ConvertARGB(ctx context.Context, data []byte) ([]byte, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of pixels", ErrMalformed, len(data))
	}

	out := make([]byte, len(data))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for start := 0; start < len(data); start += conversionChunk {
		end := min(start+conversionChunk, len(data))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i += 4 {
				out[i] = data[i+1]
				out[i+1] = data[i+2]
				out[i+2] = data[i+3]
				out[i+3] = data[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PixmapImage builds an RGBA bitmap from a pixmap.
func PixmapImage(ctx context.Context, p snidbus.Pixmap) (*image.RGBA, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrMalformed, p.Width, p.Height)
	}
	size := p.Size()
	if len(p.Data) < size {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrMalformed, p.Width, p.Height, size, len(p.Data))
	}

	pix, err := ConvertARGB(ctx, p.Data[:size])
	if err != nil {
		return nil, err
	}

	return &image.RGBA{
		Pix:    pix,
		Stride: int(p.Width) * 4,
		Rect:   image.Rect(0, 0, int(p.Width), int(p.Height)),
	}, nil
}
