package icon

import (
	"image"

	"golang.org/x/image/draw"
)

// Composite is a base icon with an optional emblem.
type Composite struct {
	Base   *Image
	Emblem *Image
}

// Equal reports whether both composites show the same images.
func (c *Composite) Equal(other *Composite) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Base.Equal(other.Base) && c.Emblem.Equal(other.Emblem)
}

// Empty reports whether there is nothing to show.
func (c *Composite) Empty() bool {
	return c == nil || c.Base == nil
}

// compose builds the next composite. An emblem equal to the previous one is
// kept so consumers see no churn.
func compose(prev *Composite, base, emblem *Image) *Composite {
	if prev != nil && prev.Emblem.Equal(emblem) {
		emblem = prev.Emblem
	}
	return &Composite{Base: base, Emblem: emblem}
}

// Render draws the composite into one bitmap of size×size, or the strip's
// native size, with the emblem in the bottom right corner.
func (c *Composite) Render(size int) image.Image {
	if c.Empty() {
		return nil
	}
	base := c.Base.Bitmap()
	if base == nil {
		return nil
	}

	bounds := base.Bounds()
	if !c.Base.Strip {
		bounds = image.Rect(0, 0, size, size)
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.CatmullRom.Scale(dst, dst.Bounds(), base, base.Bounds(), draw.Over, nil)

	if c.Emblem == nil {
		return dst
	}
	emblem := c.Emblem.Bitmap()
	if emblem == nil {
		return dst
	}

	side := OverlaySize(min(dst.Bounds().Dx(), dst.Bounds().Dy()))
	at := image.Pt(dst.Bounds().Dx()-side, dst.Bounds().Dy()-side)
	draw.CatmullRom.Scale(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))},
		emblem, emblem.Bounds(), draw.Over, nil)
	return dst
}

// OverlaySize returns the emblem size for an icon of size pixels.
func OverlaySize(size int) int {
	return int(float64(size) / 1.6)
}
