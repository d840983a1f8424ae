// Package icon resolves item icons from theme names, file paths and raw
// pixmaps, caches the results and composes them for display.
package icon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// Errors returned by icon resolution.
var (
	// ErrNoIcon means the request carried no usable icon.
	ErrNoIcon = errors.New("no icon available")
	// ErrPending means an identical load was already in flight; the result
	// belongs to its leader.
	ErrPending = errors.New("icon load already pending")
	// ErrSuperseded is the cancellation cause of a load replaced by a newer
	// request for the same slot.
	ErrSuperseded = fmt.Errorf("icon load superseded: %w", context.Canceled)
	// ErrMalformed means pixmap data does not match its dimensions.
	ErrMalformed = errors.New("malformed pixmap data")
)

// Type identifies which icon of an item is loaded.
type Type int

// Icon types.
const (
	TypeNormal Type = iota
	TypeAttention
	TypeOverlay
)

func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "normal"
	case TypeAttention:
		return "attention"
	case TypeOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// Slot returns the load slot of the type. Normal and attention icons are
// never shown at the same time, so they share one slot.
func (t Type) Slot() Type {
	if t == TypeAttention {
		return TypeNormal
	}
	return t
}

// ThemedLoadID returns the load id of a named icon.
func ThemedLoadID(t Type, name string, size int, themePath string) string {
	return fmt.Sprintf("%s:%s@%d:%s", t, name, size, themePath)
}

// PixmapLoadID returns the load id of a pixmap icon.
func PixmapLoadID(t Type, width, height int32) string {
	return fmt.Sprintf("%s@%dx%d", t, width, height)
}

// Image is a resolved icon. The displaying side marks it in use while it is
// shown; disposal of an image in use is deferred until it is released.
type Image struct {
	ID     string
	Path   string
	Strip  bool
	bitmap image.Image

	mu              sync.Mutex
	users           int
	disposed        bool
	disposeReleased bool
}

// NewImage wraps a decoded bitmap.
func NewImage(id, path string, bitmap image.Image) *Image {
	return &Image{ID: id, Path: path, bitmap: bitmap}
}

// Bitmap returns the decoded pixels, or nil once disposed.
func (img *Image) Bitmap() image.Image {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.bitmap
}

// Bounds returns the pixel bounds of the image.
func (img *Image) Bounds() image.Rectangle {
	if b := img.Bitmap(); b != nil {
		return b.Bounds()
	}
	return image.Rectangle{}
}

// Equal reports whether two images show the same icon. File backed images
// compare by id and path; pixmap images only equal themselves.
func (img *Image) Equal(other *Image) bool {
	if img == other {
		return true
	}
	if img == nil || other == nil {
		return false
	}
	return img.Path != "" && img.ID == other.ID && img.Path == other.Path
}

// Acquire marks the image in use.
func (img *Image) Acquire() {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.users++
}

// Release clears one in-use mark and performs a deferred disposal.
func (img *Image) Release() {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.users > 0 {
		img.users--
	}
	if img.users == 0 && img.disposeReleased {
		img.dispose()
	}
}

// InUse reports whether the image is currently displayed.
func (img *Image) InUse() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.users > 0
}

// Dispose drops the pixels, or schedules that for when the image is
// released if it is in use.
func (img *Image) Dispose() {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.users > 0 {
		img.disposeReleased = true
		return
	}
	img.dispose()
}

func (img *Image) dispose() {
	img.disposed = true
	img.disposeReleased = false
	img.bitmap = nil
}

// Disposed reports whether the pixels were dropped.
func (img *Image) Disposed() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.disposed
}
