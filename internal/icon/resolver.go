package icon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

// Request describes one icon to resolve.
type Request struct {
	Name      string
	Pixmaps   []snidbus.Pixmap
	ThemePath string
	Type      Type
	Size      int
	Scale     float64
}

// PixelSize returns the requested size in device pixels.
func (r Request) PixelSize() int {
	return scaledSize(r.Size, r.Scale)
}

// Resolver turns requests into images. Named icons are cached and loads
// are single-flight per slot type.
type Resolver struct {
	theme    Theme
	cache    *Cache
	slots    *Slots
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
	decode   func(ctx context.Context, path string, data []byte, size int) (image.Image, Header, error)
}

// NewResolver creates a resolver over theme, storing results in cache and
// tracking loads in slots.
func NewResolver(theme Theme, cache *Cache, slots *Slots, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		theme:    theme,
		cache:    cache,
		slots:    slots,
		logger:   logger,
		readFile: os.ReadFile,
		decode:   Decode,
	}
}

// Resolve returns the image for req. A named icon is tried first and the
// pixmaps are the fallback. ErrNoIcon means neither produced an image.
//
// A request whose load id is already in flight waits for that load and
// returns its image together with ErrPending.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.Name != "" {
		img, err := r.resolveName(ctx, req)
		switch {
		case err == nil || errors.Is(err, ErrPending):
			return img, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, ErrNoIcon):
			r.logger.Debug("icon not found", "name", req.Name, "type", req.Type, "size", req.PixelSize())
		default:
			r.logger.Warn("failed to load icon", "name", req.Name, "type", req.Type, "error", err)
		}
	}

	if len(req.Pixmaps) > 0 {
		img, err := r.resolvePixmap(ctx, req)
		if err != nil && errors.Is(err, ErrMalformed) {
			r.logger.Warn("failed to load icon pixmap", "type", req.Type, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrNoIcon, err)
		}
		return img, err
	}

	return nil, ErrNoIcon
}

func (r *Resolver) resolveName(ctx context.Context, req Request) (*Image, error) {
	size := req.PixelSize()
	id := ThemedLoadID(req.Type, req.Name, size, req.ThemePath)

	if img, ok := r.cache.Get(id); ok {
		return img, nil
	}

	f, leader := r.slots.Begin(ctx, req.Type, id)
	if !leader {
		return follow(ctx, f)
	}

	img, err := r.loadNamed(f.Context(), id, req, size)
	if err == nil {
		// A load cancelled by an invalidation must not repopulate the cache.
		if f.Context().Err() != nil {
			img.Dispose()
			img, err = nil, context.Cause(f.Context())
		} else {
			img = r.cache.Add(id, img)
		}
	}
	r.slots.Finish(f, img, err)
	return f.Wait(context.WithoutCancel(ctx))
}

func (r *Resolver) loadNamed(ctx context.Context, id string, req Request, size int) (*Image, error) {
	path := req.Name
	if !filepath.IsAbs(path) {
		theme := r.theme
		if req.ThemePath != "" {
			theme = theme.WithSearchPath(req.ThemePath)
		}

		var ok bool
		path, ok = theme.Lookup(req.Name+"-panel", size)
		if !ok {
			path, ok = theme.Lookup(req.Name, size)
		}
		if !ok {
			return nil, ErrNoIcon
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := r.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	bitmap, header, err := r.decode(ctx, path, data, size)
	if err != nil {
		return nil, err
	}

	img := NewImage(id, path, bitmap)
	img.Strip = header.Strip()
	return img, nil
}

func (r *Resolver) resolvePixmap(ctx context.Context, req Request) (*Image, error) {
	pixmap, ok := SelectPixmap(req.Pixmaps, req.PixelSize())
	if !ok {
		return nil, ErrNoIcon
	}
	id := PixmapLoadID(req.Type, pixmap.Width, pixmap.Height)

	f, leader := r.slots.Begin(ctx, req.Type, id)
	if !leader {
		return follow(ctx, f)
	}

	// Pixmaps with the same size may differ in content, so they are not cached.
	var img *Image
	bitmap, err := PixmapImage(f.Context(), pixmap)
	if err == nil {
		img = NewImage(id, "", bitmap)
	}
	r.slots.Finish(f, img, err)
	return f.Wait(context.WithoutCancel(ctx))
}

func follow(ctx context.Context, f *Flight) (*Image, error) {
	img, err := f.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return img, ErrPending
}
