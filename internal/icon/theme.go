package icon

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Theme looks up named icons.
type Theme interface {
	// Lookup returns the file of the icon closest to size pixels.
	Lookup(name string, size int) (string, bool)
	// WithSearchPath returns a theme that also searches dir.
	WithSearchPath(dir string) Theme
}

var iconExtensions = []string{".png", ".svg"}

const fallbackTheme = "hicolor"

// DirTheme searches freedesktop style icon directories by layout, without
// reading index.theme files.
type DirTheme struct {
	name        string
	searchPaths []string
}

// NewDirTheme creates a theme named name over the given base directories.
func NewDirTheme(name string, searchPaths []string) *DirTheme {
	if name == "" {
		name = fallbackTheme
	}
	return &DirTheme{name: name, searchPaths: slices.Clone(searchPaths)}
}

// Name returns the theme name.
func (t *DirTheme) Name() string {
	return t.name
}

// SearchPaths returns the base directories searched.
func (t *DirTheme) SearchPaths() []string {
	return slices.Clone(t.searchPaths)
}

// WithSearchPath returns a copy of the theme with dir appended.
func (t *DirTheme) WithSearchPath(dir string) Theme {
	if dir == "" || slices.Contains(t.searchPaths, dir) {
		return t
	}
	return &DirTheme{name: t.name, searchPaths: append(slices.Clone(t.searchPaths), dir)}
}

// Lookup searches the theme, then hicolor, then flat directories.
func (t *DirTheme) Lookup(name string, size int) (string, bool) {
	themes := []string{t.name}
	if t.name != fallbackTheme {
		themes = append(themes, fallbackTheme)
	}

	for _, theme := range themes {
		for _, base := range t.searchPaths {
			if path, ok := lookupThemeDir(filepath.Join(base, theme), name, size); ok {
				return path, true
			}
		}
	}

	// Item theme paths often hold a theme tree or loose files directly.
	for _, base := range t.searchPaths {
		if path, ok := lookupThemeDir(base, name, size); ok {
			return path, true
		}
		if path, ok := lookupFlat(base, name); ok {
			return path, true
		}
	}
	return "", false
}

func lookupFlat(dir, name string) (string, bool) {
	for _, ext := range iconExtensions {
		path := filepath.Join(dir, name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// lookupThemeDir searches the size directories of one theme, closest size
// first and scalable icons right after an exact match.
func lookupThemeDir(dir, name string, size int) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	type candidate struct {
		dir      string
		distance int
	}
	var candidates []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, ok := dirSize(entry.Name())
		switch {
		case entry.Name() == "scalable":
			candidates = append(candidates, candidate{entry.Name(), 1})
		case ok && n == size:
			candidates = append(candidates, candidate{entry.Name(), 0})
		case ok && n > size:
			candidates = append(candidates, candidate{entry.Name(), 2 * (n - size)})
		case ok:
			// Upscaling looks worse than downscaling.
			candidates = append(candidates, candidate{entry.Name(), 2*(size-n) + 1})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	for _, c := range candidates {
		sizeDir := filepath.Join(dir, c.dir)
		if path, ok := lookupFlat(sizeDir, name); ok {
			return path, true
		}
		contexts, err := os.ReadDir(sizeDir)
		if err != nil {
			continue
		}
		for _, ctxDir := range contexts {
			if !ctxDir.IsDir() {
				continue
			}
			if path, ok := lookupFlat(filepath.Join(sizeDir, ctxDir.Name()), name); ok {
				return path, true
			}
		}
	}
	return "", false
}

// dirSize parses "NxN" and "NxN@S" directory names.
func dirSize(name string) (int, bool) {
	name, _, _ = strings.Cut(name, "@")
	w, h, ok := strings.Cut(name, "x")
	if !ok || w != h {
		return 0, false
	}
	n, err := strconv.Atoi(w)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// scaledSize returns size × scale rounded to whole pixels.
func scaledSize(size int, scale float64) int {
	if scale <= 0 {
		scale = 1
	}
	return max(1, int(math.Round(float64(size)*scale)))
}
