package icon

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirThemeLookup(t *testing.T) {
	dir := t.TempDir()
	exact := writeFile(t, filepath.Join(dir, "Papirus", "22x22", "apps", "app.png"), []byte("x"))
	writeFile(t, filepath.Join(dir, "Papirus", "48x48", "apps", "app.png"), []byte("x"))
	larger := writeFile(t, filepath.Join(dir, "Papirus", "32x32", "apps", "big.png"), []byte("x"))
	writeFile(t, filepath.Join(dir, "Papirus", "8x8", "apps", "big.png"), []byte("x"))
	scalable := writeFile(t, filepath.Join(dir, "Papirus", "scalable", "apps", "vector.svg"), []byte("<svg/>"))
	fallback := writeFile(t, filepath.Join(dir, "hicolor", "32x32", "apps", "legacy.png"), []byte("x"))
	flat := writeFile(t, filepath.Join(dir, "loose.png"), []byte("x"))

	theme := NewDirTheme("Papirus", []string{dir})

	tests := []struct {
		name string
		want string
	}{
		{"app", exact},
		{"big", larger},
		{"vector", scalable},
		{"legacy", fallback},
		{"loose", flat},
	}
	for _, tt := range tests {
		got, ok := theme.Lookup(tt.name, 22)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, ok := theme.Lookup("missing", 22)
	assert.False(t, ok)
}

func TestDirThemeWithSearchPath(t *testing.T) {
	base := NewDirTheme("", []string{"/a"})
	assert.Equal(t, "hicolor", base.Name())

	extended := base.WithSearchPath("/b").(*DirTheme)
	assert.Equal(t, []string{"/a", "/b"}, extended.SearchPaths())
	assert.Equal(t, []string{"/a"}, base.SearchPaths())

	assert.Same(t, base, base.WithSearchPath("/a"))
	assert.Same(t, base, base.WithSearchPath(""))
}

func TestDirSize(t *testing.T) {
	n, ok := dirSize("24x24")
	assert.True(t, ok)
	assert.Equal(t, 24, n)

	n, ok = dirSize("32x32@2")
	assert.True(t, ok)
	assert.Equal(t, 32, n)

	_, ok = dirSize("scalable")
	assert.False(t, ok)
	_, ok = dirSize("16x24")
	assert.False(t, ok)
}

func TestScaledSize(t *testing.T) {
	assert.Equal(t, 16, scaledSize(16, 0))
	assert.Equal(t, 32, scaledSize(16, 2))
	assert.Equal(t, 24, scaledSize(16, 1.5))
	assert.Equal(t, 1, scaledSize(0, 1))
}
