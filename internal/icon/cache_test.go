package icon

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(id string) *Image {
	return NewImage(id, "/icons/"+id+".png", image.NewRGBA(image.Rect(0, 0, 4, 4)))
}

func TestCacheAddGet(t *testing.T) {
	c := NewCache(nil)
	img := testImage("a")

	assert.Same(t, img, c.Add("a", img))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, img, got)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheAddKeepsExisting(t *testing.T) {
	c := NewCache(nil)
	first := testImage("a")
	second := testImage("a")

	c.Add("a", first)
	assert.Same(t, first, c.Add("a", second))
	assert.True(t, second.Disposed())
	assert.False(t, first.Disposed())
	assert.Equal(t, 1, c.Len())
}

func TestCacheClear(t *testing.T) {
	c := NewCache(nil)
	idle := testImage("idle")
	shown := testImage("shown")
	c.Add("idle", idle)
	c.Add("shown", shown)
	shown.Acquire()

	c.Clear()

	assert.Zero(t, c.Len())
	assert.True(t, idle.Disposed())
	assert.False(t, shown.Disposed(), "images in use survive until released")
	assert.NotNil(t, shown.Bitmap())

	shown.Release()
	assert.True(t, shown.Disposed())
	assert.Nil(t, shown.Bitmap())
}

func TestCacheGC(t *testing.T) {
	c := NewCache(nil)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	old := testImage("old")
	busy := testImage("busy")
	fresh := testImage("fresh")
	c.Add("old", old)
	c.Add("busy", busy)
	busy.Acquire()

	now = now.Add(20 * time.Second)
	c.Add("fresh", fresh)

	assert.Equal(t, 1, c.GC(10*time.Second))
	assert.True(t, old.Disposed())

	_, ok := c.Get("busy")
	assert.True(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok)
}

func TestCacheRun(t *testing.T) {
	c := NewCache(nil)
	c.Add("a", testImage("a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond, 0)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestCacheDestroy(t *testing.T) {
	c := NewCache(nil)
	c.Add("a", testImage("a"))

	c.Destroy()
	assert.Zero(t, c.Len())

	img := testImage("b")
	assert.Same(t, img, c.Add("b", img))
	assert.Zero(t, c.Len())
}

func TestImageEqual(t *testing.T) {
	a := testImage("a")
	a2 := testImage("a")
	pix := NewImage("normal@1x1", "", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	pix2 := NewImage("normal@1x1", "", image.NewRGBA(image.Rect(0, 0, 1, 1)))

	assert.True(t, a.Equal(a2))
	assert.False(t, a.Equal(testImage("b")))
	assert.True(t, pix.Equal(pix))
	assert.False(t, pix.Equal(pix2))

	var none *Image
	assert.True(t, none.Equal(nil))
	assert.False(t, none.Equal(a))
}
