package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
	"github.com/jmylchreest/sniclient/internal/icon"
)

// settleDelay is how long the rendered icon must stay unchanged before it
// is written, so a late overlay is not missed.
const settleDelay = 200 * time.Millisecond

var iconOpts struct {
	out   string
	size  int
	scale float64
}

var iconCmd = &cobra.Command{
	Use:   "icon <service> [path]",
	Short: "Resolve the icon of one item and write it as PNG",
	Long: `Resolve the icon of one item the way a tray host does and write it as PNG.

Themed icon names are looked up in the configured icon theme, pixmaps are
used as a fallback and the overlay icon is drawn as an emblem. Passive items
show no icon.

Examples:
  sniclient icon org.kde.StatusNotifierItem-1234-1 --out tray.png
  sniclient icon :1.42/StatusNotifierItem --size 32 --scale 2 --out - | feh -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIcon,
}

func init() {
	rootCmd.AddCommand(iconCmd)

	iconCmd.Flags().StringVarP(&iconOpts.out, "out", "o", "icon.png",
		"Output file, - for stdout")
	iconCmd.Flags().IntVar(&iconOpts.size, "size", 0,
		"Icon size in logical pixels (default: configured size)")
	iconCmd.Flags().Float64Var(&iconOpts.scale, "scale", 1,
		"Display scale factor")
}

func runIcon(cmd *cobra.Command, args []string) error {
	if iconOpts.size > 0 {
		next := *cfg
		next.Icons.Size = iconOpts.size
		if err := next.Validate(); err != nil {
			return err
		}
		settingsStore.Apply(&next)
	}
	settingsStore.SetScaleFactor(iconOpts.scale)

	conn, err := connectBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), globalOpts.timeout)
	defer cancel()

	service, busName, path := targetArgs(args)
	it := newItem(conn, service, busName, path)
	renderer := newLatestRenderer()
	node := icon.NewNode(it, settingsStore, renderer,
		icon.WithNodeLogger(logger),
		icon.WithCacheTimings(settingsStore.Timings()),
	)
	node.Start()
	defer node.Destroy()

	it.Start(ctx)
	defer it.Destroy()

	if err := waitReady(ctx, it); err != nil {
		return err
	}
	if it.Status() == snidbus.StatusPassive {
		return fmt.Errorf("%s is passive and shows no icon", it.UniqueID())
	}

	c, err := renderer.settle(ctx)
	if err != nil {
		return fmt.Errorf("no icon rendered for %s: %w", it.UniqueID(), err)
	}
	if c == nil {
		return fmt.Errorf("%s has no icon", it.UniqueID())
	}

	img := c.Render(c.Base.Bounds().Dx())
	if img == nil {
		return errors.New("rendered icon was released")
	}

	var w io.Writer = os.Stdout
	if iconOpts.out != "-" {
		f, err := os.Create(iconOpts.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	counter := &countingWriter{w: w}
	if err := png.Encode(counter, img); err != nil {
		return fmt.Errorf("failed to encode icon: %w", err)
	}

	b := img.Bounds()
	logger.Info("icon written",
		"out", iconOpts.out,
		"size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"bytes", humanize.Bytes(uint64(counter.n)),
	)
	return nil
}

// latestRenderer keeps the most recent composite handed to it.
type latestRenderer struct {
	mu      sync.Mutex
	latest  *icon.Composite
	changed chan struct{}
}

func newLatestRenderer() *latestRenderer {
	return &latestRenderer{changed: make(chan struct{}, 1)}
}

// SetIcon implements icon.Renderer.
func (r *latestRenderer) SetIcon(c *icon.Composite) {
	r.mu.Lock()
	r.latest = c
	r.mu.Unlock()

	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// settle waits for the first composite and returns it once no newer one
// arrived for settleDelay.
func (r *latestRenderer) settle(ctx context.Context) (*icon.Composite, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.changed:
	}

	timer := time.NewTimer(settleDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.changed:
			timer.Reset(settleDelay)
		case <-timer.C:
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.latest, nil
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
