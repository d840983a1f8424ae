package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/sniclient/internal/icon"
	"github.com/jmylchreest/sniclient/internal/item"
	"github.com/jmylchreest/sniclient/internal/settings"
)

var watchOpts struct {
	noIcons    bool
	noSettings bool
}

var watchCmd = &cobra.Command{
	Use:   "watch <service> [path]",
	Short: "Follow the events of one item",
	Long: `Connect to one item and print its events until interrupted.

Icons are resolved the way a tray host does and every rendered icon is
reported. Changes to the config file or the icon theme directories are
picked up while watching.

Examples:
  sniclient watch org.kde.StatusNotifierItem-1234-1
  sniclient watch :1.42/org/ayatana/NotificationItem/nm_applet --no-icons`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchOpts.noIcons, "no-icons", false,
		"Do not resolve icons")
	watchCmd.Flags().BoolVar(&watchOpts.noSettings, "no-settings-watch", false,
		"Do not reload the config file or follow icon theme changes")
}

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	eventStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	iconStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	goneStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runWatch(cmd *cobra.Command, args []string) error {
	conn, err := connectBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	service, busName, path := targetArgs(args)
	it := newItem(conn, service, busName, path)
	printer := &eventPrinter{w: os.Stdout}
	it.Subscribe(printer.onItemEvent)
	settingsStore.Subscribe(printer.onSettingsChange)

	if !watchOpts.noIcons {
		node := icon.NewNode(it, settingsStore, printer,
			icon.WithNodeLogger(logger),
			icon.WithCacheTimings(settingsStore.Timings()),
		)
		node.Start()
		defer node.Destroy()
	}

	if !watchOpts.noSettings {
		watcher, err := settings.NewWatcher(settingsStore, globalOpts.configPath, logger)
		if err != nil {
			return fmt.Errorf("failed to create settings watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start settings watcher: %w", err)
		}
		defer func() {
			if err := watcher.Stop(); err != nil {
				logger.Warn("failed to stop settings watcher", "error", err)
			}
		}()
	}

	it.Start(ctx)

	<-it.Context().Done()
	if ctx.Err() != nil {
		return nil
	}
	return errItemGone
}

// eventPrinter writes item events, settings changes and rendered icons.
type eventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *eventPrinter) printf(style lipgloss.Style, name, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := timeStyle.Render(time.Now().Format("15:04:05.000")) + " " +
		style.Render(fmt.Sprintf("%-16s", name))
	if format != "" {
		line += " " + fmt.Sprintf(format, args...)
	}
	fmt.Fprintln(p.w, line)
}

func field(name string, value any) string {
	return labelStyle.Render(name+"=") + fmt.Sprint(value)
}

func (p *eventPrinter) onItemEvent(it *item.Item, event item.Event) {
	var details []string
	style := eventStyle

	switch event {
	case item.EventReady:
		details = append(details,
			field("id", it.ItemID()),
			field("title", it.Title()),
			field("status", it.Status()),
			field("menu", it.MenuPath()),
		)
	case item.EventIcon:
		spec := it.Icon()
		details = append(details, field("name", spec.Name), field("pixmaps", len(spec.Pixmaps)))
		if attention := it.AttentionIcon(); !attention.Empty() {
			details = append(details, field("attention", attention.Name))
		}
	case item.EventOverlayIcon:
		spec := it.OverlayIcon()
		details = append(details, field("name", spec.Name), field("pixmaps", len(spec.Pixmaps)))
	case item.EventLabel:
		details = append(details, field("label", it.Label()))
	case item.EventMenu:
		details = append(details, field("menu", it.MenuPath()))
	case item.EventAccessibleName:
		details = append(details, field("name", it.AccessibleName()))
	case item.EventStatus:
		details = append(details, field("status", it.Status()))
	case item.EventNameOwnerChanged:
		details = append(details, field("ready", it.IsReady()))
	case item.EventDestroy:
		style = goneStyle
	}

	p.printf(style, event.String(), "%s", strings.Join(details, " "))
}

func (p *eventPrinter) onSettingsChange(c settings.Change) {
	p.printf(labelStyle, "settings", "%s", field("changed", c))
}

// SetIcon implements icon.Renderer.
func (p *eventPrinter) SetIcon(c *icon.Composite) {
	if c == nil {
		p.printf(iconStyle, "rendered", "no icon")
		return
	}

	bounds := c.Base.Bounds()
	details := []string{
		field("size", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())),
		field("source", describeImage(c.Base)),
	}
	if c.Base.Strip {
		details = append(details, field("strip", true))
	}
	if c.Emblem != nil {
		details = append(details, field("emblem", describeImage(c.Emblem)))
	}
	p.printf(iconStyle, "rendered", "%s", strings.Join(details, " "))
}

func describeImage(img *icon.Image) string {
	if img.Path != "" {
		return img.Path
	}
	return img.ID
}
