package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/sniclient/internal/item"
)

var activateOpts struct {
	secondary bool
	menu      bool
	x         int32
	y         int32
}

var scrollOpts struct {
	dx int32
	dy int32
}

var activateCmd = &cobra.Command{
	Use:   "activate <service> [path]",
	Short: "Activate an item",
	Long: `Invoke the primary action of an item, or its secondary action or context
menu.

If XDG_ACTIVATION_TOKEN is set, it is handed to the item before activation
so the application may raise its window.

Examples:
  sniclient activate org.kde.StatusNotifierItem-1234-1
  sniclient activate :1.42/StatusNotifierItem --secondary
  sniclient activate :1.42/StatusNotifierItem --menu --x 100 --y 20`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runActivate,
}

var scrollCmd = &cobra.Command{
	Use:   "scroll <service> [path]",
	Short: "Send a scroll event to an item",
	Long: `Send scroll deltas to an item. Horizontal and vertical deltas are sent as
separate events.

Examples:
  sniclient scroll org.kde.StatusNotifierItem-1234-1 --dy 120
  sniclient scroll :1.42/StatusNotifierItem --dx -1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runScroll,
}

func init() {
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(scrollCmd)

	activateCmd.Flags().BoolVar(&activateOpts.secondary, "secondary", false,
		"Invoke the secondary (middle click) action")
	activateCmd.Flags().BoolVar(&activateOpts.menu, "menu", false,
		"Ask the item to show its context menu")
	activateCmd.Flags().Int32Var(&activateOpts.x, "x", 0,
		"Pointer x position")
	activateCmd.Flags().Int32Var(&activateOpts.y, "y", 0,
		"Pointer y position")
	activateCmd.MarkFlagsMutuallyExclusive("secondary", "menu")

	scrollCmd.Flags().Int32Var(&scrollOpts.dx, "dx", 0,
		"Horizontal scroll delta")
	scrollCmd.Flags().Int32Var(&scrollOpts.dy, "dy", 0,
		"Vertical scroll delta")
}

// withReadyItem connects to the item named by args and runs fn once it is
// ready.
func withReadyItem(cmd *cobra.Command, args []string, fn func(ctx context.Context, it *item.Item) error) error {
	conn, err := connectBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), globalOpts.timeout)
	defer cancel()

	service, busName, path := targetArgs(args)
	it := openItem(ctx, conn, service, busName, path)
	defer it.Destroy()

	if err := waitReady(ctx, it); err != nil {
		return err
	}
	return fn(ctx, it)
}

func runActivate(cmd *cobra.Command, args []string) error {
	return withReadyItem(cmd, args, func(ctx context.Context, it *item.Item) error {
		timestamp := uint32(time.Now().UnixMilli())
		x, y := activateOpts.x, activateOpts.y

		var err error
		switch {
		case activateOpts.menu:
			err = it.ContextMenu(ctx, x, y)
		case activateOpts.secondary:
			err = it.SecondaryActivate(ctx, x, y, timestamp)
		default:
			if it.IsMenu() {
				logger.Debug("item only provides a menu", "item", it.UniqueID())
			}
			err = it.Activate(ctx, x, y, timestamp)
		}
		if errors.Is(err, item.ErrUnsupported) {
			return fmt.Errorf("%s does not support this action: %w", it.UniqueID(), err)
		}
		return err
	})
}

func runScroll(cmd *cobra.Command, args []string) error {
	if scrollOpts.dx == 0 && scrollOpts.dy == 0 {
		return errors.New("nothing to scroll, set --dx or --dy")
	}
	return withReadyItem(cmd, args, func(ctx context.Context, it *item.Item) error {
		return it.Scroll(ctx, scrollOpts.dx, scrollOpts.dy)
	})
}
