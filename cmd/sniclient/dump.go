package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/sniclient/internal/output"
)

var dumpOpts struct {
	format     string
	properties bool
}

var dumpCmd = &cobra.Command{
	Use:   "dump <service> [path]",
	Short: "Print the state of one item",
	Long: `Connect to one item, wait until it is ready and print its state.

The item is addressed by its registered service name, optionally followed by
its object path, or by a watcher entry of the form <bus name>/<object path>.
If the item does not become ready within --timeout, whatever is known so far
is printed.

Examples:
  sniclient dump org.kde.StatusNotifierItem-1234-1
  sniclient dump :1.42/org/ayatana/NotificationItem/nm_applet --format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dumpOpts.format, "format", "f", "yaml",
		"Output format (yaml, json, plain)")
	dumpCmd.Flags().BoolVar(&dumpOpts.properties, "properties", true,
		"Include the raw property snapshot")
}

func runDump(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(dumpOpts.format)
	if err != nil {
		return err
	}

	conn, err := connectBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	service, busName, path := targetArgs(args)
	it := openItem(ctx, conn, service, busName, path)
	defer it.Destroy()

	waitCtx, waitCancel := context.WithTimeout(ctx, globalOpts.timeout)
	defer waitCancel()
	if err := waitReady(waitCtx, it); err != nil {
		if it.Destroyed() {
			return err
		}
		logger.Warn("item is not ready, dumping partial state", "error", err)
	}

	opts := output.DefaultFormatterOptions()
	opts.ShowProperties = dumpOpts.properties
	return output.NewFormatter(format, opts).Format(os.Stdout, []output.Record{output.FromItem(it, dumpOpts.properties)})
}
