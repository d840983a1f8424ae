package main

import (
	"context"
	"os"
	"sync"

	"github.com/spf13/cobra"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
	"github.com/jmylchreest/sniclient/internal/item"
	"github.com/jmylchreest/sniclient/internal/output"
)

var listOpts struct {
	format     string
	template   string
	properties bool
	all        bool // Include items that never became ready
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items registered with the StatusNotifierWatcher",
	Long: `List the items registered with the StatusNotifierWatcher.

Every item is connected to and given --timeout to publish its mandatory
properties. Items that are not ready by then are skipped unless --all is set.

Examples:
  # Human readable listing
  sniclient list

  # Item ids only, e.g. for scripting
  sniclient list --format ids

  # Everything including the raw property snapshot
  sniclient list --format yaml --properties

  # Custom line format
  sniclient list --template '{{.ItemID}} {{.Status}}'`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, ids)")
	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Go template for plain output")
	listCmd.Flags().BoolVar(&listOpts.properties, "properties", false,
		"Include the raw property snapshot")
	listCmd.Flags().BoolVar(&listOpts.all, "all", false,
		"Include items that did not become ready")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOpts.format)
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

	names, err := snidbus.RegisteredItems(ctx, conn)
	if err != nil {
		return err
	}

	records := collectRecords(ctx, names, func(name string) *item.Item {
		busName, path := snidbus.SplitItemName(name)
		return openItem(ctx, conn, name, busName, path)
	})

	opts := output.DefaultFormatterOptions()
	opts.Template = listOpts.template
	opts.ShowProperties = listOpts.properties
	return output.NewFormatter(format, opts).Format(os.Stdout, records)
}

// collectRecords opens every item concurrently and records the ones that
// became ready in watcher order.
func collectRecords(ctx context.Context, names []string, open func(string) *item.Item) []output.Record {
	waitCtx, cancel := context.WithTimeout(ctx, globalOpts.timeout)
	defer cancel()

	results := make([]*output.Record, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			it := open(name)
			defer it.Destroy()

			if err := waitReady(waitCtx, it); err != nil {
				logger.Debug("skipping item", "name", name, "error", err)
				if !listOpts.all || it.Destroyed() {
					return
				}
			}
			r := output.FromItem(it, listOpts.properties)
			results[i] = &r
		}()
	}
	wg.Wait()

	records := make([]output.Record, 0, len(names))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	if len(records) < len(names) {
		logger.Info("some items were skipped", "listed", len(records), "registered", len(names))
	}
	return records
}
