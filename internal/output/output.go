// Package output provides output formatters for status notifier items.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/godbus/dbus/v5"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
	"github.com/jmylchreest/sniclient/internal/item"
)

// Formatter formats item records for output.
type Formatter interface {
	// Format writes formatted records to the writer.
	Format(w io.Writer, records []Record) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (FormatType, error) {
	switch f := FormatType(strings.ToLower(s)); f {
	case FormatPlain, FormatJSON, FormatYAML, FormatIDs:
		return f, nil
	case "":
		return FormatPlain, nil
	default:
		return "", fmt.Errorf("unknown format %q (use plain, json, yaml or ids)", s)
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template       string // Custom template for plain format
	ShowProperties bool   // Include the raw property snapshot
	ShowIcons      bool   // Include icon details in plain format
}

// DefaultFormatterOptions returns the defaults used by the CLI.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIcons: true,
	}
}

// Record is a flat, serializable view of one item.
type Record struct {
	ID             string         `json:"id" yaml:"id"`
	BusName        string         `json:"bus_name" yaml:"bus_name"`
	Path           string         `json:"path" yaml:"path"`
	ItemID         string         `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Title          string         `json:"title,omitempty" yaml:"title,omitempty"`
	Category       string         `json:"category,omitempty" yaml:"category,omitempty"`
	Status         string         `json:"status" yaml:"status"`
	Label          string         `json:"label,omitempty" yaml:"label,omitempty"`
	LabelGuide     string         `json:"label_guide,omitempty" yaml:"label_guide,omitempty"`
	OrderingIndex  int64          `json:"ordering_index,omitempty" yaml:"ordering_index,omitempty"`
	ToolTip        string         `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	AccessibleName string         `json:"accessible_name,omitempty" yaml:"accessible_name,omitempty"`
	Menu           string         `json:"menu,omitempty" yaml:"menu,omitempty"`
	Ready          bool           `json:"ready" yaml:"ready"`
	Activation     bool           `json:"activation" yaml:"activation"`
	CommandLine    string         `json:"command_line,omitempty" yaml:"command_line,omitempty"`
	Icons          []IconRecord   `json:"icons,omitempty" yaml:"icons,omitempty"`
	Properties     map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// IconRecord describes one icon slot of an item.
type IconRecord struct {
	Kind      string   `json:"kind" yaml:"kind"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	ThemePath string   `json:"theme_path,omitempty" yaml:"theme_path,omitempty"`
	Pixmaps   []string `json:"pixmaps,omitempty" yaml:"pixmaps,omitempty"`
}

// FromItem builds a record from the current state of an item.
// Properties are only filled in when withProperties is set.
func FromItem(it *item.Item, withProperties bool) Record {
	r := Record{
		ID:             it.UniqueID(),
		BusName:        it.BusName(),
		Path:           string(it.Path()),
		ItemID:         it.ItemID(),
		Title:          it.Title(),
		Category:       it.Category(),
		Status:         string(it.Status()),
		Label:          it.Label(),
		LabelGuide:     it.LabelGuide(),
		OrderingIndex:  it.OrderingIndex(),
		ToolTip:        it.ToolTip(),
		AccessibleName: it.AccessibleName(),
		Menu:           it.MenuPath(),
		Ready:          it.IsReady(),
		Activation:     it.SupportsActivation(),
		CommandLine:    it.CommandLine(),
	}

	icons := []struct {
		kind string
		spec item.IconSpec
	}{
		{"normal", it.Icon()},
		{"attention", it.AttentionIcon()},
		{"overlay", it.OverlayIcon()},
	}
	for _, icon := range icons {
		if icon.spec.Empty() {
			continue
		}
		r.Icons = append(r.Icons, IconRecord{
			Kind:      icon.kind,
			Name:      icon.spec.Name,
			ThemePath: icon.spec.ThemePath,
			Pixmaps:   PixmapSummaries(icon.spec.Pixmaps),
		})
	}

	if withProperties {
		r.Properties = Properties(it.Snapshot())
	}
	return r
}

// Properties converts a snapshot into plain values. Pixmaps are summarized
// and tooltips reduced to their title.
func Properties(s item.Snapshot) map[string]any {
	props := make(map[string]any, len(s))
	for name, v := range s {
		props[name] = propertyValue(name, v)
	}
	return props
}

func propertyValue(name string, v dbus.Variant) any {
	switch {
	case strings.HasSuffix(name, "Pixmap"):
		pixmaps, err := snidbus.ParsePixmaps(v.Value())
		if err != nil {
			return v.String()
		}
		return PixmapSummaries(pixmaps)
	case name == "ToolTip":
		return snidbus.ParseToolTip(v.Value())
	}

	switch value := v.Value().(type) {
	case dbus.ObjectPath:
		return string(value)
	case []byte:
		return humanize.Bytes(uint64(len(value)))
	default:
		return value
	}
}

// PixmapSummaries describes pixmaps as "WxH (size)", largest first.
func PixmapSummaries(pixmaps []snidbus.Pixmap) []string {
	if len(pixmaps) == 0 {
		return nil
	}
	sorted := make([]snidbus.Pixmap, len(pixmaps))
	copy(sorted, pixmaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size() > sorted[j].Size()
	})

	summaries := make([]string, len(sorted))
	for i, p := range sorted {
		summaries[i] = fmt.Sprintf("%dx%d (%s)", p.Width, p.Height, humanize.Bytes(uint64(len(p.Data))))
	}
	return summaries
}

// FormatField outputs a specific field from a record.
func FormatField(r *Record, field string) string {
	switch strings.ToLower(field) {
	case "id", "unique_id":
		return r.ID
	case "bus", "bus_name":
		return r.BusName
	case "path":
		return r.Path
	case "item_id", "itemid":
		return r.ItemID
	case "title":
		return r.Title
	case "status":
		return r.Status
	case "label":
		return r.Label
	case "tooltip":
		return r.ToolTip
	case "menu":
		return r.Menu
	case "icon":
		for _, icon := range r.Icons {
			if icon.Kind == "normal" {
				return icon.Name
			}
		}
		return ""
	case "command", "command_line":
		return r.CommandLine
	default:
		return r.Title
	}
}
