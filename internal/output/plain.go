package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"
)

// PlainFormatter formats records as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// templateData provides data for custom templates.
type templateData struct {
	Index int
	*Record
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"field": func(r *Record, name string) string {
			return FormatField(r, name)
		},
	}
}

// Format writes records as plain text.
func (f *PlainFormatter) Format(w io.Writer, records []Record) error {
	for i := range records {
		if err := f.formatRecord(w, i+1, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatRecord(w io.Writer, index int, r *Record) error {
	if f.template != nil {
		if err := f.template.Execute(w, templateData{Index: index, Record: r}); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	var sb strings.Builder

	title := r.Title
	if title == "" {
		title = r.ItemID
	}
	fmt.Fprintf(&sb, "%s  %s [%s]", r.ID, title, r.Status)
	if !r.Ready {
		sb.WriteString(" (not ready)")
	}
	sb.WriteString("\n")

	if r.Label != "" {
		fmt.Fprintf(&sb, "    label: %s\n", r.Label)
	}
	if r.ToolTip != "" {
		fmt.Fprintf(&sb, "    tooltip: %s\n", r.ToolTip)
	}
	if r.Menu != "" {
		fmt.Fprintf(&sb, "    menu: %s\n", r.Menu)
	}
	if r.CommandLine != "" {
		fmt.Fprintf(&sb, "    command: %s\n", r.CommandLine)
	}

	if f.opts.ShowIcons {
		for _, icon := range r.Icons {
			fmt.Fprintf(&sb, "    %s icon: %s", icon.Kind, describeIcon(icon))
			sb.WriteString("\n")
		}
	}

	if f.opts.ShowProperties && len(r.Properties) > 0 {
		names := make([]string, 0, len(r.Properties))
		for name := range r.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "    %s = %v\n", name, r.Properties[name])
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func describeIcon(icon IconRecord) string {
	var parts []string
	if icon.Name != "" {
		parts = append(parts, icon.Name)
	}
	if icon.ThemePath != "" {
		parts = append(parts, "in "+icon.ThemePath)
	}
	if len(icon.Pixmaps) > 0 {
		parts = append(parts, "pixmaps "+strings.Join(icon.Pixmaps, ", "))
	}
	return strings.Join(parts, " ")
}
