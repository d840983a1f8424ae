package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats records as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes records as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, records []Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(stripProperties(records, f.opts.ShowProperties))
}

// FormatSingle writes a single record as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, r *Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(stripProperties([]Record{*r}, f.opts.ShowProperties)[0])
}

// stripProperties drops the property snapshots unless they were asked for.
func stripProperties(records []Record, keep bool) []Record {
	if keep {
		return records
	}
	out := make([]Record, len(records))
	for i, r := range records {
		r.Properties = nil
		out[i] = r
	}
	return out
}
