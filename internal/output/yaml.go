package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats records as a YAML sequence.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes records as YAML.
func (f *YAMLFormatter) Format(w io.Writer, records []Record) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(stripProperties(records, f.opts.ShowProperties)); err != nil {
		return err
	}
	return encoder.Close()
}
