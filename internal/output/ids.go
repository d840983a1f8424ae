package output

import (
	"fmt"
	"io"
)

// IDsFormatter outputs just the unique item ids, one per line.
// Useful for piping to other commands (e.g., sniclient dump).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes item ids to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, records []Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.ID); err != nil {
			return err
		}
	}
	return nil
}
