// Package report assembles analysis records into tabular and narrative output.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/croscope/croscope/models"
)

// Table is a rectangular view over a batch of analysis records.
// Columns are the union of all record keys: Platform and URL lead,
// the rest follow in deterministic record order with error trailing.
type Table struct {
	Columns []string
	Records []models.AnalysisRecord
}

// BuildTable computes the column set for a slice of records.
// Records with differing key sets are padded with empty cells on write.
func BuildTable(records []models.AnalysisRecord) *Table {
	columns := []string{models.KeyPlatform, models.KeyURL}
	seen := map[string]bool{
		models.KeyPlatform: true,
		models.KeyURL:      true,
	}
	for _, rec := range records {
		for _, key := range rec.Keys() {
			if seen[key] {
				continue
			}
			seen[key] = true
			columns = append(columns, key)
		}
	}
	return &Table{Columns: columns, Records: records}
}

// WriteCSV renders the table as CSV with a header row.
// Missing cells are written as empty strings.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	row := make([]string, len(t.Columns))
	for _, rec := range t.Records {
		for i, col := range t.Columns {
			row[i] = rec[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Markdown renders the table as a GitHub-flavored markdown table.
// Pipe characters inside cells are escaped so rows stay aligned.
func (t *Table) Markdown() string {
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(t.Columns, " | "))
	b.WriteString(" |\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, rec := range t.Records {
		b.WriteString("|")
		for _, col := range t.Columns {
			b.WriteString(" ")
			b.WriteString(escapeCell(rec[col]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
