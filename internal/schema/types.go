package schema

import "strings"

// sampleRows is how many rows each table contributes to a summary.
const sampleRows = 3

// TableBlock is one table of a summary. Columns is nil when the columns
// could not be read; Rows holds rendered cells, already escaped.
type TableBlock struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Summary is the LLM-facing description of a database. The zero value is
// the empty summary and renders as "".
type Summary struct {
	Label  string
	Tables []TableBlock
}

// Empty reports whether the summary could not be produced at all.
func (s Summary) Empty() bool {
	return s.Label == ""
}

// String renders the summary as a markdown-like document: a type line, then
// for every table a heading, a header row, a separator and the sample rows.
func (s Summary) String() string {
	if s.Empty() {
		return ""
	}

	var parts []string
	for _, t := range s.Tables {
		parts = append(parts, "### "+t.Name+"\n")
		if len(t.Columns) == 0 {
			parts = append(parts, "_No columns found._\n\n")
			continue
		}

		parts = append(parts, renderRow(t.Columns))
		sep := make([]string, len(t.Columns))
		for i := range sep {
			sep[i] = "---"
		}
		parts = append(parts, renderRow(sep))

		if len(t.Rows) == 0 {
			// Empty tables keep the same shape as populated ones.
			blank := make([]string, len(t.Columns))
			for range sampleRows {
				parts = append(parts, renderRow(blank))
			}
		}
		for _, r := range t.Rows {
			parts = append(parts, renderRow(r))
		}
		parts = append(parts, "\n")
	}

	return "Database type: " + s.Label + "\n\n" + strings.Join(parts, "\n")
}

func renderRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
