package query

import (
	"encoding/json"

	"github.com/koustreak/aigis/internal/errs"
)

// Outcome is the result of one statement: rows for statements that return
// them, a row count for everything else.
type Outcome struct {
	Returned bool
	Columns  []string
	Rows     []map[string]any
	// RowCount is nil when the driver cannot tell.
	RowCount *int64
}

type rowsJSON struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type countJSON struct {
	RowCount *int64 `json:"rowcount"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.Returned {
		return json.Marshal(countJSON{RowCount: o.RowCount})
	}
	cols, rows := o.Columns, o.Rows
	if cols == nil {
		cols = []string{}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return json.Marshal(rowsJSON{Columns: cols, Rows: rows})
}

// Text serialises the outcome as compact JSON, the form the agent reads.
func (o Outcome) Text() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "result could not be serialised", err)
	}
	return string(b), nil
}
