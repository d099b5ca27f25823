package database

// ScanRows reads at most limit rows (all rows when limit <= 0) from the
// result set and returns the column names plus one map per row, keyed by
// column name. Byte slices are returned as strings so results serialise as
// text.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes rows.
func ScanRows(rows Rows, limit int) ([]string, []map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, MapError(err, "failed to read column names")
	}

	result := make([]map[string]any, 0)

	for (limit <= 0 || len(result) < limit) && rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, MapError(err, "error during row iteration")
	}

	return columns, result, nil
}

// ScanValues reads at most limit rows as ordered value slices. The
// introspector uses it where column order matters more than names.
func ScanValues(rows Rows, limit int) ([]string, [][]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, MapError(err, "failed to read column names")
	}

	result := make([][]any, 0)
	for (limit <= 0 || len(result) < limit) && rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return nil, nil, err
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, MapError(err, "error during row iteration")
	}
	return columns, result, nil
}

// ScanStrings reads a single text column from every row.
func ScanStrings(rows Rows) ([]string, error) {
	defer rows.Close()

	var list []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, MapError(err, "failed to scan name")
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err, "error during row iteration")
	}
	return list, nil
}

func scanValues(rows Rows, n int) ([]any, error) {
	// Allocate scan targets as *any so the driver can write any type.
	dest := make([]any, n)
	destPtrs := make([]any, n)
	for i := range dest {
		destPtrs[i] = &dest[i]
	}

	if err := rows.Scan(destPtrs...); err != nil {
		return nil, MapError(err, "failed to scan row")
	}
	for i, v := range dest {
		if b, ok := v.([]byte); ok {
			dest[i] = string(b)
		}
	}
	return dest, nil
}
