package database

import (
	"fmt"

	"sitekernel/pkg/execution"
	"sitekernel/pkg/table"
)

// formatResult converts a fragment's result table to the display form. A
// DML fragment's single modified_tuples row becomes RowsAffected.
func formatResult(result *table.Temp) QueryResult {
	if result == nil {
		return QueryResult{
			Success: true,
			Message: "Fragment returned no results",
			Rows:    [][]string{},
		}
	}

	if result.Schema().Equals(execution.ModifiedTuplesSchema) && result.RowCount() == 1 &&
		result.Schema().Columns[0].Name == execution.ModifiedTuplesSchema.Columns[0].Name {
		n := int(result.Rows()[0][0].Int())
		return QueryResult{
			Success:      true,
			RowsAffected: n,
			Message:      fmt.Sprintf("%d row(s) modified", n),
		}
	}
	return formatSelect(result)
}

// formatSelect converts a row-returning result to standard format
func formatSelect(result *table.Temp) QueryResult {
	schema := result.Schema()
	numFields := schema.NumFields()
	columns := make([]string, numFields)
	for i, c := range schema.Columns {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		columns[i] = name
	}

	rows := make([][]string, 0, result.RowCount())
	for _, tuple := range result.Rows() {
		row := make([]string, numFields)
		for i := 0; i < numFields; i++ {
			row[i] = tuple[i].String()
		}
		rows = append(rows, row)
	}

	return QueryResult{
		Success: true,
		Columns: columns,
		Rows:    rows,
		Message: fmt.Sprintf("%d row(s) returned", len(rows)),
	}
}
