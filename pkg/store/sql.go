package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// maxParams keeps every statement under the Postgres extended-protocol
// limit of 65535 bind parameters.
const maxParams = 65000

// insertSQL builds a multirow INSERT with $N placeholders. exprs, when
// non-nil, wraps the placeholder for a column in an SQL expression
// ("ST_GeomFromText(%s)"); an empty entry leaves the placeholder bare.
func insertSQL(table string, cols []string, exprs []string, nrows int, conflict string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ","))
	b.WriteString(") VALUES ")

	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := range cols {
			if c > 0 {
				b.WriteString(",")
			}
			ph := "$" + strconv.Itoa(n)
			n++
			if exprs != nil && exprs[c] != "" {
				fmt.Fprintf(&b, exprs[c], ph)
			} else {
				b.WriteString(ph)
			}
		}
		b.WriteString(")")
	}
	if conflict != "" {
		b.WriteString(" ")
		b.WriteString(conflict)
	}
	return b.String()
}

// placeholders returns "$1,$2,...,$n".
func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// execInsert writes rows to table in chunks that respect the parameter
// limit. Every row must have len(cols) values.
func execInsert(ctx context.Context, tx *sql.Tx, table string, cols []string, exprs []string, conflict string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	per := maxParams / len(cols)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]
		query := insertSQL(table, cols, exprs, len(chunk), conflict)
		args := make([]any, 0, len(chunk)*len(cols))
		for _, r := range chunk {
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}
