// Package export renders tenant rows as CSV or XLSX documents and reads
// CSV imports.
package export

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Field is one named cell of a row
type Field struct {
	Name  string
	Value interface{}
}

// Row keeps its fields in column order
type Row []Field

func (r Row) Names() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Name
	}
	return out
}

// FormatValue renders a cell as text. Times use RFC3339, nil is empty.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case *int64:
		if t == nil {
			return ""
		}
		return cast.ToString(*t)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	}
	return cast.ToString(v)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatCSV writes a header line from the first row's field names followed
// by one line per row. Every cell is quoted; lines are joined with "\n".
// Zero rows produce an empty document.
func FormatCSV(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	names := rows[0].Names()
	lines := make([]string, 0, len(rows)+1)

	header := make([]string, len(names))
	for i, n := range names {
		header[i] = quote(n)
	}
	lines = append(lines, strings.Join(header, ","))

	for _, row := range rows {
		cells := make([]string, len(names))
		for i := range names {
			if i < len(row) {
				cells[i] = quote(FormatValue(row[i].Value))
			} else {
				cells[i] = quote("")
			}
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}
