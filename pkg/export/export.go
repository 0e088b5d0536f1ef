// Package export renders report tables as downloadable CSV or printable HTML.
package export

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"
)

// Column maps a row key to its header label.
type Column struct {
	Key   string
	Label string
}

// Row is one flat report record.
type Row map[string]interface{}

// Filename builds the download name: <report-name>-<ISO-date>.<ext>.
func Filename(report string, ext string, t time.Time) string {
	return fmt.Sprintf("%s-%s.%s", report, t.UTC().Format("2006-01-02"), ext)
}

// WriteCSV writes the rows as CSV with a header line. Every value round-trips
// through FormatCell so re-parsing the output yields the same column values.
func WriteCSV(w io.Writer, cols []Column, rows []Row) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			record[i] = FormatCell(row[c.Key])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f0f0f0; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.Generated}}</p>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

// WriteHTML writes the rows as a printable HTML document, the input to the
// browser's print-to-PDF path.
func WriteHTML(w io.Writer, title string, cols []Column, rows []Row) error {
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Label
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(cols))
		for j, c := range cols {
			cells[i][j] = FormatCell(row[c.Key])
		}
	}

	return htmlTemplate.Execute(w, map[string]interface{}{
		"Title":     title,
		"Generated": time.Now().UTC().Format(time.RFC3339),
		"Headers":   headers,
		"Rows":      cells,
	})
}

// FormatCell renders one cell value as a string.
func FormatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
