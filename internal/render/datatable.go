package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/couchcryptid/census-flows/internal/domain"
)

// TableConfig configures the sortable, paginated HTML table.
type TableConfig struct {
	Title      string
	SortColumn int  // zero-based column to sort by
	Descending bool
	PageSize   int // rows per page, default 25
}

// DataTable renders headers and rows as an interactive DataTables page.
// Row widths must match the header width.
func DataTable(headers []string, rows [][]string, cfg TableConfig, path string) (Artifact, error) {
	if len(headers) == 0 {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: fmt.Errorf("no columns")}
	}
	for i, row := range rows {
		if len(row) != len(headers) {
			return Artifact{}, &domain.RenderError{
				Artifact: path,
				Err:      fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(headers)),
			}
		}
	}
	if cfg.SortColumn < 0 || cfg.SortColumn >= len(headers) {
		return Artifact{}, &domain.RenderError{
			Artifact: path,
			Err:      fmt.Errorf("sort column %d out of range", cfg.SortColumn),
		}
	}

	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 25
	}
	dir := "asc"
	if cfg.Descending {
		dir = "desc"
	}

	// DataTables expects arrays of cell strings; JSON-encode once here so the
	// template only splices.
	data, err := json.Marshal(rows)
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}

	var buf bytes.Buffer
	err = dataTableTmpl.Execute(&buf, map[string]any{
		"Title":    cfg.Title,
		"Headers":  headers,
		"Data":     template.JS(data),
		"SortCol":  cfg.SortColumn,
		"SortDir":  dir,
		"PageSize": pageSize,
	})
	if err != nil {
		return Artifact{}, &domain.RenderError{Artifact: path, Err: err}
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: KindHTML, Path: path}, nil
}

var dataTableTmpl = template.Must(template.New("datatable").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://code.jquery.com/jquery-3.7.1.min.js"></script>
<script src="https://cdn.datatables.net/1.13.8/js/jquery.dataTables.min.js"></script>
<link href="https://cdn.datatables.net/1.13.8/css/jquery.dataTables.min.css" rel="stylesheet">
<style>
  body { font-family: sans-serif; margin: 24px; }
</style>
</head>
<body>
<h2>{{.Title}}</h2>
<table id="records" class="display">
<thead>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
</thead>
</table>
<script>
$(function() {
  $('#records').DataTable({
    data: {{.Data}},
    order: [[{{.SortCol}}, '{{.SortDir}}']],
    pageLength: {{.PageSize}}
  });
});
</script>
</body>
</html>
`))
