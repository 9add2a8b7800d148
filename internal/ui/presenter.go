package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/clustervision/lunactl/internal/luna"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// maxCellWidth truncates list cells; Show never truncates.
const maxCellWidth = 48

// Presenter renders daemon results for the terminal.
type Presenter struct {
	Out    io.Writer
	Err    io.Writer
	Format string
	Theme  Theme

	styles Styles
}

// NewPresenter returns a Presenter. Unknown formats fall back to table and
// unknown themes to the default theme.
func NewPresenter(out, errOut io.Writer, format, theme string) *Presenter {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case FormatJSON, FormatYAML:
	default:
		format = FormatTable
	}
	th := GetTheme(theme)
	return &Presenter{
		Out:    out,
		Err:    errOut,
		Format: format,
		Theme:  th,
		styles: th.Styles(),
	}
}

// List renders records keyed by name, one row per record sorted by name.
func (p *Presenter) List(resource string, columns []string, records map[string]map[string]any) error {
	if p.Format != FormatTable {
		return p.Raw(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(p.Out, p.styles.MutedText.Render(fmt.Sprintf("No %s entries found.", resource)))
		return nil
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := append([]string{"name"}, columns...)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		row := []string{name}
		for _, col := range columns {
			row = append(row, truncate(FormatValue(records[name][col]), maxCellWidth))
		}
		rows = append(rows, row)
	}
	p.renderTable(headers, rows)
	return nil
}

// Show renders one record as a field/value table with sorted field names.
func (p *Presenter) Show(resource, name string, record map[string]any) error {
	if p.Format != FormatTable {
		if name == "" {
			return p.Raw(record)
		}
		return p.Raw(map[string]any{name: record})
	}
	if record == nil {
		if name == "" {
			return fmt.Errorf("%s not found", resource)
		}
		return fmt.Errorf("%s %q not found", resource, name)
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, FormatValue(record[key])})
	}
	title := resource
	if name != "" {
		title = resource + " " + name
	}
	fmt.Fprintln(p.Out, p.styles.AccentText.Render(title))
	p.renderTable([]string{"field", "value"}, rows)
	return nil
}

// Table renders preformatted rows under headers. Cells are truncated like
// List cells. Empty rows print a "No <resource> entries found." note.
func (p *Presenter) Table(resource string, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(p.Out, p.styles.MutedText.Render(fmt.Sprintf("No %s entries found.", resource)))
		return
	}
	clipped := make([][]string, len(rows))
	for i, row := range rows {
		clipped[i] = make([]string, len(row))
		for j, cell := range row {
			clipped[i][j] = truncate(cell, maxCellWidth)
		}
	}
	p.renderTable(headers, clipped)
}

// Raw renders v as indented JSON, or YAML when the format is yaml. Table
// format uses JSON.
func (p *Presenter) Raw(v any) error {
	switch p.Format {
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = p.Out.Write(data)
		return err
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(p.Out, string(data))
		return err
	}
}

// Success prints a confirmation line.
func (p *Presenter) Success(msg string) {
	fmt.Fprintln(p.Out, p.styles.SuccessText.Render(msg))
}

// Progress prints one intermediate progress line.
func (p *Presenter) Progress(line string) {
	fmt.Fprintln(p.Out, p.styles.InfoText.Render(line))
}

// Error prints msg to the error stream.
func (p *Presenter) Error(msg string) {
	fmt.Fprintln(p.Err, p.styles.DangerText.Render("ERROR :: "+msg))
}

// APIError prints a daemon error with its status code, or any other error
// verbatim.
func (p *Presenter) APIError(err error) {
	if err == nil {
		return
	}
	var apiErr *luna.APIError
	if errors.As(err, &apiErr) {
		p.Error(apiErr.Error())
		return
	}
	p.Error(err.Error())
}

func (p *Presenter) renderTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.styles.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.Header
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) {
				return p.styles.CellStyle(rows[row][col])
			}
			return p.styles.Cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.Out, t.Render())
}

// FormatValue renders a decoded JSON value for a table cell. Scalars are
// printed plainly; arrays and objects as compact JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
