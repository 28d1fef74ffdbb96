package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"delta-strangler/internal/models"
)

// style is an ANSI SGR sequence.
type style string

const (
	styleReset  style = "\033[0m"
	styleRed    style = "\033[31m"
	styleGreen  style = "\033[32m"
	styleYellow style = "\033[33m"
	styleCyan   style = "\033[36m"
	styleBold   style = "\033[1m"
	styleDim    style = "\033[2m"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Output writes command results as plain text, coloured text or JSON.
type Output struct {
	writer   io.Writer
	jsonMode bool
	color    bool
}

// NewOutput creates an Output for cmd. Colour is used only when writing
// straight to an interactive terminal.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{
		writer:   w,
		jsonMode: jsonMode,
		color:    !jsonMode && w == os.Stdout && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	enc := json.NewEncoder(o.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Success(format string, args ...interface{}) { o.line(styleGreen, format, args...) }
func (o *Output) Error(format string, args ...interface{})   { o.line(styleRed, format, args...) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(styleYellow, format, args...) }
func (o *Output) Bold(format string, args ...interface{})    { o.line(styleBold, format, args...) }
func (o *Output) Dim(format string, args ...interface{})     { o.line(styleDim, format, args...) }

func (o *Output) line(s style, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(s, fmt.Sprintf(format, args...)))
}

// paint wraps text in s when colour is on.
func (o *Output) paint(s style, text string) string {
	if !o.color || text == "" {
		return text
	}
	return string(s) + text + string(styleReset)
}

func (o *Output) Green(text string) string  { return o.paint(styleGreen, text) }
func (o *Output) Red(text string) string    { return o.paint(styleRed, text) }
func (o *Output) Yellow(text string) string { return o.paint(styleYellow, text) }
func (o *Output) Cyan(text string) string   { return o.paint(styleCyan, text) }

// PnL formats rupee P&L with sign, green for profit and red for loss.
func (o *Output) PnL(pnl float64) string {
	text := FormatPnL(pnl)
	switch {
	case pnl > 0:
		return o.Green(text)
	case pnl < 0:
		return o.Red(text)
	}
	return text
}

// Trigger colours an exit trigger by severity.
func (o *Output) Trigger(t models.ExitTrigger) string {
	switch t {
	case models.TriggerSoftSL, models.TriggerHardCap:
		return o.Red(string(t))
	case models.TriggerManualExit, models.TriggerInterrupted:
		return o.Yellow(string(t))
	default:
		return o.Green(string(t))
	}
}

// Source tags a data source, highlighting estimates.
func (o *Output) Source(s models.DataSource) string {
	tag := "[" + string(s) + "]"
	if s.IsEstimate() {
		return o.Yellow(tag)
	}
	return o.Cyan(tag)
}

// Table lays out rows in aligned columns. Cell widths ignore colour codes.
type Table struct {
	out     *Output
	headers []string
	rows    [][]string
	right   map[int]bool
}

// NewTable creates a table with the given column headers.
func NewTable(out *Output, headers ...string) *Table {
	return &Table{out: out, headers: headers, right: map[int]bool{}}
}

// AlignRight right-aligns the given column indexes.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the header, a rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := t.widths()

	t.out.Println(t.out.paint(styleBold, t.format(t.headers, widths)))
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	t.out.Println(t.out.paint(styleDim, strings.Join(rule, "  ")))
	for _, row := range t.rows {
		t.out.Println(t.format(row, widths))
	}
}

func (t *Table) widths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], len(stripANSI(row[i])))
		}
	}
	return widths
}

func (t *Table) format(cells []string, widths []int) string {
	parts := make([]string, 0, len(widths))
	for i := 0; i < len(cells) && i < len(widths); i++ {
		if t.right[i] {
			parts = append(parts, PadLeft(cells[i], widths[i]))
		} else {
			parts = append(parts, PadRight(cells[i], widths[i]))
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// stripANSI removes colour codes so padding measures visible width.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
