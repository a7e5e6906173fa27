// Package ui provides CLI user interface utilities
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Colors for terminal output
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	// Foreground colors
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
	Gray   = "\033[90m"

	// Bright colors
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightCyan   = "\033[96m"
)

// Icons for various UI elements
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconArrow   = "→"
	IconBullet  = "•"
	IconRocket  = "🚀"
	IconClock   = "⏱"
)

// Printer handles formatted output
type Printer struct {
	NoColor bool
	Out     io.Writer
}

// NewPrinter creates a new printer writing to stdout
func NewPrinter() *Printer {
	// Check if NO_COLOR env is set
	noColor := os.Getenv("NO_COLOR") != ""
	return &Printer{NoColor: noColor, Out: os.Stdout}
}

func (p *Printer) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p *Printer) println(text string) {
	fmt.Fprintln(p.out(), text)
}

// color applies color if enabled
func (p *Printer) color(c, text string) string {
	if p.NoColor {
		return text
	}
	return c + text + Reset
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println(p.color(Green, IconSuccess+" "+msg))
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println(p.color(Red, IconError+" "+msg))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println(p.color(Yellow, IconWarning+" "+msg))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println(p.color(Blue, IconInfo+" "+msg))
}

// Dim prints dimmed text
func (p *Printer) Dim(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println(p.color(Gray, msg))
}

// Plain prints text as is
func (p *Printer) Plain(format string, args ...interface{}) {
	p.println(fmt.Sprintf(format, args...))
}

// Title prints a title
func (p *Printer) Title(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println("")
	p.println(p.color(Bold+BrightCyan, msg))
	p.println(p.color(Dim, strings.Repeat("─", utf8.RuneCountInString(msg))))
}

// Section prints a section header
func (p *Printer) Section(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.println("")
	p.println(p.color(Bold+White, msg))
}

// Field prints an aligned label/value pair of a detail view
func (p *Printer) Field(label string, value interface{}) {
	fmt.Fprintf(p.out(), "  %-16s %s\n", label+":", p.color(BrightCyan, fmt.Sprint(value)))
}

// Table prints rows under a header, padding every column to its widest cell.
// Cells wider than 48 runes are cut.
func (p *Printer) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		p.Dim("No records.")
		return
	}

	const maxCell = 48
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i >= len(row) {
				continue
			}
			row[i] = truncate(row[i], maxCell)
			if n := utf8.RuneCountInString(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	p.println(p.color(Bold, formatRow(headers, widths)))
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	p.println(p.color(Dim, strings.Repeat("─", total)))
	for _, row := range rows {
		p.println(formatRow(row, widths))
	}
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteString(cell)
		if i < len(widths)-1 {
			b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(cell)+2))
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

// Progress prints "done/total" with a bar
func (p *Printer) Progress(label string, done, total int) {
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	fmt.Fprintf(p.out(), "  %s %s %s%d/%d%s\n",
		label, p.ProgressBar(pct, 20), dimIf(p), done, total, resetIf(p))
}

func dimIf(p *Printer) string {
	if p.NoColor {
		return ""
	}
	return Dim
}

func resetIf(p *Printer) string {
	if p.NoColor {
		return ""
	}
	return Reset
}

// ProgressBar creates a progress bar
func (p *Printer) ProgressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)

	color := Red
	if pct >= 70 {
		color = Green
	} else if pct >= 30 {
		color = Yellow
	}

	return p.color(color, bar)
}

// Divider prints a divider line
func (p *Printer) Divider() {
	p.println(p.color(Dim, strings.Repeat("─", 50)))
}

// NewLine prints a new line
func (p *Printer) NewLine() {
	p.println("")
}
