package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

type Theme struct {
	Assistant lipgloss.Style
	Info      lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Progress  lipgloss.Style
	Heading   lipgloss.Style
	Prompt    lipgloss.Style
}

func DefaultTheme() *Theme {
	return &Theme{
		Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		Info:      lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true),
		Progress:  lipgloss.NewStyle().Foreground(lipgloss.Color("#D787FF")),
		Heading: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7D7")).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("#00D7D7")),
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")).Bold(true),
	}
}

func (t *Theme) style(s Style) lipgloss.Style {
	switch s {
	case StyleAssistant:
		return t.Assistant
	case StyleInfo:
		return t.Info
	case StyleSuccess:
		return t.Success
	case StyleWarning:
		return t.Warning
	case StyleError:
		return t.Error
	case StyleProgress:
		return t.Progress
	case StyleHeading:
		return t.Heading
	default:
		return lipgloss.NewStyle()
	}
}

// Terminal reads lines from in and writes styled text to out.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	theme *Theme
}

func NewTerminal(in io.Reader, out io.Writer, theme *Theme) *Terminal {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Terminal{in: bufio.NewReader(in), out: out, theme: theme}
}

func (t *Terminal) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, t.theme.Prompt.Render(prompt)+" ")
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line = strings.TrimSpace(line); line != "" {
				return line, nil
			}
			return "", ErrClosed
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) Say(style Style, msg string) {
	fmt.Fprintln(t.out, t.theme.style(style).Render(msg))
}

func (t *Terminal) Table(header []string, rows [][]string) {
	table := tablewriter.NewTable(t.out)
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	table.Header(headerCells...)
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		if err := table.Append(cells...); err != nil {
			slog.Warn("Failed to append table row", "error", err)
		}
	}
	if err := table.Render(); err != nil {
		slog.Warn("Failed to render table", "error", err)
	}
}
