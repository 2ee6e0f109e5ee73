package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ytd.app/adminctl/internal/core/domain"
	"ytd.app/adminctl/internal/core/ports"
)

// Toast colors of the dashboard, reused for terminal output
var (
	infoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3b82f6"))
	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f59e0b"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ef4444"))
)

// Console writes one styled line per notification
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console notifier writing to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Notify writes the message prefixed by its severity
func (c *Console) Notify(message string, severity domain.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", label(severity), message)
}

func label(severity domain.Severity) string {
	switch severity {
	case domain.SeverityError:
		return errorStyle.Render("✖ error")
	case domain.SeverityWarning:
		return warningStyle.Render("⚠ warning")
	}
	return infoStyle.Render("ℹ info")
}

// Discard drops every notification
type Discard struct{}

func (Discard) Notify(message string, severity domain.Severity) {}

// Func adapts a function to the Notifier interface
type Func func(message string, severity domain.Severity)

func (f Func) Notify(message string, severity domain.Severity) { f(message, severity) }

var (
	_ ports.Notifier = (*Console)(nil)
	_ ports.Notifier = Discard{}
	_ ports.Notifier = Func(nil)
)
