// Package cli provides terminal output for boardctl: status messages, a
// spinner for slow calls and the grid table.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Printer writes status lines to a writer. Colors are used only when the
// writer is a terminal.
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	colorize bool
}

// NewPrinter returns a printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, renderer: lipgloss.NewRenderer(w), colorize: IsTerminal(w)}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Renderer returns the lipgloss renderer bound to the writer.
func (p *Printer) Renderer() *lipgloss.Renderer { return p.renderer }

// Colorize reports whether output is styled.
func (p *Printer) Colorize() bool { return p.colorize }

func (p *Printer) mark(symbol string, color lipgloss.Color) string {
	if !p.colorize {
		return symbol
	}
	return p.renderer.NewStyle().Foreground(color).Render(symbol)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.mark("✓", colorGreen), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.mark("✗", colorRed), fmt.Sprintf(format, args...))
}

// Warning prints a warning.
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.mark("⚠", colorYellow), fmt.Sprintf(format, args...))
}

// Info prints an informational message.
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.mark("ℹ", colorBlue), fmt.Sprintf(format, args...))
}

const (
	colorRed    = lipgloss.Color("1")
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
	colorBlue   = lipgloss.Color("4")
	colorCyan   = lipgloss.Color("6")
)

// Spinner animates a line while a request is in flight. It draws nothing
// unless the writer is a terminal.
type Spinner struct {
	frames  []string
	current int
	prefix  string
	printer *Printer
	mu      sync.Mutex
	active  bool
	done    chan struct{}
	started time.Time
}

// NewSpinner creates a spinner writing through p.
func (p *Printer) NewSpinner(prefix string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:  prefix,
		printer: p,
	}
}

// Start starts the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.started = time.Now()
	s.done = make(chan struct{})
	if !s.printer.colorize {
		return
	}

	go func(done <-chan struct{}) {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if s.active {
					s.render()
					s.current = (s.current + 1) % len(s.frames)
				}
				s.mu.Unlock()
			case <-done:
				return
			}
		}
	}(s.done)
}

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	if s.printer.colorize {
		fmt.Fprint(s.printer.w, "\r"+strings.Repeat(" ", len(s.prefix)+4)+"\r")
	}
}

// Success stops the spinner and prints message with the elapsed time.
func (s *Spinner) Success(message string) {
	s.Stop()
	s.printer.Success("%s (%s)", message, formatDuration(time.Since(s.started)))
}

// Error stops the spinner and prints message.
func (s *Spinner) Error(message string) {
	s.Stop()
	s.printer.Error("%s", message)
}

func (s *Spinner) render() {
	frame := s.printer.renderer.NewStyle().Foreground(colorCyan).Render(s.frames[s.current])
	fmt.Fprintf(s.printer.w, "\r%s %s", frame, s.prefix)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
