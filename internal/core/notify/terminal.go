package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// TerminalPusher prints notifications as styled lines and mirrors the unread
// count into the terminal title.
type TerminalPusher struct {
	mu    sync.Mutex
	w     io.Writer
	bell  bool
	title string
	badge int
}

// NewTerminalPusher writes to w. When bell is set each push rings the
// terminal bell.
func NewTerminalPusher(w io.Writer, bell bool) *TerminalPusher {
	return &TerminalPusher{w: w, bell: bell, title: "dropzy", badge: -1}
}

// Render formats n the way the pusher prints it.
func Render(n Notification) string {
	color := n.Color
	if color == "" {
		color = DefaultColor
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(n.Title)
	when := ""
	if t, err := n.Time(); err == nil {
		when = lipgloss.NewStyle().Faint(true).Render(t.Local().Format("15:04:05")) + " "
	}
	return when + title + " " + n.Message
}

func (p *TerminalPusher) Push(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := Render(n)
	if p.bell {
		line = "\a" + line
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

// SetBadge rewrites the terminal title only when the count changes.
func (p *TerminalPusher) SetBadge(_ context.Context, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if count == p.badge {
		return nil
	}
	p.badge = count

	title := p.title
	if count > 0 {
		title = fmt.Sprintf("%s (%d)", p.title, count)
	}
	_, err := fmt.Fprintf(p.w, "\x1b]0;%s\a", title)
	return err
}
