package render

import (
	"log"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/chatpanel/internal/model/chat"
)

// Terminal renders messages as styled blocks for a terminal panel. Bot messages
// sit on the left with the robot avatar, user messages on the right.
type Terminal struct {
	mu       sync.RWMutex
	width    int
	format   Formatter
	markdown bool

	botBubble  lipgloss.Style
	userBubble lipgloss.Style
	timeStyle  lipgloss.Style
	avatar     lipgloss.Style
}

// TerminalOption customises a Terminal renderer.
type TerminalOption func(*Terminal)

// WithFormatter replaces the markdown formatter used for bubble bodies.
func WithFormatter(f Formatter) TerminalOption {
	return func(t *Terminal) {
		t.format = f
	}
}

// NewTerminal returns a renderer for a panel of the given width.
func NewTerminal(width int, opts ...TerminalOption) *Terminal {
	if width < 20 {
		width = 20
	}

	t := &Terminal{
		width: width,
		botBubble: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#FC8019", Dark: "#FF9F43"}).
			Padding(0, 1),
		userBubble: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}).
			Padding(0, 1),
		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		avatar: lipgloss.NewStyle().Padding(0, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.format == nil {
		t.markdown = true
		t.format = MarkdownFormatter(t.bubbleWidth())
	}
	return t
}

// SetWidth changes the panel width used by later Render calls. The default
// markdown formatter is rebuilt to wrap at the new bubble width.
func (t *Terminal) SetWidth(width int) {
	if width < 20 {
		width = 20
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if width == t.width {
		return
	}
	t.width = width
	if t.markdown {
		t.format = MarkdownFormatter(t.bubbleWidth())
	}
}

// Width returns the current panel width.
func (t *Terminal) Width() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.width
}

// MarkdownFormatter renders markdown with glamour, wrapping at width. When glamour
// cannot be initialised or fails on a message the raw text is used.
func MarkdownFormatter(width int) Formatter {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Printf("[render] markdown disabled: %v", err)
		return PlainFormatter
	}

	return func(text string) string {
		out, err := renderer.Render(text)
		if err != nil {
			log.Printf("[render] markdown failed, using raw text: %v", err)
			return text
		}
		return strings.Trim(out, "\n")
	}
}

// PlainFormatter leaves text untouched.
func PlainFormatter(text string) string {
	return text
}

func (t *Terminal) bubbleWidth() int {
	// avatar column plus bubble border and padding
	return t.width*3/4 - 8
}

// Render implements Renderer.
func (t *Terminal) Render(msg chat.Message) Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bubbleStyle := t.userBubble
	if msg.Sender == chat.SenderBot {
		bubbleStyle = t.botBubble
	}

	body := t.format(msg.Text)
	if lipgloss.Width(body) > t.bubbleWidth() {
		bubbleStyle = bubbleStyle.Width(t.bubbleWidth())
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		bubbleStyle.Render(body),
		t.timeStyle.Render(TimeLine(msg)),
	)
	avatar := t.avatar.Render(avatarFor(msg.Sender))

	var row string
	if msg.Sender == chat.SenderBot {
		row = lipgloss.JoinHorizontal(lipgloss.Top, avatar, content)
		row = lipgloss.PlaceHorizontal(t.width, lipgloss.Left, row)
	} else {
		content = lipgloss.NewStyle().Align(lipgloss.Right).Render(content)
		row = lipgloss.JoinHorizontal(lipgloss.Top, content, avatar)
		row = lipgloss.PlaceHorizontal(t.width, lipgloss.Right, row)
	}

	return Node{Sender: msg.Sender, Markup: row, Source: msg}
}
