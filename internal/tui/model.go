// Package tui is the terminal chat panel: a scrolling message list, a typing
// indicator and an input line driven by a panel.Controller.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/chatpanel/internal/panel"
	"github.com/zhouzirui/chatpanel/internal/render"
)

const chromeHeight = 4 // status line, typing line, input line, spacer

type exchangeDoneMsg struct {
	outcome panel.Outcome
}

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	typingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// ResizableRenderer is a renderer whose layout follows the terminal width.
type ResizableRenderer interface {
	render.Renderer
	SetWidth(width int)
}

// Option customises a Model.
type Option func(*Model)

// WithResizableRenderer makes window resizes re-layout the message list with r.
// r should be the renderer the controller was created with.
func WithResizableRenderer(r ResizableRenderer) Option {
	return func(m *Model) {
		m.renderer = r
	}
}

// Model is the bubbletea model of the terminal panel.
type Model struct {
	ctx      context.Context
	ctrl     *panel.Controller
	view     *View
	renderer ResizableRenderer
	input    textinput.Model
	spin     spinner.Model
	viewport viewport.Model
	status   string
}

// New builds the panel model. ctrl must have been created with view.
func New(ctx context.Context, ctrl *panel.Controller, view *View, width, height int, opts ...Option) Model {
	in := textinput.New()
	in.Placeholder = "Type your message..."
	in.Prompt = "> "
	in.CharLimit = 0
	in.Width = width - 4
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = typingStyle

	vp := viewport.New(width, max(height-chromeHeight, 3))

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		view:     view,
		input:    in,
		spin:     s,
		viewport: vp,
		status:   "session " + ctrl.SessionID() + " · enter to send · esc to quit",
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-4, 10)
		if m.renderer != nil {
			m.renderer.SetWidth(msg.Width)
			m.view.rerender(m.renderer)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case exchangeDoneMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.view.Typing() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	pending, err := m.ctrl.Submit(m.input.Value())
	if err != nil {
		// blank input or a reply still pending; the controller's observer counts it
		return m, nil
	}

	if m.view.takeClearInput() {
		m.input.Reset()
	}
	m.refresh()

	ctx := m.ctx
	return m, tea.Batch(
		func() tea.Msg {
			return exchangeDoneMsg{outcome: pending.Await(ctx)}
		},
		m.spin.Tick,
	)
}

// refresh copies the message list into the viewport and scrolls to the newest node.
func (m *Model) refresh() {
	m.viewport.SetContent(m.view.content())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	typing := ""
	if m.view.Typing() {
		typing = m.spin.View() + typingStyle.Render(" Bot is typing…")
	}
	return m.viewport.View() + "\n" +
		statusStyle.Render(m.status) + "\n" +
		typing + "\n" +
		m.input.View()
}
