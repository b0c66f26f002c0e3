package tui

import (
	"strings"
	"sync"

	"github.com/zhouzirui/chatpanel/internal/render"
)

// View is the panel.View of the terminal panel. The controller writes to it from
// the bubbletea update loop and from exchange commands, so it is locked.
type View struct {
	mu         sync.Mutex
	nodes      []render.Node
	typing     bool
	clearInput bool
}

// NewView returns an empty message list.
func NewView() *View {
	return &View{}
}

func (v *View) ClearInput() {
	v.mu.Lock()
	v.clearInput = true
	v.mu.Unlock()
}

func (v *View) Append(node render.Node) {
	v.mu.Lock()
	v.nodes = append(v.nodes, node)
	v.mu.Unlock()
}

func (v *View) ShowTyping() {
	v.mu.Lock()
	v.typing = true
	v.mu.Unlock()
}

func (v *View) HideTyping() {
	v.mu.Lock()
	v.typing = false
	v.mu.Unlock()
}

// Typing reports whether the typing indicator is visible.
func (v *View) Typing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.typing
}

// Len returns the number of rendered messages.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.nodes)
}

// takeClearInput reports and resets a pending input clear.
func (v *View) takeClearInput() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	pending := v.clearInput
	v.clearInput = false
	return pending
}

// rerender rebuilds every node from its source message.
func (v *View) rerender(r render.Renderer) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, node := range v.nodes {
		v.nodes[i] = r.Render(node.Source)
	}
}

// content joins all nodes for the viewport.
func (v *View) content() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	parts := make([]string, 0, len(v.nodes))
	for _, node := range v.nodes {
		parts = append(parts, node.Markup)
	}
	return strings.Join(parts, "\n\n")
}
