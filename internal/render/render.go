// Package render turns chat messages into display nodes. The panel controller only
// sees the Renderer contract, so the same exchange logic drives the terminal panel
// and the server-rendered web panel.
package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zhouzirui/chatpanel/internal/model/chat"
)

// Node is a rendered message ready to be appended to a message list. Source is
// the message it was built from, kept so a resized view can render it again.
type Node struct {
	Sender chat.Sender
	Markup string
	Source chat.Message
}

// Renderer builds one Node per message.
type Renderer interface {
	Render(msg chat.Message) Node
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(msg chat.Message) Node

// Render calls f(msg).
func (f RendererFunc) Render(msg chat.Message) Node {
	return f(msg)
}

// Formatter converts raw message text into the body markup of a bubble.
type Formatter func(text string) string

const (
	botAvatar  = "🤖"
	userAvatar = "👤"
)

// ClockText formats the time of day the way the panel shows it, e.g. "3:04 PM".
func ClockText(ts time.Time) string {
	return ts.Format("3:04 PM")
}

// ResponseTimeText formats a latency annotation, e.g. "0.50".
func ResponseTimeText(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 2, 64)
}

// TimeLine is the text under a bubble: the time of day, plus the response time
// for bot replies that carry one.
func TimeLine(msg chat.Message) string {
	clock := ClockText(msg.Timestamp)
	if !msg.HasResponseTime() {
		return clock
	}
	return fmt.Sprintf("%s • ⚡ %ss", clock, ResponseTimeText(*msg.ResponseSeconds))
}

func avatarFor(sender chat.Sender) string {
	if sender == chat.SenderBot {
		return botAvatar
	}
	return userAvatar
}
