package render

import (
	"bytes"
	"html/template"
	"log"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/zhouzirui/chatpanel/internal/model/chat"
)

var messageTemplate = template.Must(template.New("message").Parse(
	`<div class="message {{.Sender}}-message">` +
		`{{if .BotSide}}<div class="message-avatar"><i class="fas fa-robot"></i></div>{{end}}` +
		`<div class="message-content">` +
		`<div class="message-bubble">{{.Body}}</div>` +
		`<span class="message-time">{{.TimeLine}}</span>` +
		`</div>` +
		`{{if not .BotSide}}<div class="message-avatar"><i class="fas fa-user"></i></div>{{end}}` +
		`</div>`))

type messageView struct {
	Sender   chat.Sender
	BotSide  bool
	Body     template.HTML
	TimeLine string
}

// HTML renders messages as HTML fragments for the web panel. Bodies are markdown;
// raw HTML inside a message is dropped, never passed through.
type HTML struct {
	md goldmark.Markdown
}

// NewHTML returns an HTML renderer with GitHub flavoured markdown enabled.
func NewHTML() *HTML {
	return &HTML{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldhtml.WithHardWraps()),
		),
	}
}

// Format converts markdown text into safe HTML.
func (h *HTML) Format(text string) template.HTML {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		log.Printf("[render] markdown conversion failed, escaping raw text: %v", err)
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// Render implements Renderer.
func (h *HTML) Render(msg chat.Message) Node {
	view := messageView{
		Sender:   msg.Sender,
		BotSide:  msg.Sender == chat.SenderBot,
		Body:     h.Format(msg.Text),
		TimeLine: TimeLine(msg),
	}

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, view); err != nil {
		log.Printf("[render] message template failed: %v", err)
		return Node{Sender: msg.Sender, Markup: template.HTMLEscapeString(msg.Text), Source: msg}
	}
	return Node{Sender: msg.Sender, Markup: buf.String(), Source: msg}
}
