// Package panel holds the chat panel controller: it validates what the user typed,
// keeps at most one request in flight, times the round trip and hands every
// message of the exchange to a View through a Renderer.
package panel

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhouzirui/chatpanel/internal/model/chat"
	"github.com/zhouzirui/chatpanel/internal/render"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a request is already in flight")
)

// Sender delivers one message to the chat backend and returns the reply text.
type Sender interface {
	Send(ctx context.Context, sessionID, message string) (string, error)
}

// View is the surface the controller draws on: an input field, a message list
// and a typing indicator. Append must keep the newest node visible.
type View interface {
	ClearInput()
	Append(node render.Node)
	ShowTyping()
	HideTyping()
}

// Observer is told about every finished exchange and every rejected
// submission. Used for metrics.
type Observer interface {
	ObserveExchange(elapsed time.Duration, err error)
	ObserveRejection(reason string)
}

// RejectReason names a Submit error: "busy" for ErrBusy, "empty" otherwise.
func RejectReason(err error) string {
	if errors.Is(err, ErrBusy) {
		return "busy"
	}
	return "empty"
}

// Controller drives one chat panel. Each instance has its own session and
// in-flight flag.
type Controller struct {
	sender    Sender
	sessionID string
	renderer  render.Renderer
	view      View
	now       func() time.Time
	observer  Observer
	welcome   string

	inFlight atomic.Bool
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithObserver registers an exchange observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithWelcome sets the greeting appended by Greet.
func WithWelcome(text string) Option {
	return func(c *Controller) {
		c.welcome = text
	}
}

// New wires a controller for sessionID.
func New(sender Sender, sessionID string, renderer render.Renderer, view View, opts ...Option) *Controller {
	c := &Controller{
		sender:    sender,
		sessionID: sessionID,
		renderer:  renderer,
		view:      view,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the session every request of this panel is sent with.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	return c.inFlight.Load()
}

// Greet appends the welcome message, if one is configured.
func (c *Controller) Greet() {
	if strings.TrimSpace(c.welcome) == "" {
		return
	}
	c.renderMessage(c.welcome, chat.SenderBot, nil)
}

// Submit starts an exchange for text. Blank text and submissions made while a
// request is in flight are rejected without touching the view. On success the
// input is cleared, the user's message is shown and the typing indicator is on;
// the returned Pending finishes the round trip.
func (c *Controller) Submit(text string) (*Pending, error) {
	message := strings.TrimSpace(text)
	if message == "" {
		return nil, c.reject(ErrEmptyMessage)
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, c.reject(ErrBusy)
	}

	c.view.ClearInput()
	c.renderMessage(message, chat.SenderUser, nil)
	c.view.ShowTyping()

	return &Pending{c: c, message: message, start: c.now()}, nil
}

// Send is Submit followed by Await.
func (c *Controller) Send(ctx context.Context, text string) (Outcome, error) {
	pending, err := c.Submit(text)
	if err != nil {
		return Outcome{}, err
	}
	return pending.Await(ctx), nil
}

// Outcome is the result of one exchange. Err is nil on success; Reply is the bot
// message that was appended in either case.
type Outcome struct {
	Reply chat.Message
	Err   error
}

// Pending is an exchange whose request has not been sent yet.
type Pending struct {
	c       *Controller
	message string
	start   time.Time

	once    sync.Once
	outcome Outcome
}

// Message returns the trimmed text being sent.
func (p *Pending) Message() string {
	return p.message
}

// Await sends the request and renders the reply or the fallback message. It
// blocks until the backend answers, fails or ctx is done. Later calls return the
// first outcome.
func (p *Pending) Await(ctx context.Context) Outcome {
	p.once.Do(func() {
		p.outcome = p.c.exchange(ctx, p.message, p.start)
	})
	return p.outcome
}

func (c *Controller) reject(err error) error {
	if c.observer != nil {
		c.observer.ObserveRejection(RejectReason(err))
	}
	return err
}

func (c *Controller) exchange(ctx context.Context, message string, start time.Time) Outcome {
	defer c.inFlight.Store(false)

	reply, err := c.sender.Send(ctx, c.sessionID, message)
	elapsed := c.now().Sub(start)
	if c.observer != nil {
		c.observer.ObserveExchange(elapsed, err)
	}

	c.view.HideTyping()
	if err != nil {
		log.Printf("[panel] session=%s request failed: %v", c.sessionID, err)
		msg := c.renderMessage(chat.FallbackReply, chat.SenderBot, nil)
		return Outcome{Reply: msg, Err: err}
	}

	responseTime := roundSeconds(elapsed)
	msg := c.renderMessage(reply, chat.SenderBot, &responseTime)
	return Outcome{Reply: msg}
}

func (c *Controller) renderMessage(text string, sender chat.Sender, responseTime *float64) chat.Message {
	msg := chat.Message{
		Text:            text,
		Sender:          sender,
		Timestamp:       c.now(),
		ResponseSeconds: responseTime,
	}
	c.view.Append(c.renderer.Render(msg))
	return msg
}

// roundSeconds converts d to seconds rounded to two decimals.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
