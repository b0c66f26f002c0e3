package panel_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/chatpanel/internal/model/chat"
	"github.com/zhouzirui/chatpanel/internal/panel"
	"github.com/zhouzirui/chatpanel/internal/render"
	chatclient "github.com/zhouzirui/chatpanel/internal/service/chat"
)

type fakeView struct {
	mu      sync.Mutex
	events  []string
	nodes   []render.Node
	typing  bool
	cleared int
}

func (v *fakeView) ClearInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleared++
	v.events = append(v.events, "clear")
}

func (v *fakeView) Append(node render.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes = append(v.nodes, node)
	v.events = append(v.events, "append:"+string(node.Sender))
}

func (v *fakeView) ShowTyping() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typing = true
	v.events = append(v.events, "typing:on")
}

func (v *fakeView) HideTyping() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typing = false
	v.events = append(v.events, "typing:off")
}

type call struct {
	sessionID string
	message   string
}

type fakeSender struct {
	mu      sync.Mutex
	calls   []call
	reply   string
	err     error
	release chan struct{}
	advance func()
}

func (s *fakeSender) Send(ctx context.Context, sessionID, message string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{sessionID: sessionID, message: message})
	s.mu.Unlock()

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.advance != nil {
		s.advance()
	}
	return s.reply, s.err
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingRenderer keeps the messages it was asked to render.
type recordingRenderer struct {
	mu       sync.Mutex
	messages []chat.Message
}

func (r *recordingRenderer) Render(msg chat.Message) render.Node {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return render.Node{Sender: msg.Sender, Markup: msg.Text}
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC)}
}

func TestSubmitRejectsBlankMessages(t *testing.T) {
	sender := &fakeSender{reply: "unused"}
	view := &fakeView{}
	ctrl := panel.New(sender, "abc123", &recordingRenderer{}, view)

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := ctrl.Send(context.Background(), text); !errors.Is(err, panel.ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage for %q, got %v", text, err)
		}
	}

	if sender.callCount() != 0 {
		t.Fatalf("expected no requests, got %d", sender.callCount())
	}
	if len(view.events) != 0 {
		t.Fatalf("expected untouched view, got %v", view.events)
	}
}

func TestSuccessfulExchangeRendersUserThenBot(t *testing.T) {
	clock := newClock()
	sender := &fakeSender{reply: "Hi there!", advance: func() { clock.Advance(500 * time.Millisecond) }}
	view := &fakeView{}
	renderer := &recordingRenderer{}
	ctrl := panel.New(sender, "abc123", renderer, view, panel.WithClock(clock.Now))

	outcome, err := ctrl.Send(context.Background(), "  Hello ")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if outcome.Err != nil {
		t.Fatalf("unexpected exchange error: %v", outcome.Err)
	}

	if len(sender.calls) != 1 || sender.calls[0] != (call{sessionID: "abc123", message: "Hello"}) {
		t.Fatalf("unexpected requests %+v", sender.calls)
	}

	wantEvents := []string{"clear", "append:user", "typing:on", "typing:off", "append:bot"}
	if len(view.events) != len(wantEvents) {
		t.Fatalf("expected events %v, got %v", wantEvents, view.events)
	}
	for i := range wantEvents {
		if view.events[i] != wantEvents[i] {
			t.Fatalf("expected events %v, got %v", wantEvents, view.events)
		}
	}

	if len(renderer.messages) != 2 {
		t.Fatalf("expected 2 rendered messages, got %d", len(renderer.messages))
	}
	user, bot := renderer.messages[0], renderer.messages[1]
	if user.Sender != chat.SenderUser || user.Text != "Hello" || user.ResponseSeconds != nil {
		t.Fatalf("unexpected user message %+v", user)
	}
	if bot.Sender != chat.SenderBot || bot.Text != "Hi there!" {
		t.Fatalf("unexpected bot message %+v", bot)
	}
	if bot.ResponseSeconds == nil || *bot.ResponseSeconds != 0.5 {
		t.Fatalf("expected response time 0.5, got %v", bot.ResponseSeconds)
	}
	if got := render.TimeLine(bot); got != "3:04 PM • ⚡ 0.50s" {
		t.Fatalf("unexpected time line %q", got)
	}
	if ctrl.Busy() {
		t.Fatal("expected controller idle after exchange")
	}
}

func TestResponseTimeRoundsToTwoDecimals(t *testing.T) {
	clock := newClock()
	sender := &fakeSender{reply: "ok", advance: func() { clock.Advance(1234567 * time.Microsecond) }}
	renderer := &recordingRenderer{}
	ctrl := panel.New(sender, "s", renderer, &fakeView{}, panel.WithClock(clock.Now))

	outcome, err := ctrl.Send(context.Background(), "timing")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if outcome.Reply.ResponseSeconds == nil || *outcome.Reply.ResponseSeconds != 1.23 {
		t.Fatalf("expected 1.23, got %v", outcome.Reply.ResponseSeconds)
	}
}

func TestSubmitWhileInFlightIsRejected(t *testing.T) {
	sender := &fakeSender{reply: "done", release: make(chan struct{})}
	view := &fakeView{}
	ctrl := panel.New(sender, "s", &recordingRenderer{}, view)

	pending, err := ctrl.Submit("first")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	done := make(chan panel.Outcome, 1)
	go func() { done <- pending.Await(context.Background()) }()

	if _, err := ctrl.Submit("second"); !errors.Is(err, panel.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if !ctrl.Busy() {
		t.Fatal("expected controller busy")
	}

	close(sender.release)
	<-done

	if sender.callCount() != 1 {
		t.Fatalf("expected a single request, got %d", sender.callCount())
	}
	if view.cleared != 1 {
		t.Fatalf("expected input cleared once, got %d", view.cleared)
	}

	if _, err := ctrl.Send(context.Background(), "third"); err != nil {
		t.Fatalf("expected submit after completion to succeed, got %v", err)
	}
}

func TestConcurrentSubmitClaimsFlagOnce(t *testing.T) {
	sender := &fakeSender{reply: "ok", release: make(chan struct{})}
	ctrl := panel.New(sender, "s", &recordingRenderer{}, &fakeView{})

	var wg sync.WaitGroup
	accepted := make(chan *panel.Pending, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p, err := ctrl.Submit("hi"); err == nil {
				accepted <- p
			}
		}()
	}
	wg.Wait()
	close(accepted)

	var winners []*panel.Pending
	for p := range accepted {
		winners = append(winners, p)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", len(winners))
	}

	close(sender.release)
	winners[0].Await(context.Background())
}

func TestFailureRendersFallbackAndUnblocks(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	view := &fakeView{}
	renderer := &recordingRenderer{}
	ctrl := panel.New(sender, "s", renderer, view)

	outcome, err := ctrl.Send(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if outcome.Err == nil {
		t.Fatal("expected exchange error")
	}

	if len(renderer.messages) != 2 {
		t.Fatalf("expected user and fallback messages, got %d", len(renderer.messages))
	}
	fallback := renderer.messages[1]
	if fallback.Sender != chat.SenderBot || fallback.Text != chat.FallbackReply {
		t.Fatalf("unexpected fallback %+v", fallback)
	}
	if fallback.ResponseSeconds != nil {
		t.Fatal("fallback must not carry a response time")
	}
	if view.typing {
		t.Fatal("expected typing indicator hidden")
	}
	if ctrl.Busy() {
		t.Fatal("expected controller idle after failure")
	}

	sender.err = nil
	sender.reply = "back"
	if _, err := ctrl.Send(context.Background(), "retry"); err != nil {
		t.Fatalf("expected retry to be accepted, got %v", err)
	}
}

func TestAwaitHonoursContextCancellation(t *testing.T) {
	sender := &fakeSender{release: make(chan struct{})}
	renderer := &recordingRenderer{}
	ctrl := panel.New(sender, "s", renderer, &fakeView{})

	pending, err := ctrl.Submit("slow")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := pending.Await(ctx)
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", outcome.Err)
	}
	if outcome.Reply.Text != chat.FallbackReply {
		t.Fatalf("expected fallback reply, got %q", outcome.Reply.Text)
	}

	again := pending.Await(context.Background())
	if again.Reply.Text != outcome.Reply.Text || len(renderer.messages) != 2 {
		t.Fatal("expected second Await to reuse the first outcome")
	}
}

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
	rejected []string
}

func (o *countingObserver) ObserveRejection(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, reason)
}

func (o *countingObserver) ObserveExchange(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail++
		return
	}
	o.ok++
}

func TestObserverSeesEveryExchange(t *testing.T) {
	sender := &fakeSender{reply: "ok"}
	obs := &countingObserver{}
	ctrl := panel.New(sender, "s", &recordingRenderer{}, &fakeView{}, panel.WithObserver(obs))

	ctrl.Send(context.Background(), "one")
	sender.err = errors.New("down")
	ctrl.Send(context.Background(), "two")
	ctrl.Send(context.Background(), " ")

	if obs.ok != 1 || obs.fail != 1 {
		t.Fatalf("expected 1 ok and 1 failure, got %d/%d", obs.ok, obs.fail)
	}
	if len(obs.rejected) != 1 || obs.rejected[0] != "empty" {
		t.Fatalf("expected one empty rejection, got %v", obs.rejected)
	}
}

func TestObserverSeesBusyRejection(t *testing.T) {
	sender := &fakeSender{reply: "ok", release: make(chan struct{})}
	obs := &countingObserver{}
	ctrl := panel.New(sender, "s", &recordingRenderer{}, &fakeView{}, panel.WithObserver(obs))

	pending, err := ctrl.Submit("first")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if _, err := ctrl.Submit("second"); panel.RejectReason(err) != "busy" {
		t.Fatalf("expected busy rejection, got %v", err)
	}
	close(sender.release)
	pending.Await(context.Background())

	if len(obs.rejected) != 1 || obs.rejected[0] != "busy" {
		t.Fatalf("expected one busy rejection, got %v", obs.rejected)
	}
}

func TestGreetAppendsWelcome(t *testing.T) {
	renderer := &recordingRenderer{}
	view := &fakeView{}

	panel.New(&fakeSender{}, "s", renderer, view).Greet()
	if len(view.nodes) != 0 {
		t.Fatal("expected no greeting without a welcome message")
	}

	panel.New(&fakeSender{}, "s", renderer, view, panel.WithWelcome("Welcome!")).Greet()
	if len(renderer.messages) != 1 || renderer.messages[0].Sender != chat.SenderBot || renderer.messages[0].ResponseSeconds != nil {
		t.Fatalf("unexpected greeting %+v", renderer.messages)
	}
}

func TestUnexpectedBodyShapeStillRendersTimedReply(t *testing.T) {
	cases := map[string]string{
		`{"response":42}`: "42",
		`["x"]`:           "",
	}
	for body, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}))

		renderer := &recordingRenderer{}
		ctrl := panel.New(chatclient.NewClient(srv.URL, 0), "s", renderer, &fakeView{})
		outcome, err := ctrl.Send(context.Background(), "Hello")
		srv.Close()
		if err != nil {
			t.Fatalf("body %s: Send err: %v", body, err)
		}
		if outcome.Err != nil {
			t.Fatalf("body %s: unexpected exchange error: %v", body, outcome.Err)
		}

		bot := renderer.messages[len(renderer.messages)-1]
		if bot.Sender != chat.SenderBot || bot.Text != want {
			t.Fatalf("body %s: unexpected bot message %+v", body, bot)
		}
		if !bot.HasResponseTime() {
			t.Fatalf("body %s: expected a response time on the reply", body)
		}
	}
}
