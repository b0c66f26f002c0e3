package chat

import "time"

// Sender 标识消息来源。
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// FallbackReply is shown in place of a reply whenever the exchange fails.
const FallbackReply = "Sorry, connection issue. Try again."

// Message is one rendered turn of the panel. It is never stored by the controller.
type Message struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	// ResponseSeconds is set only on bot replies that completed a round trip.
	ResponseSeconds *float64 `json:"responseSeconds,omitempty"`
}

// HasResponseTime reports whether the message carries a latency annotation.
func (m Message) HasResponseTime() bool {
	return m.Sender == SenderBot && m.ResponseSeconds != nil
}

// Request is the body posted to {API_URL}/chat.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Response is the body returned by {API_URL}/chat. Only Response is read by the panel.
type Response struct {
	Response     string   `json:"response"`
	Timestamp    string   `json:"timestamp,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	ResponseTime *float64 `json:"response_time,omitempty"`
}
