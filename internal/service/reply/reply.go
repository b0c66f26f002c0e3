// Package reply generates the dev backend's answers: a canned echo, or an LLM
// reply through an eino chain when Ark credentials are configured.
package reply

import (
	"context"
	"fmt"

	"github.com/zhouzirui/chatpanel/internal/service/history"
)

// Generator produces the bot's reply to message given the session history
// (which already ends with message).
type Generator interface {
	Reply(ctx context.Context, sessionID, message string, turns []history.Turn) (string, error)
}

// Echo answers every message with a fixed test response.
type Echo struct{}

// Reply implements Generator.
func (Echo) Reply(_ context.Context, _ string, message string, _ []history.Turn) (string, error) {
	return fmt.Sprintf("You said: %s. (This is a test response)", message), nil
}
