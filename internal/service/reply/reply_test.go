package reply

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/chatpanel/internal/service/history"
)

func TestEchoReply(t *testing.T) {
	got, err := Echo{}.Reply(context.Background(), "s", "Hello", nil)
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if got != "You said: Hello. (This is a test response)" {
		t.Fatalf("unexpected echo %q", got)
	}
}

func TestBuildHistoryMessagesDropsCurrentQuery(t *testing.T) {
	turns := []history.Turn{
		{Role: history.RoleUser, Content: "Hi"},
		{Role: history.RoleAssistant, Content: "Hello!"},
		{Role: history.RoleUser, Content: "Track my order"},
	}

	messages := buildHistoryMessages(turns)
	if len(messages) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(messages))
	}
	if messages[0].Role != schema.User || messages[1].Role != schema.Assistant {
		t.Fatalf("unexpected roles %s %s", messages[0].Role, messages[1].Role)
	}
}

func TestBuildHistoryMessagesKeepsRecent(t *testing.T) {
	var turns []history.Turn
	for i := 0; i < 30; i++ {
		role := history.RoleUser
		if i%2 == 1 {
			role = history.RoleAssistant
		}
		turns = append(turns, history.Turn{Role: role, Content: "x"})
	}

	if got := len(buildHistoryMessages(turns)); got != historyLimit {
		t.Fatalf("expected %d messages, got %d", historyLimit, got)
	}
}
