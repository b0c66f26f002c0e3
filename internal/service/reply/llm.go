package reply

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/chatpanel/internal/config"
	"github.com/zhouzirui/chatpanel/internal/service/history"
)

const historyLimit = 10

// LLM answers through a compiled chain: system prompt, recent history, query.
type LLM struct {
	systemPrompt string
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewLLM builds the Ark chat model from cfg and wraps it in a chain.
func NewLLM(ctx context.Context, cfg config.AIConfig) (*LLM, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewLLMWithModel(ctx, chatModel, cfg.SystemPrompt)
}

// NewLLMWithModel wraps an existing chat model.
func NewLLMWithModel(ctx context.Context, chatModel model.ChatModel, systemPrompt string) (*LLM, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &LLM{systemPrompt: systemPrompt, chain: runnable}, nil
}

// Reply implements Generator.
func (l *LLM) Reply(ctx context.Context, sessionID, message string, turns []history.Turn) (string, error) {
	input := map[string]any{
		"system":  l.systemPrompt,
		"history": buildHistoryMessages(turns),
		"query":   message,
	}

	response, err := l.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}

	log.Printf("[reply] generated response for session=%s, length=%d", sessionID, len(response.Content))
	return response.Content, nil
}

// buildHistoryMessages converts stored turns, minus the current query, into
// chain messages, keeping the most recent ones.
func buildHistoryMessages(turns []history.Turn) []*schema.Message {
	if n := len(turns); n > 0 && turns[n-1].Role == history.RoleUser {
		turns = turns[:n-1]
	}
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	messages := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case history.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case history.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
