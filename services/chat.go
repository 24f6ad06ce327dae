package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"twils-assistant/models"
	"twils-assistant/providers"
	"twils-assistant/session"
)

const chatSystemPrompt = "You are TWILS, an AI assistant specialized in helping users find and understand academic research papers from around the world. You can translate research papers, explain complex concepts, and help users find relevant studies. Be helpful, knowledgeable, and friendly."

// Number of prior messages carried into each chat turn.
const chatContextWindow = 10

// ChatService runs the streaming conversation with the assistant persona.
type ChatService struct {
	provider providers.TextProvider
	logger   *zap.Logger
}

// NewChatService creates a chat service.
func NewChatService(provider providers.TextProvider, logger *zap.Logger) *ChatService {
	return &ChatService{provider: provider, logger: logger}
}

// Submit sends one user message and streams the assistant's reply. Chunks go
// both into the session history (accumulated into a single assistant message)
// and to onChunk for live delivery. Empty text, a missing user, or an already
// active stream make the call a silent no-op. A provider error mid-stream is
// returned; whatever was accumulated stays in the history.
func (c *ChatService) Submit(ctx context.Context, sess *session.Session, user *providers.User, text string, onChunk func(chunk string)) error {
	text = strings.TrimSpace(text)
	if text == "" || user == nil {
		return nil
	}
	if !sess.BeginStream() {
		c.logger.Debug("Chat stream already active", zap.String("session_id", sess.ID))
		return nil
	}
	defer sess.EndStream()
	chatStreamsTotal.Inc()

	// Context is captured before the new message is appended.
	prior := sess.LastMessages(chatContextWindow)
	sess.AppendMessage(models.RoleUser, text)

	messages := make([]providers.Message, 0, len(prior)+2)
	messages = append(messages, providers.Message{Role: "system", Content: chatSystemPrompt})
	for _, m := range prior {
		messages = append(messages, providers.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: text})

	opts := providers.GenerateOptions{Search: wantsSearch(text)}

	err := c.provider.StreamGenerate(ctx, messages, opts, func(chunk string) {
		sess.AppendAssistantChunk(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	})
	if err != nil {
		c.logger.Warn("Chat stream failed", zap.String("session_id", sess.ID), zap.Error(err))
		return err
	}
	return nil
}

// wantsSearch enables web grounding when the message looks like a lookup
// request.
func wantsSearch(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "find") || strings.Contains(t, "search")
}
