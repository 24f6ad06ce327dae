package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twils-assistant/models"
	"twils-assistant/providers"
)

var testUser = &providers.User{ID: "user-1", Email: "user@example.org"}

func chunkedStream(chunks ...string) func(context.Context, []providers.Message, providers.GenerateOptions, func(string)) error {
	return func(_ context.Context, _ []providers.Message, _ providers.GenerateOptions, onChunk func(string)) error {
		for _, c := range chunks {
			onChunk(c)
		}
		return nil
	}
}

func TestChatAccumulatesSingleAssistantMessage(t *testing.T) {
	provider := &mockProvider{streamFunc: chunkedStream("Hel", "lo", ", researcher!")}
	svc := NewChatService(provider, zap.NewNop())
	sess := newTestSession()

	var received strings.Builder
	err := svc.Submit(context.Background(), sess, testUser, "Tell me about dark matter", func(chunk string) {
		received.WriteString(chunk)
	})
	require.NoError(t, err)

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Tell me about dark matter", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello, researcher!", msgs[1].Content)
	assert.Equal(t, "Hello, researcher!", received.String())
	assert.False(t, sess.Streaming())
}

func TestChatNoOpConditions(t *testing.T) {
	provider := &mockProvider{streamFunc: chunkedStream("never")}
	svc := NewChatService(provider, zap.NewNop())

	t.Run("empty text", func(t *testing.T) {
		sess := newTestSession()
		require.NoError(t, svc.Submit(context.Background(), sess, testUser, "   ", nil))
		assert.Empty(t, sess.Messages())
	})

	t.Run("missing user", func(t *testing.T) {
		sess := newTestSession()
		require.NoError(t, svc.Submit(context.Background(), sess, nil, "hello", nil))
		assert.Empty(t, sess.Messages())
	})

	t.Run("stream already active", func(t *testing.T) {
		sess := newTestSession()
		require.True(t, sess.BeginStream())
		require.NoError(t, svc.Submit(context.Background(), sess, testUser, "hello", nil))
		assert.Empty(t, sess.Messages())
		sess.EndStream()
	})
}

func TestChatSystemPromptAndContextWindow(t *testing.T) {
	var captured []providers.Message
	provider := &mockProvider{
		streamFunc: func(_ context.Context, messages []providers.Message, _ providers.GenerateOptions, onChunk func(string)) error {
			captured = messages
			onChunk("ok")
			return nil
		},
	}
	svc := NewChatService(provider, zap.NewNop())
	sess := newTestSession()
	for i := 0; i < 12; i++ {
		sess.AppendMessage(models.RoleUser, "filler")
	}

	require.NoError(t, svc.Submit(context.Background(), sess, testUser, "latest question", nil))

	// system + 10 prior + the new user message
	require.Len(t, captured, 12)
	assert.Equal(t, "system", captured[0].Role)
	assert.Contains(t, captured[0].Content, "TWILS")
	assert.Equal(t, "latest question", captured[len(captured)-1].Content)
}

func TestChatSearchGroundingKeywords(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"please find papers on fusion", true},
		{"search for recent studies", true},
		{"FIND me something", true},
		{"explain this abstract", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			provider := &mockProvider{streamFunc: chunkedStream("ok")}
			svc := NewChatService(provider, zap.NewNop())
			sess := newTestSession()

			require.NoError(t, svc.Submit(context.Background(), sess, testUser, tt.text, nil))
			assert.Equal(t, tt.want, provider.lastOpts.Search)
		})
	}
}

func TestChatStreamErrorKeepsPartialMessage(t *testing.T) {
	provider := &mockProvider{
		streamFunc: func(_ context.Context, _ []providers.Message, _ providers.GenerateOptions, onChunk func(string)) error {
			onChunk("partial ")
			onChunk("answer")
			return errors.New("connection reset")
		},
	}
	svc := NewChatService(provider, zap.NewNop())
	sess := newTestSession()

	err := svc.Submit(context.Background(), sess, testUser, "question", nil)
	assert.Error(t, err)

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial answer", msgs[1].Content)
	assert.False(t, sess.Streaming(), "stream state must be released after an error")
}
