package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twils-assistant/models"
)

func TestReplaceResultsDiscardsPrior(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")

	s.ReplaceResults("first", []models.ResearchPaper{{ID: "a"}, {ID: "b"}})
	s.ReplaceResults("second", []models.ResearchPaper{{ID: "c"}})

	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, "second", s.Query())
}

func TestResultsReturnsCopy(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")
	s.ReplaceResults("q", []models.ResearchPaper{{ID: "a", Title: "Original"}})

	results := s.Results()
	results[0].Title = "Mutated"

	fresh := s.Results()
	assert.Equal(t, "Original", fresh[0].Title)
}

func TestApplyTranslation(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")
	s.ReplaceResults("q", []models.ResearchPaper{{ID: "a", Title: "T", Language: "English"}})

	ok := s.ApplyTranslation("a", "Titel", "Zusammenfassung", "Abstract", "German")
	require.True(t, ok)

	p, _ := s.Paper("a")
	assert.Equal(t, "Titel", p.Title)
	assert.Equal(t, "German", p.Language)
	assert.Equal(t, "English", p.OriginalLanguage)

	// Second translation keeps the original source language.
	s.ApplyTranslation("a", "Titre", "Resume", "Resume long", "French")
	p, _ = s.Paper("a")
	assert.Equal(t, "French", p.Language)
	assert.Equal(t, "English", p.OriginalLanguage)

	assert.False(t, s.ApplyTranslation("missing", "x", "y", "z", "German"))
}

func TestTranslationGuard(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")

	assert.True(t, s.BeginTranslation("a"))
	assert.False(t, s.BeginTranslation("a"))
	assert.True(t, s.BeginTranslation("b"), "guard is per record")

	s.EndTranslation("a")
	assert.True(t, s.BeginTranslation("a"))
}

func TestToggleFavorite(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")

	assert.True(t, s.ToggleFavorite("a"))
	assert.ElementsMatch(t, []string{"a"}, s.Favorites())
	assert.False(t, s.ToggleFavorite("a"))
	assert.Empty(t, s.Favorites())
}

func TestAssistantChunkAccumulation(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")

	require.True(t, s.BeginStream())
	assert.False(t, s.BeginStream(), "only one stream at a time")

	s.AppendAssistantChunk("Hel")
	s.AppendAssistantChunk("lo")
	s.EndStream()

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)

	// A new turn opens a new assistant message instead of growing the old one.
	require.True(t, s.BeginStream())
	s.AppendAssistantChunk("Again")
	s.EndStream()

	msgs = s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Again", msgs[1].Content)
}

func TestAssistantChunksSurviveInterleavedMessages(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")

	require.True(t, s.BeginStream())
	s.AppendAssistantChunk("Hel")

	// A search completing on the same session appends its own query and
	// acknowledgment while the stream is still active.
	s.AppendMessage(models.RoleUser, "solar cells")
	s.AppendMessage(models.RoleAssistant, "Found 3 relevant research papers")

	s.AppendAssistantChunk("lo")
	s.EndStream()

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hello", msgs[0].Content, "chunks keep flowing into the turn's own message")
	assert.Equal(t, "solar cells", msgs[1].Content)
	assert.Equal(t, "Found 3 relevant research papers", msgs[2].Content, "the acknowledgment stays intact")
}

func TestLastMessages(t *testing.T) {
	s := NewManager(zap.NewNop()).Create("u1")
	for i := 0; i < 5; i++ {
		s.AppendMessage(models.RoleUser, "m")
	}

	assert.Len(t, s.LastMessages(3), 3)
	assert.Len(t, s.LastMessages(10), 5)
	assert.Empty(t, s.LastMessages(0))
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(zap.NewNop())
	stale := m.Create("u1")
	fresh := m.Create("u2")

	// Backdate the stale session past the idle cutoff.
	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-3 * time.Hour)
	stale.mu.Unlock()

	dropped := m.Sweep(2 * time.Hour)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, m.Count())

	_, ok := m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}
