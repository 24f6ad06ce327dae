// Package session holds the ephemeral per-tab state of the research
// assistant: current query, result list, favorites, the chat history, and
// the in-flight guards for translation and streaming. All state lives in
// memory for the lifetime of the session; nothing here is persisted.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"twils-assistant/models"
)

// Session owns one user's search results and chat history. The result list
// and chat history are mutated only through its methods; a mutex serializes
// access because HTTP handlers run concurrently.
type Session struct {
	ID     string
	UserID string

	mu          sync.Mutex
	query       string
	results     []models.ResearchPaper
	favorites   map[string]bool
	translating map[string]bool
	messages    []models.ChatMessage

	// streaming is true while a chat stream is active; openAssistant is the
	// index of the current turn's assistant message, or -1 before the first
	// chunk arrives. Tracking the index keeps chunks flowing into the turn's
	// own message even when another operation appends to the history
	// mid-stream.
	streaming     bool
	openAssistant int

	lastActive time.Time
}

func newSession(userID string) *Session {
	return &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		favorites:     make(map[string]bool),
		translating:   make(map[string]bool),
		openAssistant: -1,
		lastActive:    time.Now(),
	}
}

// Query returns the current query string.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// ReplaceResults swaps in a new result list wholesale. Prior results are
// discarded, never merged.
func (s *Session) ReplaceResults(query string, papers []models.ResearchPaper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.results = papers
	s.lastActive = time.Now()
}

// Results returns a copy of the current result list.
func (s *Session) Results() []models.ResearchPaper {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ResearchPaper, len(s.results))
	copy(out, s.results)
	return out
}

// Paper returns a copy of the addressed record.
func (s *Session) Paper(id string) (models.ResearchPaper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.results {
		if p.ID == id {
			return p, true
		}
	}
	return models.ResearchPaper{}, false
}

// ApplyTranslation mutates the addressed record in place with translated
// fields. OriginalLanguage is captured only on the first translation; the
// record's identity never changes.
func (s *Session) ApplyTranslation(id, title, summary, abstract, targetLanguage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.results {
		if s.results[i].ID != id {
			continue
		}
		p := &s.results[i]
		p.Title = title
		p.TranslatedSummary = summary
		p.TranslatedAbstract = abstract
		if p.OriginalLanguage == "" {
			p.OriginalLanguage = p.Language
		}
		p.Language = targetLanguage
		s.lastActive = time.Now()
		return true
	}
	return false
}

// BeginTranslation marks a record id as mid-translation. Returns false when
// a translation for that id is already in flight; the caller must then treat
// the request as a no-op.
func (s *Session) BeginTranslation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.translating[id] {
		return false
	}
	s.translating[id] = true
	return true
}

// EndTranslation clears the in-flight mark.
func (s *Session) EndTranslation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.translating, id)
}

// ToggleFavorite flips a record id's favorite mark and reports the new state.
func (s *Session) ToggleFavorite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.favorites[id] {
		delete(s.favorites, id)
		return false
	}
	s.favorites[id] = true
	return true
}

// Favorites returns the favorited record ids.
func (s *Session) Favorites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.favorites))
	for id := range s.favorites {
		out = append(out, id)
	}
	return out
}

// AppendMessage appends one message to the chat history.
func (s *Session) AppendMessage(role models.ChatRole, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, models.ChatMessage{Role: role, Content: content})
	s.lastActive = time.Now()
}

// Messages returns a copy of the full chat history.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastMessages returns a copy of up to the last n messages.
func (s *Session) LastMessages(n int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.ChatMessage, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// BeginStream transitions the session into the streaming state. Returns
// false when a stream is already active.
func (s *Session) BeginStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return false
	}
	s.streaming = true
	s.openAssistant = -1
	return true
}

// EndStream transitions back to idle. Any partially accumulated assistant
// message is left as-is.
func (s *Session) EndStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = false
	s.openAssistant = -1
}

// Streaming reports whether a chat stream is active.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// AppendAssistantChunk grows the current turn's assistant message. The first
// chunk of a turn appends a new message; subsequent chunks mutate it in
// place. Exactly one assistant message is appended per turn.
func (s *Session) AppendAssistantChunk(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openAssistant >= 0 && s.openAssistant < len(s.messages) {
		s.messages[s.openAssistant].Content += chunk
	} else {
		s.messages = append(s.messages, models.ChatMessage{Role: models.RoleAssistant, Content: chunk})
		s.openAssistant = len(s.messages) - 1
	}
	s.lastActive = time.Now()
}

// Touch refreshes the idle timer.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// LastActive returns the time of the last mutation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
