package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"twils-assistant/models"
	"twils-assistant/providers"
	"twils-assistant/session"
)

// SearchService turns free-text queries into structured paper records. The
// provider path is attempted first; any failure there drops down to the
// fallback synthesizer, so a search never surfaces an error to the caller.
type SearchService struct {
	db         *gorm.DB
	provider   providers.TextProvider
	normalizer *PaperNormalizer
	fallback   *FallbackSynthesizer
	logger     *zap.Logger
}

// NewSearchService creates a search service.
func NewSearchService(db *gorm.DB, provider providers.TextProvider, normalizer *PaperNormalizer, fallback *FallbackSynthesizer, logger *zap.Logger) *SearchService {
	return &SearchService{
		db:         db,
		provider:   provider,
		normalizer: normalizer,
		fallback:   fallback,
		logger:     logger,
	}
}

// Search resolves a query into a result list and installs it on the session.
// An empty or whitespace-only query is a no-op. The returned list is never
// empty: unusable provider output is replaced by synthesized records.
func (s *SearchService) Search(ctx context.Context, sess *session.Session, query string) []models.ResearchPaper {
	query = strings.TrimSpace(query)
	if query == "" {
		return sess.Results()
	}
	searchesTotal.Inc()

	papers, source := s.resolve(ctx, query)

	sess.ReplaceResults(query, papers)
	sess.AppendMessage(models.RoleUser, query)
	sess.AppendMessage(models.RoleAssistant,
		fmt.Sprintf("Found %d relevant research papers for %q. I can help you understand any of these papers or translate them if needed.", len(papers), query))

	s.recordEvent(sess.UserID, query, source, len(papers))
	return papers
}

// resolve runs the provider path and falls back on any defect.
func (s *SearchService) resolve(ctx context.Context, query string) ([]models.ResearchPaper, string) {
	raw, err := s.provider.Generate(ctx, buildSearchPrompt(query), providers.GenerateOptions{Search: true})
	if err != nil {
		s.logger.Warn("Provider search failed, using fallback", zap.String("query", query), zap.Error(err))
		fallbackResultsTotal.Inc()
		return s.fallback.Synthesize(query), "fallback"
	}

	jsonText, ok := extractJSONArray(raw)
	if !ok {
		s.logger.Warn("No JSON array in provider output, using fallback", zap.String("query", query))
		fallbackResultsTotal.Inc()
		return s.fallback.Synthesize(query), "fallback"
	}

	var decoded any
	if err := json.Unmarshal([]byte(jsonText), &decoded); err != nil {
		s.logger.Warn("Provider output not parsable, using fallback", zap.String("query", query), zap.Error(err))
		fallbackResultsTotal.Inc()
		return s.fallback.Synthesize(query), "fallback"
	}

	papers := s.normalizer.Normalize(decoded)
	if len(papers) == 0 {
		fallbackResultsTotal.Inc()
		return s.fallback.Synthesize(query), "fallback"
	}
	return papers, "provider"
}

// recordEvent writes an analytics row off the request path. Failures are
// logged and swallowed.
func (s *SearchService) recordEvent(userID, query, source string, resultCount int) {
	if s.db == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		meta, _ := json.Marshal(map[string]string{"source": source})
		event := models.SearchEvent{
			ID:          uuid.NewString(),
			UserID:      userID,
			Query:       query,
			Type:        "paper_search",
			ResultCount: resultCount,
			Metadata:    datatypes.JSON(meta),
			CreatedAt:   time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
			s.logger.Warn("Failed to record search event", zap.Error(err))
		}
	}()
}

// buildSearchPrompt asks for a strict JSON array so the output can be parsed
// without post-processing.
func buildSearchPrompt(query string) string {
	return fmt.Sprintf(`Search for current academic research papers about: %s

Return ONLY a JSON array of paper objects, no prose, no markdown fences. Each object must have these fields:
"title", "authors" (array of strings), "institution", "language", "year", "category", "summary", "abstract", "keywords" (array of strings), "citationCount" (number), "downloadCount" (number), "doi", "pdfUrl".

Return between 3 and 8 papers that are real and relevant to the query.`, query)
}

// extractJSONArray slices the first '[' through the last ']' out of raw
// provider text, tolerating surrounding prose or code fences.
func extractJSONArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
