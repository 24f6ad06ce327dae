package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"twils-assistant/providers"
	"twils-assistant/session"
)

// Output tags the translation prompt instructs the model to emit. Parsing
// keys off these exact literals.
const (
	tagTitle    = "TRANSLATED TITLE:"
	tagSummary  = "TRANSLATED SUMMARY:"
	tagAbstract = "TRANSLATED ABSTRACT:"
)

// TranslationService translates single paper records in place.
type TranslationService struct {
	provider providers.TextProvider
	logger   *zap.Logger
}

// NewTranslationService creates a translation service.
func NewTranslationService(provider providers.TextProvider, logger *zap.Logger) *TranslationService {
	return &TranslationService{provider: provider, logger: logger}
}

// Translate rewrites the addressed record's title, summary and abstract into
// the target language. A second call for a record whose translation is still
// in flight is a silent no-op (returns false, nil). On provider failure the
// record is left untouched and the error is returned.
func (t *TranslationService) Translate(ctx context.Context, sess *session.Session, paperID, targetLanguage string) (bool, error) {
	if !sess.BeginTranslation(paperID) {
		t.logger.Debug("Translation already in flight", zap.String("paper_id", paperID))
		return false, nil
	}
	defer sess.EndTranslation(paperID)

	paper, ok := sess.Paper(paperID)
	if !ok {
		return false, fmt.Errorf("paper %s not found in session", paperID)
	}

	prompt := buildTranslationPrompt(paper.Title, paper.Summary, paper.Abstract, targetLanguage)
	raw, err := t.provider.Generate(ctx, prompt, providers.GenerateOptions{})
	if err != nil {
		return false, fmt.Errorf("translating paper %s: %w", paperID, err)
	}

	title := extractTag(raw, tagTitle)
	if title == "" {
		return false, fmt.Errorf("translation output missing title for paper %s", paperID)
	}
	summary := extractTag(raw, tagSummary)
	if summary == "" {
		summary = paper.Summary
	}
	abstract := extractTag(raw, tagAbstract)
	if abstract == "" {
		abstract = paper.Abstract
	}

	if !sess.ApplyTranslation(paperID, title, summary, abstract, targetLanguage) {
		return false, fmt.Errorf("paper %s disappeared during translation", paperID)
	}

	translationsTotal.Inc()
	t.logger.Info("Paper translated",
		zap.String("paper_id", paperID),
		zap.String("target_language", targetLanguage))
	return true, nil
}

func buildTranslationPrompt(title, summary, abstract, targetLanguage string) string {
	return fmt.Sprintf(`Translate the following research paper fields into %s. Respond with exactly three tagged sections and nothing else:

%s <the translated title>
%s <the translated summary>
%s <the translated abstract>

Title: %s

Summary: %s

Abstract: %s`, targetLanguage, tagTitle, tagSummary, tagAbstract, title, summary, abstract)
}

// extractTag returns the trimmed text between a tag and the next tag (or end
// of output). Empty string when the tag is absent.
func extractTag(text, tag string) string {
	start := strings.Index(text, tag)
	if start == -1 {
		return ""
	}
	rest := text[start+len(tag):]

	end := len(rest)
	for _, other := range []string{tagTitle, tagSummary, tagAbstract} {
		if other == tag {
			continue
		}
		if idx := strings.Index(rest, other); idx != -1 && idx < end {
			end = idx
		}
	}
	return strings.TrimSpace(rest[:end])
}
