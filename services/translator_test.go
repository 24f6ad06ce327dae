package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twils-assistant/models"
	"twils-assistant/providers"
	"twils-assistant/session"
)

func seedPaper(sess *session.Session) models.ResearchPaper {
	p := models.ResearchPaper{
		ID:       "paper_1_0",
		Title:    "Solar Cell Efficiency",
		Language: "English",
		Summary:  "Original summary",
		Abstract: "Original abstract",
	}
	sess.ReplaceResults("solar", []models.ResearchPaper{p})
	return p
}

func TestTranslateAppliesAllFields(t *testing.T) {
	provider := &mockProvider{
		generateFunc: func(_ context.Context, prompt string, opts providers.GenerateOptions) (string, error) {
			return "TRANSLATED TITLE: Solarzellen-Effizienz\n" +
				"TRANSLATED SUMMARY: Deutsche Zusammenfassung\n" +
				"TRANSLATED ABSTRACT: Deutscher Abstract", nil
		},
	}
	svc := NewTranslationService(provider, zap.NewNop())
	sess := newTestSession()
	seedPaper(sess)

	ok, err := svc.Translate(context.Background(), sess, "paper_1_0", "German")
	require.NoError(t, err)
	assert.True(t, ok)

	p, found := sess.Paper("paper_1_0")
	require.True(t, found)
	assert.Equal(t, "Solarzellen-Effizienz", p.Title)
	assert.Equal(t, "Deutsche Zusammenfassung", p.TranslatedSummary)
	assert.Equal(t, "Deutscher Abstract", p.TranslatedAbstract)
	assert.Equal(t, "German", p.Language)
	assert.Equal(t, "English", p.OriginalLanguage)
	assert.False(t, provider.lastOpts.Search)
}

func TestTranslateMissingSectionsFallBackToOriginals(t *testing.T) {
	provider := &mockProvider{
		generateFunc: func(context.Context, string, providers.GenerateOptions) (string, error) {
			return "TRANSLATED TITLE: Titre traduit", nil
		},
	}
	svc := NewTranslationService(provider, zap.NewNop())
	sess := newTestSession()
	seedPaper(sess)

	ok, err := svc.Translate(context.Background(), sess, "paper_1_0", "French")
	require.NoError(t, err)
	assert.True(t, ok)

	p, _ := sess.Paper("paper_1_0")
	assert.Equal(t, "Titre traduit", p.Title)
	assert.Equal(t, "Original summary", p.TranslatedSummary)
	assert.Equal(t, "Original abstract", p.TranslatedAbstract)
}

func TestTranslateMissingTitleFails(t *testing.T) {
	provider := &mockProvider{
		generateFunc: func(context.Context, string, providers.GenerateOptions) (string, error) {
			return "TRANSLATED SUMMARY: only a summary", nil
		},
	}
	svc := NewTranslationService(provider, zap.NewNop())
	sess := newTestSession()
	original := seedPaper(sess)

	ok, err := svc.Translate(context.Background(), sess, "paper_1_0", "German")
	assert.Error(t, err)
	assert.False(t, ok)

	p, _ := sess.Paper("paper_1_0")
	assert.Equal(t, original.Title, p.Title)
	assert.Empty(t, p.TranslatedSummary)
}

func TestTranslateProviderErrorLeavesRecordUntouched(t *testing.T) {
	provider := &mockProvider{
		generateFunc: func(context.Context, string, providers.GenerateOptions) (string, error) {
			return "", errors.New("upstream down")
		},
	}
	svc := NewTranslationService(provider, zap.NewNop())
	sess := newTestSession()
	original := seedPaper(sess)

	ok, err := svc.Translate(context.Background(), sess, "paper_1_0", "German")
	assert.Error(t, err)
	assert.False(t, ok)

	p, _ := sess.Paper("paper_1_0")
	assert.Equal(t, original, p)
}

func TestTranslateOriginalLanguageCapturedOnce(t *testing.T) {
	provider := &mockProvider{
		generateFunc: func(context.Context, string, providers.GenerateOptions) (string, error) {
			return "TRANSLATED TITLE: T\nTRANSLATED SUMMARY: S\nTRANSLATED ABSTRACT: A", nil
		},
	}
	svc := NewTranslationService(provider, zap.NewNop())
	sess := newTestSession()
	seedPaper(sess)

	_, err := svc.Translate(context.Background(), sess, "paper_1_0", "German")
	require.NoError(t, err)
	_, err = svc.Translate(context.Background(), sess, "paper_1_0", "French")
	require.NoError(t, err)

	p, _ := sess.Paper("paper_1_0")
	assert.Equal(t, "French", p.Language)
	// The first source language sticks, even after a second translation.
	assert.Equal(t, "English", p.OriginalLanguage)
}

func TestTranslateInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	provider := &mockProvider{
		generateFunc: func(context.Context, string, providers.GenerateOptions) (string, error) {
			close(started)
			<-release
			return "TRANSLATED TITLE: T", nil
		},
	}
	svc := NewTranslationService(provider, zap.NewNop())
	sess := newTestSession()
	seedPaper(sess)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Translate(context.Background(), sess, "paper_1_0", "German")
	}()

	<-started
	ok, err := svc.Translate(context.Background(), sess, "paper_1_0", "German")
	assert.NoError(t, err)
	assert.False(t, ok, "second call while in flight must be a no-op")

	close(release)
	wg.Wait()
	assert.Equal(t, 1, provider.generateCalls)
}

func TestTranslateUnknownPaper(t *testing.T) {
	svc := NewTranslationService(&mockProvider{}, zap.NewNop())
	sess := newTestSession()

	ok, err := svc.Translate(context.Background(), sess, "missing", "German")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestExtractTag(t *testing.T) {
	raw := "TRANSLATED TITLE: Der Titel\nTRANSLATED SUMMARY: Die Zusammenfassung\nTRANSLATED ABSTRACT: Der Abstract"

	assert.Equal(t, "Der Titel", extractTag(raw, tagTitle))
	assert.Equal(t, "Die Zusammenfassung", extractTag(raw, tagSummary))
	assert.Equal(t, "Der Abstract", extractTag(raw, tagAbstract))
	assert.Equal(t, "", extractTag("no tags at all", tagTitle))
}
