package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassify(t *testing.T) {
	f := NewFallbackSynthesizer(zap.NewNop())

	tests := []struct {
		query string
		want  string
	}{
		{"machine learning for protein folding", "Computer Science"},
		{"AI in education", "Computer Science"},
		{"climate change mitigation", "Environmental Science"},
		{"public health interventions", "Medical Research"},
		{"renewable energy in Japanese", "Energy Technology"},
		{"energy grid storage", "Energy Technology"},
		{"Exploring quantum computing", "Physics"},
		{"gene expression profiling", "Biology"},
		{"market volatility models", "Economics"},
		{"unrelated topic xyz", "General Research"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Classify(tt.query))
		})
	}
}

func TestSynthesizeProducesThreeRecords(t *testing.T) {
	f := NewFallbackSynthesizer(zap.NewNop())

	papers := f.Synthesize("renewable energy in Japanese")
	require.Len(t, papers, 3)

	seen := map[string]bool{}
	for _, p := range papers {
		assert.Regexp(t, paperIDPattern, p.ID)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true

		assert.Contains(t, p.Title, "renewable energy in Japanese")
		assert.Equal(t, "Energy Technology", p.Category)
		assert.Equal(t, "English", p.Language)
		assert.NotEmpty(t, p.Authors)
		assert.NotEmpty(t, p.Institution)
		assert.NotEmpty(t, p.Summary)
		assert.NotEmpty(t, p.Abstract)
		assert.Regexp(t, `^10\.1000/\d{1,3}$`, p.DOI)
		assert.GreaterOrEqual(t, p.CitationCount, 0)
		assert.GreaterOrEqual(t, p.DownloadCount, 0)
		assert.Contains(t, p.Keywords, "energy technology")
	}
}

func TestSynthesizeUnmatchedQuery(t *testing.T) {
	f := NewFallbackSynthesizer(zap.NewNop())

	papers := f.Synthesize("underwater basket weaving")
	require.Len(t, papers, 3)
	for _, p := range papers {
		assert.Equal(t, "General Research", p.Category)
	}
}
