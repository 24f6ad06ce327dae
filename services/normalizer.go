package services

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"twils-assistant/models"
)

// Sentinel defaults substituted for missing or malformed fields.
const (
	defaultInstitution = "Unknown Institution"
	defaultSummary     = "No summary available"
	defaultAbstract    = "No abstract available"
	defaultLanguage    = "English"
)

// PaperNormalizer coerces loosely-typed provider output into strict
// ResearchPaper records. Field-level defects are healed by substitution; a
// record is never rejected.
type PaperNormalizer struct {
	logger *zap.Logger
}

// NewPaperNormalizer creates a normalizer.
func NewPaperNormalizer(logger *zap.Logger) *PaperNormalizer {
	return &PaperNormalizer{logger: logger}
}

// Normalize turns a decoded JSON value into a sequence of fully populated
// records. Non-array or empty input yields an empty sequence. Ids are always
// generated fresh; any id present in the input is ignored.
func (n *PaperNormalizer) Normalize(raw any) []models.ResearchPaper {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	now := time.Now()
	year := strconv.Itoa(now.Year())
	stamp := now.UnixMilli()

	papers := make([]models.ResearchPaper, 0, len(items))
	for i, item := range items {
		fields, _ := item.(map[string]any)

		p := models.ResearchPaper{
			ID:            fmt.Sprintf("paper_%d_%d", stamp, i),
			Title:         coerceString(fields["title"], "Untitled"),
			Authors:       coerceStringSlice(fields["authors"]),
			Institution:   coerceString(fields["institution"], defaultInstitution),
			Language:      coerceString(fields["language"], defaultLanguage),
			Year:          coerceString(fields["year"], year),
			Category:      coerceString(fields["category"], "General Research"),
			Summary:       coerceString(fields["summary"], defaultSummary),
			Abstract:      coerceString(fields["abstract"], defaultAbstract),
			Keywords:      coerceKeywords(fields["keywords"]),
			CitationCount: coerceCount(fields["citationCount"]),
			DownloadCount: coerceCount(fields["downloadCount"]),
			DOI:           coerceString(fields["doi"], placeholderDOI()),
			PDFURL:        coerceString(fields["pdfUrl"], ""),
		}
		papers = append(papers, p)
	}

	n.logger.Debug("Normalized provider records", zap.Int("count", len(papers)))
	return papers
}

// placeholderDOI synthesizes a DOI of the form 10.1000/<0-999> for records
// the provider returned without one.
func placeholderDOI() string {
	return fmt.Sprintf("10.1000/%d", rand.Intn(1000))
}

func coerceString(v any, fallback string) string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return fallback
		}
		return t
	case float64:
		// Years and counts sometimes arrive as numbers.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fallback
	}
}

// coerceStringSlice wraps a single value into a one-element sequence when
// the input is not a sequence.
func coerceStringSlice(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := coerceString(e, ""); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return []string{"Unknown Author"}
		}
		return out
	case nil:
		return []string{"Unknown Author"}
	default:
		return []string{coerceString(t, "Unknown Author")}
	}
}

func coerceKeywords(v any) []string {
	t, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(t))
	for _, e := range t {
		if s := coerceString(e, ""); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// coerceCount returns a non-negative integer, defaulting to 0 for absent or
// non-numeric values.
func coerceCount(v any) int {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return int(t)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || i < 0 {
			return 0
		}
		return i
	default:
		return 0
	}
}
