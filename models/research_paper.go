package models

// ResearchPaper is one academic search result as displayed to the user.
// Papers are ephemeral: created in bulk by a search, mutated in place by a
// translation, and replaced wholesale by the next search. They are never
// persisted.
type ResearchPaper struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Institution   string   `json:"institution"`
	Language      string   `json:"language"`
	Year          string   `json:"year"`
	Category      string   `json:"category"`
	Summary       string   `json:"summary"`
	Abstract      string   `json:"abstract"`
	Keywords      []string `json:"keywords"`
	CitationCount int      `json:"citationCount"`
	DownloadCount int      `json:"downloadCount"`
	DOI           string   `json:"doi"`
	PDFURL        string   `json:"pdfUrl,omitempty"`

	// Set by the first translation only. Language always reflects the
	// currently displayed language; OriginalLanguage keeps the value it had
	// before that first translation.
	OriginalLanguage   string `json:"originalLanguage,omitempty"`
	TranslatedSummary  string `json:"translatedSummary,omitempty"`
	TranslatedAbstract string `json:"translatedAbstract,omitempty"`
}
