package core

import "context"

// Searcher queries an external news-search service. Used for standing
// discovery scans and on-demand corroboration.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Article, error)
}

// TextFetcher retrieves plain text from a remote document (HTML or PDF
// landing page). maxBytes > 0 bounds the fetch to a prefix, which is enough
// for cheap report-id derivation.
type TextFetcher interface {
	FetchText(ctx context.Context, url string, maxBytes int) (string, error)
}

// IndexScraper lists candidate report links from the fixed listing page.
type IndexScraper interface {
	ScrapeIndex(ctx context.Context) ([]ReportLink, error)
}

// Extractor turns an unstructured article into an incident candidate.
// Extraction failure is surfaced on the candidate's Err field, never as a
// panic past the caller; the error return covers only context cancellation.
type Extractor interface {
	ExtractIncident(ctx context.Context, article Article) (IncidentCandidate, error)
}

// Collector fetches and parses the full document behind a report link into a
// structured record. A failed collect returns a nil record and an error.
type Collector interface {
	Collect(ctx context.Context, link ReportLink) (*IncidentRecord, error)
}

// Locator resolves missing district/state for a mine name, best effort.
// Implementations return ok=false rather than an error when nothing is known.
type Locator interface {
	Locate(ctx context.Context, mineName string) (district, state string, ok bool)
}

// Store is the store of record for incident records, keyed by report id when
// one is present (partial uniqueness: only enforced for non-empty ids).
type Store interface {
	// Insert persists a new record and returns its storage id.
	Insert(ctx context.Context, rec IncidentRecord) (string, error)
	// CountSimilar reports how many stored records match the fuzzy
	// duplicate query.
	CountSimilar(ctx context.Context, q DuplicateQuery) (int, error)
	// HasReportID reports whether a record with the given report id exists.
	HasReportID(ctx context.Context, reportID string) (bool, error)
	// UpdateVerification overwrites the verification block of the record
	// with the given report id. The overwrite is idempotent: repeated
	// updates leave only the latest block.
	UpdateVerification(ctx context.Context, reportID string, v Verification) error
	// All returns every stored record.
	All(ctx context.Context) ([]IncidentRecord, error)
	// Since returns records whose accident date falls in [from, to].
	Since(ctx context.Context, from, to string) ([]IncidentRecord, error)
}

// ScoredChunk is one semantic retrieval hit.
type ScoredChunk struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// SemanticRetriever returns the chunks most similar to the query.
type SemanticRetriever interface {
	RetrieveSemantic(ctx context.Context, query string, k int) ([]ScoredChunk, error)
}

// KeywordRetriever returns formatted context blocks matching the query by
// full-text search over the store of record.
type KeywordRetriever interface {
	RetrieveKeyword(ctx context.Context, query string, limit int) ([]string, error)
}

// Generator produces text from a prompt: query rewriting, answering,
// extraction, alert and recommendation synthesis.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// Embedder maps texts to dense vectors for semantic retrieval.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
