// Package textindex implements the Text Indexer: it writes a
// normalized text blob per invoice and serves near-text candidate
// lookups for the retriever's optional fallback path. It is an
// optional-dependency capability by design — failure here is logged,
// never fatal, and retrieval silently skips the near-text path when
// the indexer errors.
package textindex

import "context"

// Indexer is the pluggable contract the scoring orchestrator and
// candidate retriever depend on. A production deployment may back this
// with an external search engine; this module ships a SQL-backed
// implementation and a no-op degraded default, since no search-engine
// client library appears anywhere in this service's dependency corpus.
type Indexer interface {
	// IndexText stores the blob for later near-text lookup. Best-effort:
	// implementations should not block the caller's transaction on this.
	IndexText(ctx context.Context, tenantID, vendorID, invoiceID, textBlob string) error

	// SearchNear returns invoice IDs for the same vendor whose indexed
	// blob most closely resembles textBlob, most-similar first, capped
	// at limit. Returns (nil, nil) rather than an error when the index
	// has nothing for that vendor yet.
	SearchNear(ctx context.Context, tenantID, vendorID, textBlob string, limit int) ([]string, error)
}

// NoopIndexer is the zero-configuration default: it discards writes
// and always reports no near-text matches. Used whenever the sieve is
// deployed without the SQL-backed indexer wired in, so the scoring
// orchestrator can still run a degraded but complete pipeline.
type NoopIndexer struct{}

func NewNoopIndexer() *NoopIndexer { return &NoopIndexer{} }

func (NoopIndexer) IndexText(ctx context.Context, tenantID, vendorID, invoiceID, textBlob string) error {
	return nil
}

func (NoopIndexer) SearchNear(ctx context.Context, tenantID, vendorID, textBlob string, limit int) ([]string, error) {
	return nil, nil
}
