package textindex

import (
	"context"
	"sort"

	"gorm.io/gorm/clause"

	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/normalize"
	"github.com/mmdatafocus/invoice-sieve/models"
)

// SQLIndexer is a dependency-free substitute for a dedicated search
// engine: it persists text blobs in the relational store and resolves
// near-text queries with an in-process 3-gram overlap scan over the
// vendor's blobs. It trades recall at scale for zero new
// infrastructure, which is the right tradeoff for an optional,
// best-effort retrieval path.
type SQLIndexer struct {
	db *gorm.DB
}

func NewSQLIndexer(db *gorm.DB) *SQLIndexer {
	return &SQLIndexer{db: db}
}

func (s *SQLIndexer) IndexText(ctx context.Context, tenantID, vendorID, invoiceID, textBlob string) error {
	entry := models.TextIndexEntry{
		TenantID:  tenantID,
		InvoiceID: invoiceID,
		VendorID:  vendorID,
		TextBlob:  textBlob,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "invoice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vendor_id", "text_blob", "updated_at"}),
	}).Create(&entry).Error
}

type scoredCandidate struct {
	invoiceID string
	score     float64
}

func (s *SQLIndexer) SearchNear(ctx context.Context, tenantID, vendorID, textBlob string, limit int) ([]string, error) {
	var entries []models.TextIndexEntry
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	queryGrams := normalize.CharNGrams(textBlob, 3)
	if len(queryGrams) == 0 {
		return nil, nil
	}

	scored := make([]scoredCandidate, 0, len(entries))
	for _, e := range entries {
		grams := normalize.CharNGrams(e.TextBlob, 3)
		if len(grams) == 0 {
			continue
		}
		overlap := 0
		for g := range queryGrams {
			if _, ok := grams[g]; ok {
				overlap++
			}
		}
		denom := len(textBlob) + len(e.TextBlob)
		if denom == 0 {
			continue
		}
		score := 2 * float64(overlap) / float64(denom)
		if score > 1 {
			score = 1
		}
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredCandidate{invoiceID: e.InvoiceID, score: score})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	ids := make([]string, len(scored))
	for i, sc := range scored {
		ids[i] = sc.invoiceID
	}
	return ids, nil
}
