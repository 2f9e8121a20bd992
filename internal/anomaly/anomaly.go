// Package anomaly implements the Anomaly Scorer: given a query
// invoice, produces an anomaly probability and reason codes by
// comparing its total against the vendor's historical amount baseline
// and its remit account against known sightings.
package anomaly

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/configstore"
	"github.com/mmdatafocus/invoice-sieve/models"
)

const (
	amountOutlierZ  = 6.0
	bankChangeFloor = 0.6
	coldVendorDamp  = 0.8
)

// Scorer reads vendor baselines and remit sightings to compute the
// anomaly score for a query invoice.
type Scorer struct {
	db      *gorm.DB
	configs *configstore.Store
}

func NewScorer(db *gorm.DB, configs *configstore.Store) *Scorer {
	return &Scorer{db: db, configs: configs}
}

// baselineFallback is the inline-derivation query used when no stored
// baseline row exists. MySQL has no native median/MAD aggregate, so
// mean/stddev stand in as the closest available approximation — see
// DESIGN.md for why this diverges from a literal median/MAD read.
const baselineFallback = `
SELECT AVG(total) AS median, STDDEV(total) AS mad_like, COUNT(*) AS sample_count
FROM invoice_snapshots
WHERE tenant_id = ? AND vendor_id = ? AND invoice_id != ?
`

type baselineRow struct {
	Median      float64 `gorm:"column:median"`
	MADLike     float64 `gorm:"column:mad_like"`
	SampleCount int     `gorm:"column:sample_count"`
}

// Score computes (anom_prob, reason_codes) for a query invoice's
// total and remit account hash against its vendor's history.
func (s *Scorer) Score(ctx context.Context, tenantID, vendorID, invoiceID string, total float64, remitHash *string) (float64, []string, error) {
	var reasons []string

	median, madLike, sampleCount, err := s.resolveBaseline(ctx, tenantID, vendorID, invoiceID)
	if err != nil {
		return 0, nil, err
	}

	mad := madLike
	if mad == 0 {
		mad = math.Max(math.Abs(median), 1.0)
	}
	z := math.Abs(total-median) / math.Max(mad, 1.0)
	amountScore := math.Min(z/10.0, 1.0)

	if z >= amountOutlierZ {
		reasons = append(reasons, "AMOUNT_OUTLIER")
	}

	if remitHash != nil && *remitHash != "" {
		lookbackMonths, err := s.configs.GetInt(ctx, tenantID, vendorID, "bank_change_lookback_months", configstore.DefaultBankChangeLookbackMonth)
		if err != nil {
			return 0, nil, err
		}
		seen, err := s.remitSeen(ctx, tenantID, vendorID, *remitHash, time.Duration(lookbackMonths)*30*24*time.Hour)
		if err != nil {
			return 0, nil, err
		}
		if !seen {
			reasons = append(reasons, "BANK_CHANGE")
			amountScore = math.Max(amountScore, bankChangeFloor)
		}
	}

	coldStartInvoices, err := s.configs.GetInt(ctx, tenantID, vendorID, "cold_start_invoices", configstore.DefaultColdStartInvoices)
	if err != nil {
		return 0, nil, err
	}
	if sampleCount < coldStartInvoices {
		amountScore *= coldVendorDamp
	}

	return clamp01(amountScore), reasons, nil
}

func (s *Scorer) resolveBaseline(ctx context.Context, tenantID, vendorID, invoiceID string) (median, madLike float64, sampleCount int, err error) {
	var stored models.VendorAmountBaseline
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		First(&stored).Error
	if err == nil {
		return stored.Median, stored.MADLike, stored.SampleCount, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, 0, 0, err
	}

	var row baselineRow
	if err := s.db.WithContext(ctx).Raw(baselineFallback, tenantID, vendorID, invoiceID).Scan(&row).Error; err != nil {
		return 0, 0, 0, err
	}
	return row.Median, row.MADLike, row.SampleCount, nil
}

func (s *Scorer) remitSeen(ctx context.Context, tenantID, vendorID, remitHash string, lookback time.Duration) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.VendorRemitSighting{}).
		Where("tenant_id = ? AND vendor_id = ? AND remit_account_hash = ? AND last_seen_at >= ?",
			tenantID, vendorID, remitHash, time.Now().Add(-lookback)).
		Count(&count).Error
	return count > 0, err
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
