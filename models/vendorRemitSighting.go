package models

import "time"

// VendorRemitSighting records a (vendor_id, remit_account_hash) pair ever
// seen on an accepted invoice. A newly submitted invoice whose remit hash
// has no prior sighting for that vendor is a bank-change candidate.
type VendorRemitSighting struct {
	TenantID          string `gorm:"column:tenant_id;primaryKey;size:64"`
	VendorID          string `gorm:"column:vendor_id;primaryKey;size:128"`
	RemitAccountHash  string `gorm:"column:remit_account_hash;primaryKey;size:64"`

	RemitName *string `gorm:"column:remit_name;size:256"`

	FirstSeenAt time.Time `gorm:"column:first_seen_at;autoCreateTime"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	SeenCount   int       `gorm:"column:seen_count;default:1"`
}

func (VendorRemitSighting) TableName() string { return "vendor_remit_sightings" }

// VendorAmountBaseline holds the rolling median and MAD-like dispersion
// of accepted invoice totals per vendor, maintained by an external batch
// collaborator and read by the anomaly scorer's z-score calculation. If
// absent, the anomaly scorer derives a fallback on the fly from the
// vendor's stored invoice totals using SQL AVG and STDDEV (mean and
// standard deviation, not percentiles) rather than treating the vendor
// as score-exempt.
type VendorAmountBaseline struct {
	TenantID string `gorm:"column:tenant_id;primaryKey;size:64"`
	VendorID string `gorm:"column:vendor_id;primaryKey;size:128"`

	SampleCount int     `gorm:"column:sample_count"`
	Median      float64 `gorm:"column:median"`
	MADLike     float64 `gorm:"column:mad_like"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (VendorAmountBaseline) TableName() string { return "vendor_amount_baselines" }
