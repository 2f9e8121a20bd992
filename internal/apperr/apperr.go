// Package apperr is the sieve's error taxonomy: a small set of
// sentinel errors the gin layer maps to status codes, generalizing
// the teacher's single ErrorRecordNotFound sentinel to the richer set
// of failure kinds a scoring request can hit.
package apperr

import "errors"

var (
	// ErrSchema covers a malformed request body: a missing required
	// field, an empty line_items array, or an unparsable date/currency.
	ErrSchema = errors.New("schema violation")

	// ErrAuth covers a missing, malformed, or invalid bearer token.
	ErrAuth = errors.New("authentication failure")

	// ErrTenantMismatch covers a token whose tenant claim doesn't match
	// the resource being accessed.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrDataQuality is not a hard failure: the caller proceeds with
	// scoring after attaching DATA_QUALITY_CHECK_FAIL to the decision.
	ErrDataQuality = errors.New("data quality warning")

	// ErrDegraded marks an optional dependency (the text index) as
	// unavailable; the caller continues without that capability.
	ErrDegraded = errors.New("optional dependency degraded")

	// ErrStoreUnavailable covers the relational store being unreachable
	// mid-transaction; the caller aborts and returns a 5xx.
	ErrStoreUnavailable = errors.New("required store unavailable")

	// ErrNotFound covers a lookup that found no row, e.g. GetDecision
	// for an invoice that was never scored.
	ErrNotFound = errors.New("not found")
)
