// Package idgen mints the short, prefixed identifiers used for cases
// and decisions. Both columns are declared size:32, which a bare
// uuid.NewString() (36 characters with its dashes) does not fit; these
// helpers follow original_source/app/main.py's
// f"dec_{uuid.uuid4().hex[:12]}" convention instead, applied to both
// id families so every sieve-minted id shares one shape.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

func short() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewDecisionID returns a fresh "dec_" + 12 hex char identifier.
func NewDecisionID() string {
	return "dec_" + short()
}

// NewCaseID returns a fresh "case_" + 12 hex char identifier.
func NewCaseID() string {
	return "case_" + short()
}
