package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// ContentHash computes the change-detection hash for entry content. The HTML
// is stripped and whitespace collapsed first so that whitespace-only feed
// re-renders do not churn the hash.
func ContentHash(content string) string {
	normalized := stripPolicy.Sanitize(content)
	normalized = strings.Join(strings.Fields(normalized), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
