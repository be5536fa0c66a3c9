package parsers

import "strings"

// statusKeywordOrder classifies a free-text status string into a
// candidate ReleaseStatus when the target has no explicit status field.
// This is the open-question default documented in SPEC_FULL.md §4.2:
// a single keyword match decides the bucket, checked in this order so
// the most specific signal (raffle) wins over a generic "coming soon".
var statusKeywordOrder = []struct {
	keywords []string
	status   string
}{
	{[]string{"raffle", "enter to win", "drawing", "registration"}, "RAFFLE_OPEN"},
	{[]string{"sold out", "out of stock"}, "SOLD_OUT"},
	{[]string{"restock", "back in stock"}, "RESTOCK"},
	{[]string{"coming soon", "notify me"}, "UPCOMING"},
}

// InferStatus returns the default keyword-based status guess for a raw
// status string, or "" when nothing matches. Parsers may override this
// with retailer-specific logic; it exists purely as a fallback.
func InferStatus(rawStatus string) string {
	lowered := strings.ToLower(rawStatus)
	for _, bucket := range statusKeywordOrder {
		for _, kw := range bucket.keywords {
			if strings.Contains(lowered, kw) {
				return bucket.status
			}
		}
	}
	return ""
}
