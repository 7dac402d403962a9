// Package selector narrows the mailbox to likely payment-related messages.
// It is a heuristic prefilter, not a classifier: it trades recall for
// bounding the volume sent to the expensive classification stage.
package selector

import (
	"fmt"
	"strings"
)

// subjectTerms is the curated set of subject keywords that mark a message
// as a payment candidate.
var subjectTerms = []string{
	"subscription",
	"receipt",
	"invoice",
	"payment",
	"billing",
	"renewal",
	"confirmation",
}

// DefaultWindow bounds candidate age; older messages rarely describe a
// subscription that is still active.
const DefaultWindow = "6m"

// SubscriptionQuery builds the Gmail search expression for payment
// candidates within the given age window (e.g. "6m"). An empty window
// falls back to DefaultWindow.
func SubscriptionQuery(window string) string {
	if window == "" {
		window = DefaultWindow
	}
	return fmt.Sprintf("subject:(%s) newer_than:%s in:inbox",
		strings.Join(subjectTerms, " OR "), window)
}

// CapIDs truncates the candidate list to a hard ceiling to bound per-sync
// cost and latency. The second return reports whether truncation occurred
// so operators can tell the sync was partial.
func CapIDs(ids []string, max int) ([]string, bool) {
	if max <= 0 || len(ids) <= max {
		return ids, false
	}
	return ids[:max], true
}
