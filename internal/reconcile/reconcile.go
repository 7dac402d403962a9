// Package reconcile converts classifier output into domain records,
// applies defaults, filters by confidence and deduplicates against
// existing state. Default application lives here and nowhere else so the
// single-message and batch paths cannot drift.
package reconcile

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/mailspend/mailspend/internal/classify"
	"github.com/mailspend/mailspend/internal/types"
)

// DefaultMinConfidence is the threshold below which subscription results
// are not surfaced as candidates.
const DefaultMinConfidence = 40

// dedupeMaxDistance is the edit-distance ceiling under which two service
// names are considered the same subscription.
const dedupeMaxDistance = 2

// Reconcile maps each classification result to exactly one record. A
// result discriminated "SUBSCRIPTION" (case-insensitive) becomes a
// subscription; everything else, including unknown or missing
// discriminators, becomes an expense. There is no third shape: an
// ambiguous result still produces an expense carrying its (possibly zero)
// confidence, and callers filter on confidence downstream.
func Reconcile(results []classify.Result, account string, now time.Time) ([]*types.Subscription, []*types.Expense) {
	var subs []*types.Subscription
	var exps []*types.Expense

	for _, r := range results {
		if strings.EqualFold(r.Kind, types.KindSubscription) {
			subs = append(subs, toSubscription(r, account))
			continue
		}
		exps = append(exps, toExpense(r, account, now))
	}
	return subs, exps
}

func toSubscription(r classify.Result, account string) *types.Subscription {
	s := &types.Subscription{
		Account:     account,
		Service:     r.Name,
		Amount:      r.Amount,
		Currency:    defaultStr(r.Currency, "USD"),
		Frequency:   defaultStr(strings.ToUpper(r.Frequency), types.FrequencyMonthly),
		Category:    r.Category,
		LastBilled:  r.LastBilled,
		NextBilling: r.NextBilling,
		Status:      defaultStr(strings.ToUpper(r.Status), types.StatusActive),
		Confidence:  r.Confidence,
		MessageID:   r.MessageID,
	}
	if !types.IsValidFrequency(s.Frequency) {
		s.Frequency = types.FrequencyMonthly
	}
	return s
}

func toExpense(r classify.Result, account string, now time.Time) *types.Expense {
	return &types.Expense{
		Account:     account,
		Merchant:    r.Name,
		Amount:      r.Amount,
		Currency:    defaultStr(r.Currency, "USD"),
		Date:        defaultStr(r.Date, now.UTC().Format("2006-01-02")),
		Category:    r.Category,
		Description: r.Description,
		ReceiptID:   r.ReceiptID,
		Confidence:  r.Confidence,
		MessageID:   r.MessageID,
	}
}

// FilterAndRank retains subscriptions at or above the confidence threshold,
// projects them into candidates and sorts descending by confidence. The
// sort is stable: equal confidence keeps batch order. The representative
// date is the next billing date when known, else today.
func FilterAndRank(subs []*types.Subscription, minConfidence int, today string) []types.Candidate {
	var cands []types.Candidate
	for _, s := range subs {
		if s.Confidence < minConfidence {
			continue
		}
		cands = append(cands, types.Candidate{
			MessageID:  s.MessageID,
			Account:    s.Account,
			Service:    s.Service,
			Amount:     s.Amount,
			Date:       defaultStr(s.NextBilling, today),
			Confidence: s.Confidence,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})
	return cands
}

// DedupeCandidates drops candidates that match an already-stored
// subscription: same normalized service name within a small edit distance
// and the same amount. The stored record wins; a re-detected subscription
// is not a new one.
func DedupeCandidates(cands []types.Candidate, existing []*types.Subscription) []types.Candidate {
	if len(existing) == 0 {
		return cands
	}

	kept := make([]types.Candidate, 0, len(cands))
	for _, c := range cands {
		if matchesExisting(c, existing) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func matchesExisting(c types.Candidate, existing []*types.Subscription) bool {
	name := normalizeName(c.Service)
	if name == "" {
		return false
	}
	for _, s := range existing {
		if s.Account != c.Account {
			continue
		}
		if levenshtein.ComputeDistance(name, normalizeName(s.Service)) > dedupeMaxDistance {
			continue
		}
		if math.Abs(s.Amount-c.Amount) < 0.01 {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
