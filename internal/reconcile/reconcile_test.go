package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mailspend/mailspend/internal/classify"
	"github.com/mailspend/mailspend/internal/types"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func TestReconcileDisjointPartition(t *testing.T) {
	t.Parallel()

	results := []classify.Result{
		{Kind: "SUBSCRIPTION", Name: "Netflix", Confidence: 90},
		{Kind: "subscription", Name: "Spotify", Confidence: 80},
		{Kind: "EXPENSE", Name: "Amazon", Confidence: 70},
		{Kind: "something-else", Name: "Mystery", Confidence: 10},
		{Kind: "", Name: "Blank", Confidence: 0},
	}

	subs, exps := Reconcile(results, "a@b.com", testNow)
	require.Len(t, subs, 2)
	require.Len(t, exps, 3)
	// Every result lands in exactly one bucket.
	require.Equal(t, len(results), len(subs)+len(exps))

	// Unknown discriminators fall through to expense, keeping their confidence.
	require.Equal(t, "Mystery", exps[1].Merchant)
	require.Equal(t, 10, exps[1].Confidence)
}

func TestReconcileSubscriptionDefaults(t *testing.T) {
	t.Parallel()

	subs, _ := Reconcile([]classify.Result{
		{Kind: "SUBSCRIPTION", Name: "Netflix", Confidence: 85},
	}, "a@b.com", testNow)
	require.Len(t, subs, 1)

	s := subs[0]
	require.Equal(t, "USD", s.Currency)
	require.Equal(t, types.FrequencyMonthly, s.Frequency)
	require.Equal(t, types.StatusActive, s.Status)
	require.Equal(t, "a@b.com", s.Account)
}

func TestReconcileInvalidFrequencyFallsBack(t *testing.T) {
	t.Parallel()

	subs, _ := Reconcile([]classify.Result{
		{Kind: "SUBSCRIPTION", Name: "X", Frequency: "fortnightly", Confidence: 50},
	}, "a@b.com", testNow)
	require.Equal(t, types.FrequencyMonthly, subs[0].Frequency)

	subs, _ = Reconcile([]classify.Result{
		{Kind: "SUBSCRIPTION", Name: "Y", Frequency: "yearly", Confidence: 50},
	}, "a@b.com", testNow)
	require.Equal(t, types.FrequencyYearly, subs[0].Frequency)
}

func TestReconcileExpenseDefaults(t *testing.T) {
	t.Parallel()

	_, exps := Reconcile([]classify.Result{
		{Kind: "EXPENSE", Name: "Amazon", Confidence: 60},
	}, "a@b.com", testNow)
	require.Len(t, exps, 1)

	e := exps[0]
	require.Equal(t, "USD", e.Currency)
	require.Equal(t, "2025-06-02", e.Date)

	// A stated date is preserved.
	_, exps = Reconcile([]classify.Result{
		{Kind: "EXPENSE", Name: "Amazon", Date: "2025-05-30", Confidence: 60},
	}, "a@b.com", testNow)
	require.Equal(t, "2025-05-30", exps[0].Date)
}

func TestFilterAndRank(t *testing.T) {
	t.Parallel()

	subs := []*types.Subscription{
		{Service: "Low", Confidence: 20, MessageID: "m1"},
		{Service: "High", Confidence: 95, MessageID: "m2"},
		{Service: "Mid", Confidence: 60, MessageID: "m3"},
		{Service: "AtThreshold", Confidence: 40, MessageID: "m4"},
	}

	cands := FilterAndRank(subs, 40, "2025-06-02")
	require.Len(t, cands, 3)
	require.Equal(t, "High", cands[0].Service)
	require.Equal(t, "Mid", cands[1].Service)
	require.Equal(t, "AtThreshold", cands[2].Service)
}

func TestFilterAndRankStableOnTies(t *testing.T) {
	t.Parallel()

	subs := []*types.Subscription{
		{Service: "First", Confidence: 80, MessageID: "m1"},
		{Service: "Second", Confidence: 80, MessageID: "m2"},
		{Service: "Third", Confidence: 80, MessageID: "m3"},
	}

	cands := FilterAndRank(subs, 40, "2025-06-02")
	require.Equal(t, []string{"First", "Second", "Third"},
		[]string{cands[0].Service, cands[1].Service, cands[2].Service})
}

func TestFilterAndRankDateFallback(t *testing.T) {
	t.Parallel()

	subs := []*types.Subscription{
		{Service: "A", Confidence: 80, NextBilling: "2025-07-01"},
		{Service: "B", Confidence: 80},
	}

	cands := FilterAndRank(subs, 40, "2025-06-02")
	require.Equal(t, "2025-07-01", cands[0].Date)
	require.Equal(t, "2025-06-02", cands[1].Date)
}

func TestDedupeCandidates(t *testing.T) {
	t.Parallel()

	existing := []*types.Subscription{
		{Account: "a@b.com", Service: "Netflix", Amount: 15.99},
	}
	cands := []types.Candidate{
		{Account: "a@b.com", Service: "Netflix", Amount: 15.99},     // exact duplicate
		{Account: "a@b.com", Service: "NETFLIX HD", Amount: 15.99},  // near name, same amount
		{Account: "a@b.com", Service: "Netflix", Amount: 22.99},     // same name, new price
		{Account: "other@b.com", Service: "Netflix", Amount: 15.99}, // different account
		{Account: "a@b.com", Service: "Spotify", Amount: 15.99},     // different service
	}

	kept := DedupeCandidates(cands, existing)
	require.Len(t, kept, 3)
	require.Equal(t, "Netflix", kept[0].Service)
	require.InDelta(t, 22.99, kept[0].Amount, 0.001)
	require.Equal(t, "other@b.com", kept[1].Account)
	require.Equal(t, "Spotify", kept[2].Service)
}

func TestDedupeCandidatesNoExisting(t *testing.T) {
	t.Parallel()

	cands := []types.Candidate{{Account: "a@b.com", Service: "Netflix", Amount: 15.99}}
	require.Equal(t, cands, DedupeCandidates(cands, nil))
}
