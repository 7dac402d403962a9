package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mailspend/mailspend/internal/types"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mailspend.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	loaded, err := db.LoadToken("a@b.com")
	require.NoError(t, err)
	require.Nil(t, loaded)

	require.NoError(t, db.SaveToken(&TokenRow{
		Account:      "a@b.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAtMS:  1234,
	}))

	loaded, err = db.LoadToken("a@b.com")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "access-1", loaded.AccessToken)
	require.Equal(t, "refresh-1", loaded.RefreshToken)
	require.EqualValues(t, 1234, loaded.ExpiresAtMS)

	// Upsert replaces in place.
	require.NoError(t, db.SaveToken(&TokenRow{
		Account:     "a@b.com",
		AccessToken: "access-2",
		ExpiresAtMS: 5678,
	}))
	loaded, err = db.LoadToken("a@b.com")
	require.NoError(t, err)
	require.Equal(t, "access-2", loaded.AccessToken)

	accounts, err := db.Accounts()
	require.NoError(t, err)
	require.Equal(t, []string{"a@b.com"}, accounts)

	require.NoError(t, db.DeleteToken("a@b.com"))
	loaded, err = db.LoadToken("a@b.com")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSubscriptions(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	require.NoError(t, db.InsertSubscription(&types.Subscription{
		Account: "a@b.com", Service: "Netflix", Amount: 15.99,
		Currency: "USD", Frequency: "MONTHLY", Status: "ACTIVE", Confidence: 90,
	}))
	require.NoError(t, db.InsertSubscription(&types.Subscription{
		Account: "a@b.com", Service: "Adobe", Amount: 120,
		Currency: "USD", Frequency: "YEARLY", Status: "ACTIVE", Confidence: 80,
	}))
	require.NoError(t, db.InsertSubscription(&types.Subscription{
		Account: "other@b.com", Service: "Spotify", Amount: 9.99,
		Currency: "USD", Frequency: "MONTHLY", Status: "CANCELLED", Confidence: 70,
	}))

	subs, err := db.ListSubscriptions("a@b.com")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	// Ordered by service name.
	require.Equal(t, "Adobe", subs[0].Service)
	require.NotEmpty(t, subs[0].ID)
	require.NotEmpty(t, subs[0].CreatedAt)

	require.Equal(t, 3, db.SubscriptionCount(""))
	require.Equal(t, 2, db.SubscriptionCount("a@b.com"))

	// Only active monthly subscriptions count toward the total.
	require.InDelta(t, 15.99, db.MonthlySubscriptionTotal(), 0.001)
}

func TestExpenses(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	require.NoError(t, db.InsertExpense(&types.Expense{
		Account: "a@b.com", Merchant: "Amazon", Amount: 42.50,
		Currency: "USD", Date: "2025-06-01", MessageID: "m1",
	}))
	require.NoError(t, db.InsertExpense(&types.Expense{
		Account: "a@b.com", Merchant: "Uber", Amount: 18.00,
		Currency: "USD", Date: "2025-06-02", MessageID: "m2",
	}))

	exps, err := db.ListExpenses("a@b.com", 0)
	require.NoError(t, err)
	require.Len(t, exps, 2)
	// Newest first.
	require.Equal(t, "Uber", exps[0].Merchant)

	exps, err = db.ListExpenses("a@b.com", 1)
	require.NoError(t, err)
	require.Len(t, exps, 1)

	require.Equal(t, 2, db.ExpenseCount("a@b.com"))
	require.True(t, db.HasExpenseForMessage("m1", "a@b.com"))
	require.False(t, db.HasExpenseForMessage("m1", "other@b.com"))
	require.False(t, db.HasExpenseForMessage("", "a@b.com"))
}

func TestReplaceCandidates(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	first := []types.Candidate{
		{MessageID: "m1", Account: "a@b.com", Service: "Netflix", Amount: 15.99, Confidence: 90},
		{MessageID: "m2", Account: "a@b.com", Service: "Spotify", Amount: 9.99, Confidence: 60},
	}
	require.NoError(t, db.ReplaceCandidates("a@b.com", first))

	cands, err := db.ListCandidates("a@b.com")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, "Netflix", cands[0].Service)

	// A new sync replaces the previous candidate set wholesale.
	second := []types.Candidate{
		{MessageID: "m3", Account: "a@b.com", Service: "HBO", Amount: 12.99, Confidence: 75},
	}
	require.NoError(t, db.ReplaceCandidates("a@b.com", second))

	cands, err = db.ListCandidates("a@b.com")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "HBO", cands[0].Service)

	// Replacement is scoped to one account.
	require.NoError(t, db.ReplaceCandidates("other@b.com", []types.Candidate{
		{MessageID: "m9", Account: "other@b.com", Service: "iCloud", Amount: 0.99, Confidence: 50},
	}))
	all, err := db.ListCandidates("")
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, db.DeleteCandidate("m3", "a@b.com"))
	cands, err = db.ListCandidates("a@b.com")
	require.NoError(t, err)
	require.Empty(t, cands)
}

func TestSyncLog(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	last, err := db.LastSyncLog("a@b.com")
	require.NoError(t, err)
	require.Nil(t, last)

	require.NoError(t, db.InsertSyncLog(&SyncLogEntry{
		Account: "a@b.com", Scanned: 40, Found: 3, StartedAt: "2025-06-01T10:00:00Z",
	}))
	require.NoError(t, db.InsertSyncLog(&SyncLogEntry{
		Account: "a@b.com", Scanned: 50, Found: 5,
		Warning: "classification degraded", StartedAt: "2025-06-02T10:00:00Z",
	}))

	last, err = db.LastSyncLog("a@b.com")
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, 50, last.Scanned)
	require.Equal(t, 5, last.Found)
	require.Equal(t, "classification degraded", last.Warning)
}
