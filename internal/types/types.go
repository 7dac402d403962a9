// Package types defines core data structures for mailspend.
package types

// Record kinds produced by reconciliation. A classification result maps to
// exactly one of these, never both.
const (
	KindSubscription = "SUBSCRIPTION"
	KindExpense      = "EXPENSE"
)

// Billing frequency constants.
const (
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
	FrequencyYearly  = "YEARLY"
)

// Subscription status constants.
const (
	StatusActive    = "ACTIVE"
	StatusCancelled = "CANCELLED"
	StatusPaused    = "PAUSED"
)

// ValidFrequencies is the set of allowed billing frequency values.
var ValidFrequencies = []string{FrequencyWeekly, FrequencyMonthly, FrequencyYearly}

// IsValidFrequency checks if a billing frequency string is valid.
func IsValidFrequency(f string) bool {
	for _, v := range ValidFrequencies {
		if v == f {
			return true
		}
	}
	return false
}

// Subscription is a recurring payment detected from email and persisted
// to the local store.
type Subscription struct {
	ID          string  `json:"id"`
	Account     string  `json:"account"`
	Service     string  `json:"service"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Frequency   string  `json:"frequency"`
	Category    string  `json:"category,omitempty"`
	LastBilled  string  `json:"last_billed,omitempty"`
	NextBilling string  `json:"next_billing,omitempty"`
	Status      string  `json:"status"`
	Confidence  int     `json:"confidence"`
	MessageID   string  `json:"message_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// Expense is a one-time purchase detected from email.
type Expense struct {
	ID          string  `json:"id"`
	Account     string  `json:"account"`
	Merchant    string  `json:"merchant"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	ReceiptID   string  `json:"receipt_id,omitempty"`
	Confidence  int     `json:"confidence"`
	MessageID   string  `json:"message_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// Candidate is the sync-facing projection of a subscription record:
// one row per detected subscription, ranked by confidence.
type Candidate struct {
	MessageID  string  `json:"message_id"`
	Account    string  `json:"account"`
	Service    string  `json:"service"`
	Amount     float64 `json:"amount"`
	Date       string  `json:"date"`
	Confidence int     `json:"confidence"`
}

// SyncResult holds the outcome of scanning a single account.
type SyncResult struct {
	Account    string      `json:"account"`
	Scanned    int         `json:"scanned"`
	Fetched    int         `json:"fetched"`
	Skipped    int         `json:"skipped"`
	Truncated  bool        `json:"truncated,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Expenses   []Expense   `json:"expenses,omitempty"`
	// Warning is set when the pipeline degraded (e.g. classifier outage)
	// so callers can tell "nothing matched" apart from "classification failed".
	Warning string `json:"warning,omitempty"`
}

// SyncSummary holds the result of scanning all accounts.
type SyncSummary struct {
	Accounts   []SyncResult `json:"accounts"`
	TotalFound int          `json:"total_found"`
}
