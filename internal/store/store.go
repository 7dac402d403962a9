// Package store provides SQLite storage for mailspend.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mailspend/mailspend/internal/types"
)

// DB wraps a SQLite connection for mailspend operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a mailspend database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// GenID generates a random record ID.
func GenID() string {
	return uuid.NewString()
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DiscoverDB finds the mailspend database by walking up from cwd.
// Returns the path to .mailspend/mailspend.db or empty string if not found.
func DiscoverDB() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".mailspend", "mailspend.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to the per-user location.
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".mailspend", "mailspend.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// DefaultDBPath returns the per-user database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mailspend", "mailspend.db")
	}
	return filepath.Join(home, ".mailspend", "mailspend.db")
}

// --- Token operations ---

// TokenRow is the persisted token state for one account.
type TokenRow struct {
	Account      string
	AccessToken  string
	RefreshToken string
	ExpiresAtMS  int64
	UpdatedAt    string
}

// SaveToken upserts the token state for an account.
func (d *DB) SaveToken(t *TokenRow) error {
	_, err := d.conn.Exec(`
		INSERT INTO tokens (account, access_token, refresh_token, expires_at_ms, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at_ms = excluded.expires_at_ms,
			updated_at = excluded.updated_at`,
		t.Account, t.AccessToken, t.RefreshToken, t.ExpiresAtMS, Now(),
	)
	return err
}

// LoadToken returns the token state for an account, or nil if absent.
func (d *DB) LoadToken(account string) (*TokenRow, error) {
	t := &TokenRow{Account: account}
	var refresh sql.NullString
	err := d.conn.QueryRow(`
		SELECT access_token, refresh_token, expires_at_ms, updated_at
		FROM tokens WHERE account = ?`, account).
		Scan(&t.AccessToken, &refresh, &t.ExpiresAtMS, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.RefreshToken = refresh.String
	return t, nil
}

// DeleteToken removes all token state for an account.
func (d *DB) DeleteToken(account string) error {
	_, err := d.conn.Exec("DELETE FROM tokens WHERE account = ?", account)
	return err
}

// Accounts returns all accounts with stored token state.
func (d *DB) Accounts() ([]string, error) {
	rows, err := d.conn.Query("SELECT account FROM tokens ORDER BY account")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// --- Subscription operations ---

// InsertSubscription inserts a subscription record.
func (d *DB) InsertSubscription(s *types.Subscription) error {
	if s.ID == "" {
		s.ID = GenID()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO subscriptions
			(id, account, service, amount, currency, frequency, category,
			 last_billed, next_billing, status, confidence, message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Account, s.Service, s.Amount, s.Currency, s.Frequency, s.Category,
		s.LastBilled, s.NextBilling, s.Status, s.Confidence, s.MessageID, s.CreatedAt,
	)
	return err
}

// ListSubscriptions returns subscriptions, optionally filtered by account.
func (d *DB) ListSubscriptions(account string) ([]*types.Subscription, error) {
	query := `
		SELECT id, account, service, amount, currency, frequency, category,
		       last_billed, next_billing, status, confidence, message_id, created_at
		FROM subscriptions`
	args := []any{}
	if account != "" {
		query += " WHERE account = ?"
		args = append(args, account)
	}
	query += " ORDER BY service"

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.Subscription
	for rows.Next() {
		s := &types.Subscription{}
		var category, lastBilled, nextBilling, messageID sql.NullString
		if err := rows.Scan(
			&s.ID, &s.Account, &s.Service, &s.Amount, &s.Currency, &s.Frequency,
			&category, &lastBilled, &nextBilling, &s.Status, &s.Confidence,
			&messageID, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.Category = category.String
		s.LastBilled = lastBilled.String
		s.NextBilling = nextBilling.String
		s.MessageID = messageID.String
		result = append(result, s)
	}
	return result, rows.Err()
}

// SubscriptionCount returns the number of subscription records for an account
// ("" counts all).
func (d *DB) SubscriptionCount(account string) int {
	var n int
	if account == "" {
		d.conn.QueryRow("SELECT COUNT(*) FROM subscriptions").Scan(&n)
	} else {
		d.conn.QueryRow("SELECT COUNT(*) FROM subscriptions WHERE account = ?", account).Scan(&n)
	}
	return n
}

// MonthlySubscriptionTotal sums the amount of active monthly subscriptions.
func (d *DB) MonthlySubscriptionTotal() float64 {
	var total sql.NullFloat64
	d.conn.QueryRow(`
		SELECT SUM(amount) FROM subscriptions
		WHERE status = 'ACTIVE' AND frequency = 'MONTHLY'`).Scan(&total)
	return total.Float64
}

// --- Expense operations ---

// InsertExpense inserts an expense record.
func (d *DB) InsertExpense(e *types.Expense) error {
	if e.ID == "" {
		e.ID = GenID()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO expenses
			(id, account, merchant, amount, currency, date, category,
			 description, receipt_id, confidence, message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Account, e.Merchant, e.Amount, e.Currency, e.Date, e.Category,
		e.Description, e.ReceiptID, e.Confidence, e.MessageID, e.CreatedAt,
	)
	return err
}

// ListExpenses returns expenses ordered by date, optionally filtered by account.
func (d *DB) ListExpenses(account string, limit int) ([]*types.Expense, error) {
	query := `
		SELECT id, account, merchant, amount, currency, date, category,
		       description, receipt_id, confidence, message_id, created_at
		FROM expenses`
	args := []any{}
	if account != "" {
		query += " WHERE account = ?"
		args = append(args, account)
	}
	query += " ORDER BY date DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.Expense
	for rows.Next() {
		e := &types.Expense{}
		var category, description, receiptID, messageID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Account, &e.Merchant, &e.Amount, &e.Currency, &e.Date,
			&category, &description, &receiptID, &e.Confidence, &messageID, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Category = category.String
		e.Description = description.String
		e.ReceiptID = receiptID.String
		e.MessageID = messageID.String
		result = append(result, e)
	}
	return result, rows.Err()
}

// HasExpenseForMessage reports whether an expense from this message was
// already recorded. Used to keep repeated syncs from double-booking.
func (d *DB) HasExpenseForMessage(messageID, account string) bool {
	if messageID == "" {
		return false
	}
	var n int
	d.conn.QueryRow(
		"SELECT COUNT(*) FROM expenses WHERE message_id = ? AND account = ?",
		messageID, account).Scan(&n)
	return n > 0
}

// ExpenseCount returns the number of expense records for an account ("" counts all).
func (d *DB) ExpenseCount(account string) int {
	var n int
	if account == "" {
		d.conn.QueryRow("SELECT COUNT(*) FROM expenses").Scan(&n)
	} else {
		d.conn.QueryRow("SELECT COUNT(*) FROM expenses WHERE account = ?", account).Scan(&n)
	}
	return n
}

// --- Candidate operations ---

// ReplaceCandidates replaces the stored candidates for an account with the
// results of the latest sync.
func (d *DB) ReplaceCandidates(account string, cands []types.Candidate) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM candidates WHERE account = ?", account); err != nil {
		return err
	}
	now := Now()
	for _, c := range cands {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO candidates
				(message_id, account, service, amount, date, confidence, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.MessageID, account, c.Service, c.Amount, c.Date, c.Confidence, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListCandidates returns stored candidates ordered by confidence descending.
func (d *DB) ListCandidates(account string) ([]types.Candidate, error) {
	query := `
		SELECT message_id, account, service, amount, date, confidence
		FROM candidates`
	args := []any{}
	if account != "" {
		query += " WHERE account = ?"
		args = append(args, account)
	}
	query += " ORDER BY confidence DESC, service"

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []types.Candidate
	for rows.Next() {
		var c types.Candidate
		var date sql.NullString
		if err := rows.Scan(&c.MessageID, &c.Account, &c.Service, &c.Amount, &date, &c.Confidence); err != nil {
			return nil, err
		}
		c.Date = date.String
		result = append(result, c)
	}
	return result, rows.Err()
}

// DeleteCandidate removes one candidate after promotion or dismissal.
func (d *DB) DeleteCandidate(messageID, account string) error {
	_, err := d.conn.Exec(
		"DELETE FROM candidates WHERE message_id = ? AND account = ?", messageID, account)
	return err
}

// --- Sync log operations ---

// SyncLogEntry records the outcome of one sync pass.
type SyncLogEntry struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	Scanned   int    `json:"scanned"`
	Found     int    `json:"found"`
	Warning   string `json:"warning,omitempty"`
	StartedAt string `json:"started_at"`
}

// InsertSyncLog records a completed sync pass.
func (d *DB) InsertSyncLog(e *SyncLogEntry) error {
	if e.ID == "" {
		e.ID = GenID()
	}
	if e.StartedAt == "" {
		e.StartedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO sync_log (id, account, scanned, found, warning, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Account, e.Scanned, e.Found, e.Warning, e.StartedAt,
	)
	return err
}

// LastSyncLog returns the most recent sync log entry for an account, or nil.
func (d *DB) LastSyncLog(account string) (*SyncLogEntry, error) {
	e := &SyncLogEntry{}
	var warning sql.NullString
	err := d.conn.QueryRow(`
		SELECT id, account, scanned, found, warning, started_at
		FROM sync_log WHERE account = ?
		ORDER BY started_at DESC LIMIT 1`, account).
		Scan(&e.ID, &e.Account, &e.Scanned, &e.Found, &warning, &e.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Warning = warning.String
	return e, nil
}
