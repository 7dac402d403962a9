// Package token manages the OAuth2 token lifecycle for one mailbox account:
// code exchange, expiry tracking, refresh and durable persistence.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/mailspend/mailspend/internal/retry"
	"github.com/mailspend/mailspend/internal/store"
)

// ErrNotAuthenticated means there is no valid or refreshable token for the
// account. The caller must re-run the full authorization flow.
var ErrNotAuthenticated = errors.New("not authenticated")

// ExchangeError wraps a failed code exchange. The code is un-marked so a
// fresh callback with the same code can be retried.
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string { return fmt.Sprintf("token exchange failed: %v", e.Err) }
func (e *ExchangeError) Unwrap() error { return e.Err }

// Store is the durable persistence the manager mirrors token state into.
type Store interface {
	SaveToken(*store.TokenRow) error
	LoadToken(account string) (*store.TokenRow, error)
	DeleteToken(account string) error
}

// Manager owns the token state for exactly one account connection.
// State is never shared across accounts.
type Manager struct {
	account string
	config  *oauth2.Config
	store   Store
	log     zerolog.Logger
	now     func() time.Time
	policy  retry.Policy

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAtMS  int64
	processed    map[string]struct{}
}

// NewManager builds a manager for one account, restoring any persisted
// token state so a process restart does not force re-authorization.
func NewManager(account string, config *oauth2.Config, st Store, policy retry.Policy, log zerolog.Logger) (*Manager, error) {
	m := &Manager{
		account:   account,
		config:    config,
		store:     st,
		log:       log.With().Str("account", account).Logger(),
		now:       time.Now,
		policy:    policy,
		processed: make(map[string]struct{}),
	}

	row, err := st.LoadToken(account)
	if err != nil {
		return nil, fmt.Errorf("load token state: %w", err)
	}
	if row != nil {
		m.accessToken = row.AccessToken
		m.refreshToken = row.RefreshToken
		m.expiresAtMS = row.ExpiresAtMS
	}
	return m, nil
}

// SetClock overrides the time source. Used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Connected reports whether any token state exists for the account.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken != "" || m.refreshToken != ""
}

// IsExpired reports whether the access token can no longer be used: either
// no expiry was ever recorded, or the current instant is at or past it.
func (m *Manager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isExpiredLocked()
}

func (m *Manager) isExpiredLocked() bool {
	if m.expiresAtMS == 0 {
		return true
	}
	return m.now().UnixMilli() >= m.expiresAtMS
}

// ValidToken returns an access token that is valid right now, refreshing
// first when the stored one has expired. Returns ErrNotAuthenticated when
// there is nothing to refresh with.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if !m.isExpiredLocked() && m.accessToken != "" {
		tok := m.accessToken
		m.mu.Unlock()
		return tok, nil
	}
	refresh := m.refreshToken
	m.mu.Unlock()

	if refresh == "" {
		return "", ErrNotAuthenticated
	}
	if err := m.Refresh(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken, nil
}

// ExchangeCode exchanges a one-time authorization code for tokens. A code
// that was already exchanged in this process is a no-op: duplicate callback
// deliveries must not trigger a second exchange. The code is claimed before
// the network call and released again on failure so a retry with the same
// callback remains possible.
func (m *Manager) ExchangeCode(ctx context.Context, code string) error {
	m.mu.Lock()
	if _, seen := m.processed[code]; seen {
		m.mu.Unlock()
		m.log.Debug().Msg("authorization code already processed, skipping exchange")
		return nil
	}
	m.processed[code] = struct{}{}
	m.mu.Unlock()

	// Never auto-retried: the code is single-use at the provider.
	tok, err := m.config.Exchange(ctx, code)
	if err != nil {
		m.mu.Lock()
		delete(m.processed, code)
		m.mu.Unlock()
		return &ExchangeError{Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		m.refreshToken = tok.RefreshToken
	}
	m.expiresAtMS = tok.Expiry.UnixMilli()
	return m.persistLocked()
}

// Refresh obtains a new access token using the refresh token. On a rejected
// refresh token all state is cleared and ErrNotAuthenticated is surfaced;
// transient failures are retried per the uniform retry policy.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refresh := m.refreshToken
	m.mu.Unlock()

	if refresh == "" {
		return ErrNotAuthenticated
	}

	var tok *oauth2.Token
	err := retry.Do(ctx, m.policy, func() error {
		src := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh})
		t, err := src.Token()
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
				// Provider rejected the grant; retrying cannot help.
				return retry.Stop(err)
			}
			return err
		}
		tok = t
		return nil
	})
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			m.log.Warn().Int("status", re.Response.StatusCode).Msg("refresh token rejected, clearing token state")
			m.clear()
			return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = tok.AccessToken
	// The provider may not re-issue a refresh token; keep the existing one.
	if tok.RefreshToken != "" {
		m.refreshToken = tok.RefreshToken
	}
	m.expiresAtMS = tok.Expiry.UnixMilli()
	return m.persistLocked()
}

// Disconnect clears all token state in memory and in the store.
func (m *Manager) Disconnect() error {
	m.clear()
	return nil
}

// Token returns an oauth2 token for building provider clients. The caller
// should obtain it via ValidToken first so expiry has been handled.
func (m *Manager) Token() *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &oauth2.Token{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.UnixMilli(m.expiresAtMS),
	}
}

// ExpiresAt returns the recorded expiry as epoch milliseconds (0 = none).
func (m *Manager) ExpiresAt() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAtMS
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAtMS = 0
	m.mu.Unlock()
	if err := m.store.DeleteToken(m.account); err != nil {
		m.log.Warn().Err(err).Msg("could not clear persisted token state")
	}
}

func (m *Manager) persistLocked() error {
	return m.store.SaveToken(&store.TokenRow{
		Account:      m.account,
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
		ExpiresAtMS:  m.expiresAtMS,
	})
}
