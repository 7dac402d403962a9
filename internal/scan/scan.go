// Package scan drives the end-to-end sync pipeline for one mailbox
// account: authenticate, select candidates, fetch bodies, classify in
// batches, reconcile and rank.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mailspend/mailspend/internal/classify"
	"github.com/mailspend/mailspend/internal/config"
	"github.com/mailspend/mailspend/internal/mailbox"
	"github.com/mailspend/mailspend/internal/reconcile"
	"github.com/mailspend/mailspend/internal/retry"
	"github.com/mailspend/mailspend/internal/selector"
	"github.com/mailspend/mailspend/internal/store"
	"github.com/mailspend/mailspend/internal/token"
	"github.com/mailspend/mailspend/internal/types"
)

// Mailbox is the slice of the mailbox client the scanner needs.
type Mailbox interface {
	ListMessageIDs(ctx context.Context, query string, pageSize int64, pageToken string) (*mailbox.ListPage, error)
	GetMessagesBulk(ctx context.Context, ids []string) []*gm.Message
}

// Store is the persistence the scanner touches during a sync.
type Store interface {
	ListSubscriptions(account string) ([]*types.Subscription, error)
	ReplaceCandidates(account string, cands []types.Candidate) error
	InsertSyncLog(e *store.SyncLogEntry) error
}

// MailboxFactory builds a mailbox client for an authenticated account.
type MailboxFactory func(ctx context.Context, accessToken string) (Mailbox, error)

// Scanner runs the sync pipeline. All state is per account; scanners for
// different accounts can run concurrently.
type Scanner struct {
	cfg        *config.Config
	store      Store
	classifier classify.Classifier
	newMailbox MailboxFactory
	log        zerolog.Logger
	now        func() time.Time
}

// New builds a scanner with the default Gmail-backed mailbox factory.
func New(cfg *config.Config, st Store, classifier classify.Classifier, log zerolog.Logger) *Scanner {
	s := &Scanner{
		cfg:        cfg,
		store:      st,
		classifier: classifier,
		log:        log,
		now:        time.Now,
	}
	s.newMailbox = func(ctx context.Context, accessToken string) (Mailbox, error) {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		return mailbox.NewClient(ctx, log,
			retry.Policy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff},
			option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	}
	return s
}

// SetMailboxFactory overrides how mailbox clients are built. Used by tests.
func (s *Scanner) SetMailboxFactory(f MailboxFactory) { s.newMailbox = f }

// SetClock overrides the time source. Used by tests.
func (s *Scanner) SetClock(now func() time.Time) { s.now = now }

// Sync runs one pass for an account. Authentication failure is the only
// error that aborts; every later stage degrades to fewer results. A
// classifier outage yields an empty candidate list with Warning set, never
// a failed sync.
func (s *Scanner) Sync(ctx context.Context, account string, tokens *token.Manager) (*types.SyncResult, error) {
	log := s.log.With().Str("account", account).Logger()
	result := &types.SyncResult{Account: account}

	accessToken, err := tokens.ValidToken(ctx)
	if err != nil {
		if errors.Is(err, token.ErrNotAuthenticated) {
			return nil, fmt.Errorf("account %s: %w", account, err)
		}
		return nil, fmt.Errorf("account %s: ensure token: %w", account, err)
	}

	mb, err := s.newMailbox(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("account %s: mailbox client: %w", account, err)
	}

	ids, err := s.selectCandidates(ctx, mb)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", account, err)
	}
	result.Scanned = len(ids)

	ids, truncated := selector.CapIDs(ids, s.cfg.MessageCap)
	result.Truncated = truncated
	if truncated {
		log.Info().Int("cap", s.cfg.MessageCap).Int("matched", result.Scanned).
			Msg("candidate list capped, sync is partial")
	}

	if len(ids) == 0 {
		log.Debug().Msg("no payment candidates matched")
		s.finish(account, result)
		return result, nil
	}

	msgs := mb.GetMessagesBulk(ctx, ids)
	result.Fetched = len(msgs)

	items := classify.BuildBatchItems(msgs, account, s.cfg.MaxContentLen)
	result.Skipped = len(msgs) - len(items)
	if len(items) == 0 {
		log.Debug().Int("fetched", result.Fetched).Msg("no classifiable content")
		s.finish(account, result)
		return result, nil
	}

	results := s.classifyBatches(ctx, items, result, log)

	now := s.now()
	subs, exps := reconcile.Reconcile(results, account, now)
	for _, e := range exps {
		result.Expenses = append(result.Expenses, *e)
	}

	cands := reconcile.FilterAndRank(subs, s.cfg.MinConfidence, now.UTC().Format("2006-01-02"))

	existing, err := s.store.ListSubscriptions(account)
	if err != nil {
		log.Warn().Err(err).Msg("could not load existing subscriptions, skipping dedup")
	} else {
		cands = reconcile.DedupeCandidates(cands, existing)
	}
	result.Candidates = cands

	s.finish(account, result)
	return result, nil
}

// selectCandidates pages through the search until exhaustion or the cap.
func (s *Scanner) selectCandidates(ctx context.Context, mb Mailbox) ([]string, error) {
	query := selector.SubscriptionQuery(s.cfg.SearchWindow)

	var ids []string
	pageToken := ""
	for {
		page, err := mb.ListMessageIDs(ctx, query, s.cfg.PageSize, pageToken)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page.IDs...)
		if page.NextPageToken == "" || len(ids) >= s.cfg.MessageCap {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// classifyBatches submits bounded-size batches. A failed batch degrades to
// zero results for its items with a logged warning; other batches still run.
func (s *Scanner) classifyBatches(ctx context.Context, items []classify.BatchItem, result *types.SyncResult, log zerolog.Logger) []classify.Result {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(items)
	}

	var all []classify.Result
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		results, err := s.classifier.ClassifyBatch(ctx, batch)
		if err != nil {
			var shapeErr *classify.ShapeError
			switch {
			case errors.As(err, &shapeErr):
				log.Warn().Err(err).Msg("classifier returned unexpected shape")
			case errors.Is(err, classify.ErrUnavailable):
				log.Warn().Err(err).Int("batch_size", len(batch)).Msg("classifier call failed")
			default:
				log.Warn().Err(err).Msg("classification error")
			}
			result.Warning = "classification degraded: " + err.Error()
			continue
		}
		all = append(all, results...)
	}
	return all
}

// finish persists the candidates and the sync log entry. Persistence
// failures are logged, not surfaced: the sync result is already computed.
func (s *Scanner) finish(account string, result *types.SyncResult) {
	if err := s.store.ReplaceCandidates(account, result.Candidates); err != nil {
		s.log.Warn().Err(err).Str("account", account).Msg("could not persist candidates")
	}
	if err := s.store.InsertSyncLog(&store.SyncLogEntry{
		Account: account,
		Scanned: result.Scanned,
		Found:   len(result.Candidates),
		Warning: result.Warning,
	}); err != nil {
		s.log.Warn().Err(err).Str("account", account).Msg("could not write sync log")
	}
}
