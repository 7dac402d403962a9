package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailspend/mailspend/internal/classify"
	"github.com/mailspend/mailspend/internal/display"
	"github.com/mailspend/mailspend/internal/scan"
	"github.com/mailspend/mailspend/internal/types"
)

var syncAccount string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan connected accounts for subscriptions and expenses",
	Long: `Scan Gmail for payment-related emails, classify them with the LLM,
and store the resulting subscription candidates and expenses.`,
	Example: `  mailspend sync
  mailspend sync --account user@example.com
  mailspend sync --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var accounts []string
		if syncAccount != "" {
			accounts = []string{syncAccount}
		} else {
			var err error
			accounts, err = db.Accounts()
			if err != nil {
				return err
			}
		}
		if len(accounts) == 0 {
			return fmt.Errorf("no connected accounts — run 'mailspend connect ACCOUNT' first")
		}

		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set")
		}
		classifier := classify.NewOpenAIClassifier(classify.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   cfg.LLMTimeout,
		}, logger)

		scanner := scan.New(cfg, db, classifier, logger)

		summary := &types.SyncSummary{}
		start := time.Now()
		for _, account := range accounts {
			if !quietFlag {
				fmt.Printf("Scanning %s...\n", account)
			}

			mgr, err := newTokenManager(account)
			if err != nil {
				return err
			}

			result, err := scanner.Sync(ctx, account, mgr)
			if err != nil {
				return err
			}

			recordExpenses(result)

			summary.Accounts = append(summary.Accounts, *result)
			summary.TotalFound += len(result.Candidates)
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		if !quietFlag {
			fmt.Println()
			for _, r := range summary.Accounts {
				printSyncResult(&r)
			}
			display.SuccessMsg("Done in %s. %d subscription candidate(s) found.",
				time.Since(start).Round(time.Millisecond), summary.TotalFound)
		}
		return nil
	},
}

// recordExpenses persists the one-time expenses detected during a sync.
// Messages already booked are skipped so re-running sync is safe.
func recordExpenses(result *types.SyncResult) {
	for i := range result.Expenses {
		e := &result.Expenses[i]
		if e.Confidence < cfg.MinConfidence {
			continue
		}
		if db.HasExpenseForMessage(e.MessageID, e.Account) {
			continue
		}
		if err := db.InsertExpense(e); err != nil {
			logger.Warn().Err(err).Str("merchant", e.Merchant).Msg("could not record expense")
		}
	}
}

func printSyncResult(r *types.SyncResult) {
	fmt.Printf("  %s\n", display.Bold.Render(display.AccountLabel(r.Account)))
	fmt.Printf("    %s\n", display.Dim.Render(fmt.Sprintf(
		"%d matched, %d fetched, %d skipped", r.Scanned, r.Fetched, r.Skipped)))
	if r.Truncated {
		display.WarnMsg("  scan capped at %d messages; results are partial", cfg.MessageCap)
	}
	if r.Warning != "" {
		display.WarnMsg("  %s", r.Warning)
	}

	for i, c := range r.Candidates {
		connector := "├─"
		if i == 0 {
			connector = "┌─"
		}
		if i == len(r.Candidates)-1 {
			connector = "└─"
		}
		display.CandidateRow(connector, c.Service, display.Money(c.Amount, "USD"), c.Date, c.Confidence)
	}
	fmt.Println()
}

func init() {
	syncCmd.Flags().StringVar(&syncAccount, "account", "", "Sync a single account")
	rootCmd.AddCommand(syncCmd)
}
