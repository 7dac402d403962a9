package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailspend/mailspend/internal/display"
)

type statusOutput struct {
	Accounts      []statusAccount `json:"accounts"`
	Candidates    int             `json:"candidates"`
	Subscriptions int             `json:"subscriptions"`
	Expenses      int             `json:"expenses"`
	MonthlyTotal  float64         `json:"monthly_total"`
}

type statusAccount struct {
	Account   string `json:"account"`
	Connected bool   `json:"connected"`
	Expired   bool   `json:"expired"`
	LastSync  string `json:"last_sync,omitempty"`
	LastFound int    `json:"last_found"`
	Warning   string `json:"warning,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show connected accounts and tracking summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := db.Accounts()
		if err != nil {
			return err
		}

		states := make([]statusAccount, 0, len(accounts))
		for _, acc := range accounts {
			st := statusAccount{Account: acc}

			mgr, err := newTokenManager(acc)
			if err == nil {
				st.Connected = mgr.Connected()
				st.Expired = mgr.IsExpired()
			} else {
				// No OAuth client configured; report stored state only.
				row, _ := db.LoadToken(acc)
				st.Connected = row != nil
				st.Expired = row == nil || row.ExpiresAtMS <= time.Now().UnixMilli()
			}

			if entry, err := db.LastSyncLog(acc); err == nil && entry != nil {
				st.LastSync = entry.StartedAt
				st.LastFound = entry.Found
				st.Warning = entry.Warning
			}
			states = append(states, st)
		}

		cands, _ := db.ListCandidates("")
		out := statusOutput{
			Accounts:      states,
			Candidates:    len(cands),
			Subscriptions: db.SubscriptionCount(""),
			Expenses:      db.ExpenseCount(""),
			MonthlyTotal:  db.MonthlySubscriptionTotal(),
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		display.Header("Mailspend Status")
		fmt.Println()

		fmt.Println("  Accounts")
		if len(states) == 0 {
			fmt.Printf("    %s\n", display.Dim.Render("none connected — run 'mailspend connect ACCOUNT'"))
		}
		for _, s := range states {
			mark := display.Success.Render("●")
			note := "connected"
			if !s.Connected {
				mark = display.ErrStyle.Render("○")
				note = "not connected"
			} else if s.Expired {
				mark = display.WarnTxt.Render("◐")
				note = "token expired, will refresh"
			}
			syncInfo := ""
			if s.LastSync != "" {
				syncInfo = fmt.Sprintf("(last sync: %s, %d found)", display.TimeAgo(s.LastSync), s.LastFound)
			}
			fmt.Printf("    %s %-28s %-26s %s\n", mark, s.Account, note, display.Dim.Render(syncInfo))
			if s.Warning != "" {
				display.WarnMsg("    last sync degraded: %s", s.Warning)
			}
		}
		fmt.Println()

		fmt.Println("  Tracking")
		fmt.Printf("    Candidates:     %3d\n", out.Candidates)
		fmt.Printf("    Subscriptions:  %3d\n", out.Subscriptions)
		fmt.Printf("    Expenses:       %3d\n", out.Expenses)
		fmt.Printf("    Monthly total:  %s\n", display.Bold.Render(display.Money(out.MonthlyTotal, "USD")))
		fmt.Println()

		fmt.Printf("  %s\n", display.Dim.Render("Use 'mailspend sync' to scan, 'mailspend candidates' to review."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
