package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailspend/mailspend/internal/display"
	"github.com/mailspend/mailspend/internal/types"
)

var (
	candidatesAccount string
	candidatesMin     int
)

var candidatesCmd = &cobra.Command{
	Use:     "candidates",
	Aliases: []string{"cand"},
	Short:   "List subscription candidates from the last sync",
	Example: `  mailspend candidates
  mailspend candidates --account user@example.com --min 60
  mailspend candidates --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cands, err := db.ListCandidates(candidatesAccount)
		if err != nil {
			return err
		}

		if candidatesMin > 0 {
			kept := cands[:0]
			for _, c := range cands {
				if c.Confidence >= candidatesMin {
					kept = append(kept, c)
				}
			}
			cands = kept
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cands)
		}

		if len(cands) == 0 {
			fmt.Println("No candidates. Run 'mailspend sync' to scan for subscriptions.")
			return nil
		}

		display.Header(fmt.Sprintf("Subscription Candidates (%d)", len(cands)))
		for i, c := range cands {
			connector := "├─"
			if i == 0 {
				connector = "┌─"
			}
			if i == len(cands)-1 {
				connector = "└─"
			}
			display.CandidateRow(connector, c.Service, display.Money(c.Amount, "USD"), c.Date, c.Confidence)
		}
		fmt.Println()
		fmt.Printf("  %s\n", display.Dim.Render("Use 'mailspend promote MESSAGE_ID' to track one as a subscription."))
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote MESSAGE_ID",
	Short: "Promote a candidate to a tracked subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		messageID := args[0]

		cands, err := db.ListCandidates(candidatesAccount)
		if err != nil {
			return err
		}
		var match *types.Candidate
		for i := range cands {
			if cands[i].MessageID == messageID {
				match = &cands[i]
				break
			}
		}
		if match == nil {
			return fmt.Errorf("no candidate with message id %s", messageID)
		}

		sub := &types.Subscription{
			Account:     match.Account,
			Service:     match.Service,
			Amount:      match.Amount,
			Currency:    "USD",
			Frequency:   types.FrequencyMonthly,
			NextBilling: match.Date,
			Status:      types.StatusActive,
			Confidence:  match.Confidence,
			MessageID:   match.MessageID,
		}
		if err := db.InsertSubscription(sub); err != nil {
			return err
		}
		if err := db.DeleteCandidate(match.MessageID, match.Account); err != nil {
			return err
		}

		if !quietFlag {
			display.SuccessMsg("Tracking %s (%s)", sub.Service, display.Money(sub.Amount, sub.Currency))
		}
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss MESSAGE_ID",
	Short: "Drop a candidate without tracking it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		messageID := args[0]

		cands, err := db.ListCandidates(candidatesAccount)
		if err != nil {
			return err
		}
		for _, c := range cands {
			if c.MessageID == messageID {
				if err := db.DeleteCandidate(c.MessageID, c.Account); err != nil {
					return err
				}
				if !quietFlag {
					display.SuccessMsg("Dismissed %s", c.Service)
				}
				return nil
			}
		}
		return fmt.Errorf("no candidate with message id %s", messageID)
	},
}

func init() {
	candidatesCmd.Flags().StringVar(&candidatesAccount, "account", "", "Filter by account")
	candidatesCmd.Flags().IntVar(&candidatesMin, "min", 0, "Minimum confidence to show")
	promoteCmd.Flags().StringVar(&candidatesAccount, "account", "", "Account the candidate belongs to")
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(dismissCmd)
}
