package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailspend/mailspend/internal/display"
)

var subsAccount string

var subscriptionsCmd = &cobra.Command{
	Use:     "subscriptions",
	Aliases: []string{"subs"},
	Short:   "List tracked subscriptions",
	Example: `  mailspend subscriptions
  mailspend subs --account user@example.com
  mailspend subs --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := db.ListSubscriptions(subsAccount)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(subs)
		}

		if len(subs) == 0 {
			fmt.Println("No tracked subscriptions. Promote candidates with 'mailspend promote'.")
			return nil
		}

		display.Header(fmt.Sprintf("Subscriptions (%d)", len(subs)))
		for _, s := range subs {
			status := s.Status
			if s.Status == "ACTIVE" {
				status = display.Success.Render(s.Status)
			} else {
				status = display.Dim.Render(s.Status)
			}
			next := ""
			if s.NextBilling != "" {
				next = display.Dim.Render("next " + s.NextBilling)
			}
			fmt.Printf("  %-28s %10s  %-8s %s  %s\n",
				display.Truncate(s.Service, 28),
				display.Money(s.Amount, s.Currency),
				s.Frequency, status, next)
		}

		fmt.Println()
		fmt.Printf("  %s\n", display.Bold.Render(fmt.Sprintf(
			"Monthly total: %s", display.Money(db.MonthlySubscriptionTotal(), "USD"))))
		return nil
	},
}

func init() {
	subscriptionsCmd.Flags().StringVar(&subsAccount, "account", "", "Filter by account")
	rootCmd.AddCommand(subscriptionsCmd)
}
