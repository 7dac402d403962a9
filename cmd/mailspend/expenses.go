package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailspend/mailspend/internal/display"
)

var (
	expensesAccount string
	expensesLimit   int
)

var expensesCmd = &cobra.Command{
	Use:     "expenses",
	Aliases: []string{"exp"},
	Short:   "List recorded one-time expenses",
	Example: `  mailspend expenses
  mailspend expenses --account user@example.com -n 50
  mailspend expenses --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exps, err := db.ListExpenses(expensesAccount, expensesLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(exps)
		}

		if len(exps) == 0 {
			fmt.Println("No recorded expenses. Run 'mailspend sync' to scan for receipts.")
			return nil
		}

		display.Header(fmt.Sprintf("Expenses (%d)", len(exps)))
		for _, e := range exps {
			desc := e.Description
			if desc == "" {
				desc = e.Category
			}
			fmt.Printf("  %s  %-28s %10s  %s\n",
				display.Dim.Render(e.Date),
				display.Truncate(e.Merchant, 28),
				display.Money(e.Amount, e.Currency),
				display.Dim.Render(display.Truncate(desc, 40)))
		}
		return nil
	},
}

func init() {
	expensesCmd.Flags().StringVar(&expensesAccount, "account", "", "Filter by account")
	expensesCmd.Flags().IntVarP(&expensesLimit, "limit", "n", 25, "Maximum expenses to show")
	rootCmd.AddCommand(expensesCmd)
}
