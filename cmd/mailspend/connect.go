package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/mailspend/mailspend/internal/display"
)

var connectCode string

var connectCmd = &cobra.Command{
	Use:   "connect ACCOUNT",
	Short: "Authorize a Gmail account",
	Long: `Connect a Gmail account via OAuth2.

Prints an authorization URL to open in a browser. Paste the resulting
code back (or pass it directly with --code) to complete the exchange.`,
	Example: `  mailspend connect user@example.com
  mailspend connect user@example.com --code 4/0Af...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := args[0]
		ctx := context.Background()

		mgr, err := newTokenManager(account)
		if err != nil {
			return err
		}

		code := connectCode
		if code == "" {
			oc, err := oauthConfig()
			if err != nil {
				return err
			}
			url := oc.AuthCodeURL("state-"+account,
				oauth2.AccessTypeOffline, oauth2.ApprovalForce)
			fmt.Printf("Open this URL in your browser:\n\n  %s\n\n", url)
			fmt.Print("Paste the authorization code: ")

			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read authorization code: %w", err)
			}
			code = strings.TrimSpace(line)
		}
		if code == "" {
			return fmt.Errorf("no authorization code provided")
		}

		if err := mgr.ExchangeCode(ctx, code); err != nil {
			return err
		}

		if !quietFlag {
			display.SuccessMsg("Connected %s", account)
		}
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect ACCOUNT",
	Short: "Remove stored credentials for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := args[0]

		mgr, err := newTokenManager(account)
		if err != nil {
			return err
		}
		if !mgr.Connected() {
			return fmt.Errorf("account %s is not connected", account)
		}
		if err := mgr.Disconnect(); err != nil {
			return err
		}

		if !quietFlag {
			display.SuccessMsg("Disconnected %s", account)
		}
		return nil
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectCode, "code", "", "Authorization code (skip the interactive prompt)")
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}
