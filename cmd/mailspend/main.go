package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"

	"github.com/mailspend/mailspend/internal/config"
	"github.com/mailspend/mailspend/internal/retry"
	"github.com/mailspend/mailspend/internal/store"
	"github.com/mailspend/mailspend/internal/token"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	dbPath      string
	jsonOutput  bool
	quietFlag   bool
	verboseFlag bool

	db     *store.DB
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailspend",
	Short: "mailspend - Find subscriptions and expenses hiding in your inbox",
	Long:  "Mailspend scans Gmail for payment emails, classifies them with an LLM, and tracks the subscriptions and expenses it finds.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets may live in a local .env; absence is fine.
		_ = godotenv.Load()

		level := zerolog.WarnLevel
		if verboseFlag {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Skip DB for commands that don't need it.
		switch cmd.Name() {
		case "init", "help", "version":
			return nil
		}

		path := dbPath
		if path == "" {
			path = store.DiscoverDB()
		}
		if path == "" {
			return fmt.Errorf("no mailspend database found — run 'mailspend init' first")
		}

		db, err = store.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailspend version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the mailspend database",
	Long:  "Create .mailspend/mailspend.db in the current directory (or at --db).",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbPath
		if path == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path = cwd + "/.mailspend/mailspend.db"
		}

		s, err := store.Open(path)
		if err != nil {
			return err
		}
		s.Close()

		if !quietFlag {
			fmt.Printf("Initialized mailspend at %s\n", path)
		}
		return nil
	},
}

// oauthConfig builds the OAuth2 client configuration from loaded settings.
func oauthConfig() (*oauth2.Config, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	redirect := cfg.GoogleRedirectURL
	if redirect == "" {
		redirect = "urn:ietf:wg:oauth:2.0:oob"
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  redirect,
		Scopes:       []string{gm.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// newTokenManager builds the per-account token manager backed by the store.
func newTokenManager(account string) (*token.Manager, error) {
	oc, err := oauthConfig()
	if err != nil {
		return nil, err
	}
	return token.NewManager(account, oc, db,
		retry.Policy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .mailspend/mailspend.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
