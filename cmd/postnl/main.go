package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/al-bashkir/postnl-go/internal/config"
	"github.com/al-bashkir/postnl-go/internal/tokenfile"
	"github.com/al-bashkir/postnl-go/postnl"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
	tokenJSON  bool
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitConfig  = 3
	ExitBlocked = 4 // PostNL flagged the login as a bot, back off before retrying
)

var rootCmd = &cobra.Command{
	Use:   "postnl",
	Short: "PostNL parcel inbox client",
	Long: `Command line client for the PostNL consumer portal (jouw.postnl.nl).

Logs in with your PostNL account, keeps the access token in a token file
and lists the parcels in your inbox.

Credentials are read from the configuration file or from the
POSTNL_USERNAME and POSTNL_PASSWORD environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// overrideExitCode is set by subcommands so main() can call os.Exit() after
// cobra finishes. -1 means "use default".
var overrideExitCode = -1

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List the parcels in your inbox",
	Long: `Log in (or restore the stored token) and list the parcels addressed to you.

Exit codes:
  0 = Success
  1 = Error
  3 = Configuration error
  4 = Login blocked by bot detection`,
	RunE: runPackages,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a valid access token",
	Long: `Print a valid bearer token for the portal API, logging in or refreshing
as needed. With --json the complete token (access, id_token, expires) is printed.`,
	RunE: runToken,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in account",
	RunE:  runWhoami,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	RunE:  runLogout,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display version, commit hash, and build date.`,
	Run:   runVersion,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration file",
	Long: `Load and validate the configuration without contacting PostNL.

Exit codes:
  0 = Configuration is valid
  3 = Configuration error`,
	RunE: runCheckConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "postnl.yaml",
		"Path to configuration file (optional, environment variables apply without it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides config file")

	tokenCmd.Flags().BoolVar(&tokenJSON, "json", false, "Print the complete token as JSON")

	rootCmd.AddCommand(packagesCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}

	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func stdout(cmd *cobra.Command) io.Writer {
	if cmd != nil {
		return cmd.OutOrStdout()
	}
	return os.Stdout
}

// loadConfig loads the configuration, applies the log flags and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	config.SetupLogging(&cfg.Log)

	return cfg, nil
}

// connect returns a client holding a valid token. A stored token is restored
// when the token file has one; otherwise the client logs in.
func connect(ctx context.Context, cfg *config.Config) (*postnl.Client, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("credentials are not configured (set POSTNL_USERNAME and POSTNL_PASSWORD)")
	}

	pending, err := postnl.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if cfg.TokenFile != "" {
		stored, err := tokenfile.Load(cfg.TokenFile)
		if err != nil {
			slog.Warn("ignoring unreadable token file", "path", cfg.TokenFile, "error", err)
		}
		if stored != nil {
			client, err := pending.Resume(cfg.Credentials.Username, cfg.Credentials.Password)
			if err != nil {
				return nil, err
			}
			slog.Info("restoring cached token", "expires_at", stored.ExpiresAt)
			client.SetToken(stored)
			return client, nil
		}
	}

	slog.Info("logging in", "username", cfg.Credentials.Username)
	return pending.Login(ctx, cfg.Credentials.Username, cfg.Credentials.Password)
}

// persist writes the client's current token to the token file, if configured.
func persist(ctx context.Context, cfg *config.Config, client *postnl.Client) error {
	if cfg.TokenFile == "" {
		return nil
	}
	tok, err := client.GetToken(ctx)
	if err != nil {
		return err
	}
	return tokenfile.Save(cfg.TokenFile, tok)
}

// handleError maps authentication failures to exit codes. Errors it does not
// classify are returned to cobra.
func handleError(err error) error {
	if postnl.IsBlocked(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		overrideExitCode = ExitBlocked
		return nil
	}
	return err
}

// withClient loads the configuration, connects, runs fn and stores the token.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *postnl.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		overrideExitCode = ExitConfig
		return nil
	}

	ctx := commandContext(cmd)
	client, err := connect(ctx, cfg)
	if err != nil {
		return handleError(err)
	}

	if err := fn(ctx, client); err != nil {
		return handleError(err)
	}

	if err := persist(ctx, cfg, client); err != nil {
		return handleError(fmt.Errorf("failed to store token: %w", err))
	}
	return nil
}

// runPackages lists the inbox
func runPackages(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *postnl.Client) error {
		packages, err := client.GetPackages(ctx)
		if err != nil {
			return err
		}

		out := stdout(cmd)
		for _, pkg := range packages {
			_, _ = fmt.Fprintf(out, "%s(%s) - %s\n", pkg.Title(), pkg.Key, pkg.Delivery.Status)
		}
		return nil
	})
}

// runToken prints the access token
func runToken(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *postnl.Client) error {
		tok, err := client.GetToken(ctx)
		if err != nil {
			return err
		}

		out := stdout(cmd)
		if tokenJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tok)
		}
		_, _ = fmt.Fprintln(out, tok.AccessToken)
		return nil
	})
}

// runWhoami prints the identity from the id token
func runWhoami(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *postnl.Client) error {
		id, err := client.Identity(ctx)
		if err != nil {
			return err
		}

		out := stdout(cmd)
		_, _ = fmt.Fprintf(out, "Account: %s\n", client.Username())
		_, _ = fmt.Fprintf(out, "Subject: %s\n", id.Subject)
		if id.Name != "" {
			_, _ = fmt.Fprintf(out, "Name:    %s\n", id.Name)
		}
		if id.Email != "" {
			_, _ = fmt.Fprintf(out, "Email:   %s\n", id.Email)
		}
		return nil
	})
}

// runLogout removes the stored token
func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		overrideExitCode = ExitConfig
		return nil
	}
	if cfg.TokenFile == "" {
		return fmt.Errorf("no token_file configured")
	}
	if err := tokenfile.Remove(cfg.TokenFile); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout(cmd), "Removed %s\n", cfg.TokenFile)
	return nil
}

// runVersion displays version information
func runVersion(cmd *cobra.Command, args []string) {
	out := stdout(cmd)
	_, _ = fmt.Fprintf(out, "postnl version %s\n", version)
	_, _ = fmt.Fprintf(out, "  Commit:     %s\n", commit)
	_, _ = fmt.Fprintf(out, "  Build date: %s\n", buildDate)
	_, _ = fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
}

// runCheckConfig validates the configuration
func runCheckConfig(cmd *cobra.Command, args []string) error {
	out := stdout(cmd)
	_, _ = fmt.Fprintf(out, "Checking configuration: %s\n\n", configFile)

	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", err)
		overrideExitCode = ExitConfig
		return nil // exit code handled via overrideExitCode
	}

	redacted := cfg.Redact()
	_, _ = fmt.Fprintln(out, "✅ Configuration is valid")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Configuration summary:")
	_, _ = fmt.Fprintf(out, "  Portal:          %s\n", redacted.Portal.BaseURL)
	_, _ = fmt.Fprintf(out, "  API:             %s\n", redacted.Portal.APIBase())
	_, _ = fmt.Fprintf(out, "  Client ID:       %s\n", redacted.Portal.ClientID)
	_, _ = fmt.Fprintf(out, "  Scope:           %s\n", redacted.Portal.Scope)
	_, _ = fmt.Fprintf(out, "  Prompt:          %s\n", redacted.Portal.Prompt)
	_, _ = fmt.Fprintf(out, "  Token File:      %s\n", redacted.TokenFile)
	_, _ = fmt.Fprintf(out, "  Login Interval:  %s (burst %d)\n", redacted.Login.LoginInterval(), redacted.Login.Burst)
	_, _ = fmt.Fprintf(out, "  Log Level:       %s\n", redacted.Log.Level)
	_, _ = fmt.Fprintf(out, "  Log Format:      %s\n", redacted.Log.Format)

	if cfg.HasCredentials() {
		_, _ = fmt.Fprintf(out, "\n  Credentials:     %s / %s\n", redacted.Credentials.Username, redacted.Credentials.Password)
	} else {
		_, _ = fmt.Fprintln(out, "\n  Credentials:     [NOT SET] (set POSTNL_USERNAME and POSTNL_PASSWORD)")
	}

	return nil
}
