// Package cli implements the cmsync command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cmsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string

	// ScopeID, CompanyID and UserID override the configured scope when
	// non-zero.
	ScopeID   int64
	CompanyID int64
	UserID    int64
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cmsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cmsync",
		Short: "cmsync - declarative content reconciliation",
		Long: `Reconcile a content store with a declaration of document definitions,
display templates, record sets, articles and web folders.

Runs are idempotent: applying an unchanged declaration writes nothing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to config file (default ./"+config.DefaultFile+" if present)")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	flags.Int64Var(&opts.ScopeID, "scope-id", 0, "scope id (overrides config)")
	flags.Int64Var(&opts.CompanyID, "company-id", 0, "company id (overrides config)")
	flags.Int64Var(&opts.UserID, "user-id", 0, "user id (overrides config)")

	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig loads the config file and applies flag overrides. The
// result is validated.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadDefault(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.ScopeID != 0 {
		cfg.Scope.ID = o.ScopeID
	}
	if o.CompanyID != 0 {
		cfg.Scope.CompanyID = o.CompanyID
	}
	if o.UserID != 0 {
		cfg.Scope.UserID = o.UserID
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// logger returns a text logger on w. --verbose forces debug level.
func (o *RootOptions) logger(w io.Writer, cfg config.Config) *slog.Logger {
	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
