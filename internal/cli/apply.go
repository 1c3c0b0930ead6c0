package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cmsync/internal/declaration"
	"github.com/roach88/cmsync/internal/reconcile"
	"github.com/roach88/cmsync/internal/source"
	"github.com/roach88/cmsync/internal/store"
	"github.com/roach88/cmsync/internal/upsert"
)

// CLI error codes. Declaration load and validation codes come from the
// declaration package.
const (
	ErrCodeConfig      = "E010" // Config missing, unparseable or invalid
	ErrCodeStore       = "E011" // Store could not be opened or prepared
	ErrCodeUsage       = "E012" // Invalid flag value
	ErrCodeItemsFailed = "E300" // Items failed under --strict
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Strict bool

	// IDGenerator overrides article id generation (for testing).
	// If nil, defaults to upsert.UUIDv7Generator.
	IDGenerator upsert.IDGenerator
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <declaration>",
		Short: "Reconcile the content store with a declaration",
		Long: `Reconcile the content store with a YAML or CUE declaration.

Items are processed in dependency order: document definitions, display
templates, record sets, articles, web folders. A failing item is reported
and the run continues. File paths in the declaration are relative to the
declaration's directory.

Example:
  cmsync apply site.yaml
  cmsync apply --db content.db --scope-id 20121 --strict site.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any item failed")

	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := opts.logger(cmd.ErrOrStderr(), cfg)

	doc, err := loadDeclaration(formatter, path)
	if err != nil {
		return err
	}
	problems := doc.Validate()
	for _, p := range problems {
		if p.Severity == declaration.SeverityWarning {
			logger.Warn("declaration warning", "code", p.Code, "field", p.Field, "line", p.Line, "message", p.Message)
		}
	}
	if declaration.HasErrors(problems) {
		return outputProblems(formatter, problems)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scope := cfg.ModelScope()
	if err := st.EnsureScope(ctx, scope, cfg.Scope.Name, cfg.Scope.DefaultLocale); err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to register scope", err)
	}

	upsertOpts := []upsert.Option{
		upsert.WithLogger(logger),
		upsert.WithMaxPasses(cfg.Resolver.MaxPasses),
	}
	if opts.IDGenerator != nil {
		upsertOpts = append(upsertOpts, upsert.WithIDGenerator(opts.IDGenerator))
	}
	u := upsert.New(st, source.OS(doc.Dir()), upsertOpts...)
	eng := reconcile.New(u, reconcile.WithLogger(logger))

	logger.Info("applying declaration", "path", path, "db", cfg.Database, "scope", scope.ID)
	report := eng.Reconcile(ctx, scope, doc.Declaration)

	if err := formatter.Success(report); err != nil {
		return err
	}

	if opts.Strict && report.HasFailures() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d item(s) failed", ErrCodeItemsFailed, len(report.Failed())))
	}
	return nil
}

// loadDeclaration loads path, reporting load errors through formatter.
func loadDeclaration(formatter *OutputFormatter, path string) (*declaration.Document, error) {
	doc, err := declaration.Load(path)
	if err == nil {
		return doc, nil
	}
	code, message := declaration.ErrCodeGeneric, err.Error()
	var le *declaration.LoadError
	if errors.As(err, &le) {
		code = le.Code
		if le.Pos.IsValid() {
			message = le.Pos.String() + ": " + le.Message
		} else {
			message = le.Message
		}
	}
	_ = formatter.Error(code, message, nil)
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
