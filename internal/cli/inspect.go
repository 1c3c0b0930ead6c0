package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cmsync/internal/locale"
	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Kind string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List artifacts stored in the scope",
		Long: `List the artifacts stored for the configured scope, optionally
restricted to one kind.

Example:
  cmsync inspect --kind article
  cmsync inspect --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	kinds := make([]string, len(model.Kinds))
	for i, k := range model.Kinds {
		kinds[i] = string(k)
	}
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "artifact kind ("+strings.Join(kinds, "|")+"); empty lists all")

	return cmd
}

// Inventory is the result of inspect.
type Inventory struct {
	ScopeID   int64            `json:"scope_id"`
	Kind      model.Kind       `json:"kind,omitempty"`
	Artifacts []model.Artifact `json:"artifacts"`

	locale string
}

// WriteText renders the inventory as an aligned table.
func (inv Inventory) WriteText(w io.Writer) error {
	if len(inv.Artifacts) == 0 {
		_, err := fmt.Fprintf(w, "no artifacts in scope %d\n", inv.ScopeID)
		return err
	}

	var table bytes.Buffer
	tw := tabwriter.NewWriter(&table, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tKEY\tCLASS\tVERSION\tNAME")
	for _, a := range inv.Artifacts {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\n", a.Kind, a.ID, a.Key, a.ClassName, a.Version, displayName(a.NameMap, inv.locale))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimSuffix(table.String(), "\n"), "\n") {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// displayName picks the name in the preferred locale, else the first
// locale in sorted order.
func displayName(m model.LocaleMap, preferred string) string {
	if name, ok := m[preferred]; ok {
		return name
	}
	if locales := m.Locales(); len(locales) > 0 {
		return m[locales[0]]
	}
	return ""
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	kind := model.Kind(opts.Kind)
	if kind != "" && !slices.Contains(model.Kinds, kind) {
		_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("unknown kind %q", opts.Kind), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q", opts.Kind))
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	artifacts, err := st.List(ctx, cfg.Scope.ID, kind)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list artifacts", err)
	}

	inv := Inventory{ScopeID: cfg.Scope.ID, Kind: kind, Artifacts: artifacts}
	if tag, err := locale.Canonical(cfg.Scope.DefaultLocale); err == nil {
		inv.locale = locale.Key(tag)
	}
	return formatter.Success(inv)
}
