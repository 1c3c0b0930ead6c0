package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cmsync/internal/model"
)

// EnsureScope registers a scope, or refreshes its name and default locale
// if it already exists.
func (s *Store) EnsureScope(ctx context.Context, scope model.Scope, name, defaultLocale string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scopes (id, company_id, name, default_locale)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			name = excluded.name,
			default_locale = excluded.default_locale
	`, scope.ID, scope.CompanyID, name, defaultLocale)
	if err != nil {
		return fmt.Errorf("ensure scope %d: %w", scope.ID, err)
	}
	return nil
}

// ScopeLocale returns the default locale id recorded for a scope.
// Returns ErrNotFound (wrapped) for unknown scopes.
func (s *Store) ScopeLocale(ctx context.Context, scopeID int64) (string, error) {
	var locale string
	err := s.db.QueryRowContext(ctx,
		`SELECT default_locale FROM scopes WHERE id = ?`, scopeID).Scan(&locale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("scope %d: %w", scopeID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("scope %d: %w", scopeID, err)
	}
	return locale, nil
}
