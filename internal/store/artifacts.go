package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cmsync/internal/model"
)

const artifactColumns = `id, scope_id, kind, class_name, artifact_key, parent_id, bound_id,
	definition_key, template_key, resource_class, language, cacheable,
	name_map, description_map, body, folder_id, version, status, user_id, fingerprint`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// uniqueClass returns the class component of the natural-key uniqueness
// rule. Display template keys are unique across classes within a scope.
func uniqueClass(a *model.Artifact) string {
	if a.Kind == model.KindDisplayTemplate {
		return ""
	}
	return a.ClassName
}

// FetchByKey returns the latest approved version of the artifact with the
// given natural key. An empty className matches any class.
// Returns ErrNotFound (wrapped) when no such artifact exists.
func (s *Store) FetchByKey(ctx context.Context, scopeID int64, kind model.Kind, className, key string) (*model.Artifact, error) {
	query := `SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE scope_id = ? AND kind = ? AND artifact_key = ? AND status = ?`
	args := []any{scopeID, string(kind), key, model.StatusApproved}
	if className != "" {
		query += ` AND class_name = ?`
		args = append(args, className)
	}
	query += ` ORDER BY version DESC, id DESC LIMIT 1`

	a, err := scanArtifact(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch %s %q: %w", kind, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %q: %w", kind, key, err)
	}
	return a, nil
}

// FetchByID returns the artifact with the given internal id.
func (s *Store) FetchByID(ctx context.Context, id int64) (*model.Artifact, error) {
	a, err := scanArtifact(s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch artifact %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch artifact %d: %w", id, err)
	}
	return a, nil
}

// Create inserts a new artifact and registers its asset entry in the same
// transaction. Returns the store-assigned id.
//
// A natural-key collision returns ErrDuplicateKey (wrapped).
func (s *Store) Create(ctx context.Context, a *model.Artifact) (int64, error) {
	nameJSON, err := marshalLocaleMap(a.NameMap)
	if err != nil {
		return 0, fmt.Errorf("create %s %q: %w", a.Kind, a.Key, err)
	}
	descJSON, err := marshalLocaleMap(a.DescriptionMap)
	if err != nil {
		return 0, fmt.Errorf("create %s %q: %w", a.Kind, a.Key, err)
	}

	version := a.Version
	if version == 0 {
		version = 1
	}
	status := a.Status
	if status == "" {
		status = model.StatusApproved
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create %s %q: begin tx: %w", a.Kind, a.Key, err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts
		(scope_id, kind, class_name, unique_class, artifact_key, parent_id, bound_id,
		 definition_key, template_key, resource_class, language, cacheable,
		 name_map, description_map, body, folder_id, version, status, user_id, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ScopeID, string(a.Kind), a.ClassName, uniqueClass(a), a.Key, a.ParentID, a.BoundID,
		a.DefinitionKey, a.TemplateKey, a.ResourceClass, a.Language, a.Cacheable,
		nameJSON, descJSON, a.Body, a.FolderID, version, status, a.UserID, a.Fingerprint,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("create %s %q: %w", a.Kind, a.Key, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("create %s %q: %w", a.Kind, a.Key, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create %s %q: last insert id: %w", a.Kind, a.Key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO asset_entries (class_name, class_pk, scope_id)
		VALUES (?, ?, ?)
		ON CONFLICT(class_name, class_pk) DO NOTHING
	`, model.ClassOf(a.Kind), id, a.ScopeID); err != nil {
		return 0, fmt.Errorf("create %s %q: asset entry: %w", a.Kind, a.Key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create %s %q: commit: %w", a.Kind, a.Key, err)
	}
	return id, nil
}

// Update persists the mutable fields of an existing artifact, keeping its
// id, key, kind and version. Returns ErrNotFound (wrapped) if the id is
// unknown.
func (s *Store) Update(ctx context.Context, a *model.Artifact) error {
	nameJSON, err := marshalLocaleMap(a.NameMap)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", a.Kind, a.ID, err)
	}
	descJSON, err := marshalLocaleMap(a.DescriptionMap)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", a.Kind, a.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE artifacts SET
			class_name = ?, unique_class = ?, parent_id = ?, bound_id = ?,
			definition_key = ?, template_key = ?, resource_class = ?, language = ?,
			cacheable = ?, name_map = ?, description_map = ?, body = ?,
			folder_id = ?, fingerprint = ?
		WHERE id = ?
	`,
		a.ClassName, uniqueClass(a), a.ParentID, a.BoundID,
		a.DefinitionKey, a.TemplateKey, a.ResourceClass, a.Language,
		a.Cacheable, nameJSON, descJSON, a.Body,
		a.FolderID, a.Fingerprint,
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update %s %d: %w", a.Kind, a.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("update %s %d: %w", a.Kind, a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %d: rows affected: %w", a.Kind, a.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %d: %w", a.Kind, a.ID, ErrNotFound)
	}
	return nil
}

// List returns every artifact of a kind in a scope, ordered by id.
// An empty kind lists all kinds. Returns an empty slice (not nil) when
// nothing matches.
func (s *Store) List(ctx context.Context, scopeID int64, kind model.Kind) ([]model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE scope_id = ?`
	args := []any{scopeID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []model.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

// Reindex refreshes the search document of an artifact from its current
// stored state.
func (s *Store) Reindex(ctx context.Context, id int64) error {
	a, err := s.FetchByID(ctx, id)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	title := ""
	for _, loc := range a.NameMap.Locales() {
		if title != "" {
			title += " "
		}
		title += a.NameMap[loc]
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_documents (artifact_id, title, content, generation)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(artifact_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			generation = search_documents.generation + 1
	`, id, title, a.Body)
	if err != nil {
		return fmt.Errorf("reindex %d: %w", id, err)
	}
	return nil
}

// SearchGeneration returns how many times an artifact has been indexed.
// Returns 0 for never-indexed artifacts.
func (s *Store) SearchGeneration(ctx context.Context, id int64) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx,
		`SELECT generation FROM search_documents WHERE artifact_id = ?`, id).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("search generation %d: %w", id, err)
	}
	return gen, nil
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	var (
		a        model.Artifact
		kind     string
		nameJSON string
		descJSON string
	)
	err := row.Scan(
		&a.ID, &a.ScopeID, &kind, &a.ClassName, &a.Key, &a.ParentID, &a.BoundID,
		&a.DefinitionKey, &a.TemplateKey, &a.ResourceClass, &a.Language, &a.Cacheable,
		&nameJSON, &descJSON, &a.Body, &a.FolderID, &a.Version, &a.Status, &a.UserID, &a.Fingerprint,
	)
	if err != nil {
		return nil, err
	}
	a.Kind = model.Kind(kind)

	if a.NameMap, err = unmarshalLocaleMap(nameJSON); err != nil {
		return nil, fmt.Errorf("scan artifact %d: %w", a.ID, err)
	}
	if a.DescriptionMap, err = unmarshalLocaleMap(descJSON); err != nil {
		return nil, fmt.Errorf("scan artifact %d: %w", a.ID, err)
	}
	return &a, nil
}
