package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
)

// LinkTypeRelated is the link type of a directed "related" asset link.
const LinkTypeRelated = 0

// Link is a directed edge between two asset entries.
type Link struct {
	EntryID1 int64
	EntryID2 int64
	Type     int
	Weight   int
}

// AssetEntry returns the asset entry id registered for (className, classPK).
// Returns ErrNotFound (wrapped) when the pair has no entry.
func (s *Store) AssetEntry(ctx context.Context, className string, classPK int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM asset_entries WHERE class_name = ? AND class_pk = ?
	`, className, classPK).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("asset entry %s/%d: %w", className, classPK, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("asset entry %s/%d: %w", className, classPK, err)
	}
	return id, nil
}

// DeleteLinks removes every outgoing link of an asset entry.
// Returns the number of links removed.
func (s *Store) DeleteLinks(ctx context.Context, entryID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM asset_links WHERE entry_id1 = ?`, entryID)
	if err != nil {
		return 0, fmt.Errorf("delete links of %d: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete links of %d: rows affected: %w", entryID, err)
	}
	return n, nil
}

// AddLink records a directed link from entryID1 to entryID2.
// Uses ON CONFLICT DO NOTHING for idempotency - re-adding an existing link
// is silently ignored.
func (s *Store) AddLink(ctx context.Context, userID, entryID1, entryID2 int64, linkType, weight int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_links (entry_id1, entry_id2, link_type, weight, user_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entry_id1, entry_id2, link_type) DO NOTHING
	`, entryID1, entryID2, linkType, weight, userID)
	if err != nil {
		return fmt.Errorf("add link %d->%d: %w", entryID1, entryID2, err)
	}
	return nil
}

// Links returns the outgoing links of an asset entry ordered by target.
func (s *Store) Links(ctx context.Context, entryID int64) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id1, entry_id2, link_type, weight
		FROM asset_links
		WHERE entry_id1 = ?
		ORDER BY entry_id2 ASC, link_type ASC
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []Link{}
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.EntryID1, &l.EntryID2, &l.Type, &l.Weight); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// SetTags replaces the tag set of an asset entry.
func (s *Store) SetTags(ctx context.Context, entryID int64, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set tags: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_tags WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("set tags: clear: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO asset_tags (entry_id, tag) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, entryID, tag); err != nil {
			return fmt.Errorf("set tags: insert %q: %w", tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set tags: commit: %w", err)
	}
	return nil
}

// Tags returns the sorted tag set of an asset entry.
func (s *Store) Tags(ctx context.Context, entryID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM asset_tags WHERE entry_id = ?`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	slices.Sort(tags)
	return tags, nil
}
