package store

import (
	"context"
	"fmt"

	"github.com/roach88/cmsync/internal/model"
)

// SetRolePermissions replaces the grant of one role on one resource.
// The previous action list for that role is discarded, so applying the same
// grant repeatedly never accumulates duplicates.
func (s *Store) SetRolePermissions(ctx context.Context, companyID int64, className string, resourceID int64, role string, actions []string) error {
	actionsJSON, err := marshalActions(actions)
	if err != nil {
		return fmt.Errorf("set permissions %s/%d %s: %w", className, resourceID, role, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resource_permissions (company_id, class_name, resource_id, role_name, actions)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, class_name, resource_id, role_name) DO UPDATE SET
			actions = excluded.actions
	`, companyID, className, resourceID, role, actionsJSON)
	if err != nil {
		return fmt.Errorf("set permissions %s/%d %s: %w", className, resourceID, role, err)
	}
	return nil
}

// RolePermissions returns the full grant table of a resource.
// Returns an empty policy (not nil) when nothing is granted.
func (s *Store) RolePermissions(ctx context.Context, companyID int64, className string, resourceID int64) (model.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_name, actions
		FROM resource_permissions
		WHERE company_id = ? AND class_name = ? AND resource_id = ?
		ORDER BY role_name ASC
	`, companyID, className, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	policy := model.Policy{}
	for rows.Next() {
		var role, actionsJSON string
		if err := rows.Scan(&role, &actionsJSON); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		actions, err := unmarshalActions(actionsJSON)
		if err != nil {
			return nil, err
		}
		policy[role] = actions
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return policy, nil
}
