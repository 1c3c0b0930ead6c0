package model

import (
	"maps"
	"slices"
)

// Action keys granted through permission policies.
const (
	ActionView             = "VIEW"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
	ActionPermissions      = "PERMISSIONS"
	ActionAddDiscussion    = "ADD_DISCUSSION"
	ActionDeleteDiscussion = "DELETE_DISCUSSION"
	ActionUpdateDiscussion = "UPDATE_DISCUSSION"
	ActionExpire           = "EXPIRE"
	ActionAddSubfolder     = "ADD_SUBFOLDER"
	ActionAddArticle       = "ADD_ARTICLE"
	ActionSubscribe        = "SUBSCRIBE"
	ActionAccess           = "ACCESS"
)

// Built-in role names used by the default tables.
const (
	RoleOwner = "Owner"
	RoleUser  = "User"
	RoleGuest = "Guest"
)

// Policy maps a role name to its ordered list of allowed actions.
type Policy map[string][]string

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	if p == nil {
		return nil
	}
	c := make(Policy, len(p))
	for role, actions := range p {
		c[role] = slices.Clone(actions)
	}
	return c
}

// Roles returns the role names in sorted order.
func (p Policy) Roles() []string {
	return slices.Sorted(maps.Keys(p))
}

// RolePermission is one declared role override.
type RolePermission struct {
	Role    string   `json:"role" yaml:"role"`
	Actions []string `json:"actions" yaml:"actions"`
}

// PolicyOf folds declared overrides into a Policy. A role declared twice
// keeps its last declaration.
func PolicyOf(perms []RolePermission) Policy {
	if len(perms) == 0 {
		return nil
	}
	p := make(Policy, len(perms))
	for _, rp := range perms {
		actions := rp.Actions
		if actions == nil {
			actions = []string{}
		}
		p[rp.Role] = slices.Clone(actions)
	}
	return p
}
