package model

import "fmt"

// Scope identifies the tenant/site context under which every lookup and
// creation happens. It is passed as the first domain argument to every
// operation.
type Scope struct {
	// ID is the site (group) the artifacts belong to.
	ID int64 `json:"id" toml:"id"`

	// CompanyID is the owning company; permissions are keyed by it.
	CompanyID int64 `json:"company_id" toml:"company_id"`

	// UserID is the acting user recorded on created artifacts and links.
	UserID int64 `json:"user_id" toml:"user_id"`
}

// String renders the scope for log lines.
func (s Scope) String() string {
	return fmt.Sprintf("scope=%d company=%d user=%d", s.ID, s.CompanyID, s.UserID)
}
