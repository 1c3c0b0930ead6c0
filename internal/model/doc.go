// Package model provides the shared types of cmsync: the scope an operation
// runs under, the persisted artifact record, the parsed declaration tree,
// permission policies, locale maps and the per-item error taxonomy.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Scope is always passed explicitly, never read from ambient state
//   - Ids are non-negative int64 values assigned by the content store
//   - JSON and YAML tags use snake_case
package model
