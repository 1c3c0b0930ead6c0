// Package store provides the SQLite-backed content store cmsync reconciles
// against.
//
// The store keeps:
//   - Scopes: site context with its default locale
//   - Artifacts: definitions, templates, record sets, articles and folders
//     addressed by (scope, kind, class, key)
//   - Asset entries: one per artifact, the endpoints of related-asset links
//   - Asset links and tags
//   - Resource permissions: one action list per (resource, role)
//   - Search documents: the reindexed view of an artifact
//
// # Critical Patterns
//
// Natural-key uniqueness:
//   - UNIQUE(scope_id, kind, unique_class, artifact_key, version)
//   - Display templates use an empty unique_class, so a template key
//     collides across classes and Create reports ErrDuplicateKey
//
// Replace-not-accumulate writes:
//   - SetRolePermissions and SetTags replace the previous value
//   - AddLink ignores an already present link
//
// Ids are INTEGER PRIMARY KEY AUTOINCREMENT values and are never reused.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
