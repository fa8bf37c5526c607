// Package store provides read-only relational access to the form schema
// tables: forms, pages, fields, field types, option sets and items, and
// logic rules with their conditions and actions.
//
// The resolver and validators depend on the Reader interface only. Two
// implementations are provided:
//
//   - SQLite (mattn/go-sqlite3), the default backend. Opens with WAL mode,
//     NORMAL synchronous, a 5-second busy timeout, and foreign keys on,
//     and applies the embedded schema idempotently.
//   - Postgres (jackc/pgx/v5), for deployments where the form tables live
//     in a shared Postgres instance. Schema metadata comes from
//     information_schema.
//
// All listing queries carry an explicit ORDER BY so results are
// deterministic across calls. Nothing in this package writes to the form
// tables; applying a change-set is the committer's job.
package store
