// Package repositories implements client persistence over JSON files, YAML files and SQL databases.
//
// Key Implementations:
//   - [FileRepository] : array-of-objects files through a [Backend] ([JSONBackend], [YAMLBackend])
//   - [SQLRepository] : a clients table on SQLite or PostgreSQL, selected by [Dialect]
//   - [FileFilterSort] : in-memory filtering and ordering over a [FileRepository]
//   - [DBFilterSort] : the same filter and ordering translated into parameterized SQL
//
// File repositories keep three companion artifacts next to the source: _clean (validated
// records only), _snapshot (verbatim backup) and _errors (per-record validation failures).
// Lookups read the _clean artifact first and fall back to a tolerant validation pass over the
// raw source, so the two-tier behavior is identical for every file format.
//
// Both filter/sort decorators produce identical pages and counts for identical data; ties in
// every ordering are broken by ascending id.
package repositories
