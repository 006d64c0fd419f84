// Package store provides the SQLite relational store that filter, count and
// aggregate queries run against.
//
// The schema (schema.sql) holds two entity tables, studies and citations,
// each with its own descriptor link table and facility link table. Both
// facility links point into one shared facilities table; citations reach it
// through author affiliations. Rows of facilities that share canonical_id are
// naming variants of one site.
//
// # SQL Functions
//
// The package registers its own driver, DriverName, whose connect hook adds
// three deterministic functions to every connection:
//
//   - is_fallback_match(name, city, state, country): ir.IsFallbackName
//   - fold_text(s): ir.Fold
//   - distance_km(lat1, lon1, lat2, lon2): ir.DistanceKM
//
// SQL and Go share one implementation of each, so a facility that Go
// considers a fallback match is excluded by every SQL path as well.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (5 seconds by default)
//   - foreign_keys=ON: Link rows must reference existing records
//
// The store does not build queries. querysql compiles plans to SQL and the
// engine runs them on a connection obtained from Conn.
package store
