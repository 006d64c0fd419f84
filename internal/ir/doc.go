// Package ir provides the domain record types shared by every ffquery package.
//
// This package contains type definitions and a handful of pure helpers. All
// other internal packages import ir; ir imports nothing internal. This keeps
// ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Entity, Descriptor, Facility and link rows are read-only from the
//     query engine's point of view; only the store's loader writes them
//   - Dates are ISO-8601 calendar dates ("2019-04-01") so lexical order is
//     chronological order
//   - All JSON and YAML tags use snake_case
//   - IsFallbackMatch is the only definition of a fallback facility; the
//     store exposes the same function to SQL
package ir
