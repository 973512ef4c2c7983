// Package ir provides the canonical record types for override resolutions.
//
// This package contains type definitions, canonical JSON serialization, and
// content-addressed hashing. All other internal packages import ir; ir
// imports nothing internal. This keeps the record layer foundational with no
// circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Canonical form follows RFC 8785 (JCS) for stable hashing
package ir
