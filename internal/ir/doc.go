// Package ir provides the value model and declaration types shared by every
// other package.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Int (32-bit) and Long (64-bit) are distinct types, never coerced
//   - NO float types anywhere; numbers are integers
//   - Values serialize in a tagged form so the type survives a round trip
//   - Canonical JSON (RFC 8785) for anything hashed, stored or compared
//   - All JSON tags use snake_case
package ir
