// Package ir provides the value representation shared by raw rows and
// materialized results.
//
// This package contains value types only. Other internal packages import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - IRNull is the one null marker; drivers' nil is converted at the boundary
//   - IRObject serializes with sorted keys, so output is deterministic
//   - MarshalCanonical is the only encoding used for fingerprints and snapshots
package ir
