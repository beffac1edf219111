// Package record provides the row model shared by every other package.
//
// A Record is an ordered mapping of column name to string value. The same
// type carries input rows (exactly as read from the source table) and
// result rows (input columns plus the reserved columns command_executed,
// state and output).
//
// Identity:
// Rows are matched across runs by content, not position. IdentityKey strips
// the reserved columns, serializes what remains as canonical JSON with
// sorted keys and hashes it with SHA-256 under a versioned domain prefix.
// Values are compared byte for byte: no trimming, case folding or Unicode
// normalization happens anywhere on this path.
//
// This package imports nothing internal.
package record
