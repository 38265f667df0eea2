// Package abi provides low-level helpers for native ABI slots.
//
// # Contents
//
//   - coerce.go: float and sign checked integer conversions
//   - helpers.go: alignment, slot widening and range checks
//
// This package is internal to marshal.
package abi
