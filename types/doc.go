// Package types provides core type definitions and interfaces for the batchmut library.
//
// This package contains shared types that are used across multiple packages in the
// batchmut library. By keeping these types in a separate package, we avoid import
// cycles between the main batchmut package and its internal implementations.
//
// Key types:
//   - Field: Bitmask of per-instance data fields
//   - Snapshot: Immutable point-in-time copy of selected instance fields for one chunk
//   - MutationResult: A transformer's response to one chunk
//   - Container: The external owner of addressable instance data
//   - Transformer: A registered recurring unit of bulk mutation work
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
