// Package container provides in-memory Container implementations for the
// batch mutation pipeline.
//
// Memory is a dense, slice-backed container suitable for tests, tools and
// hosts that own their instance data directly. Production hosts with their
// own storage implement batchmut.Container themselves.
package container
