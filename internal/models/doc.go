// Package models defines the value types that flow through a sort run and the persisted run ledger entities.
//
// The package contains two categories of types:
//
// 1. Pipeline values: immutable data passed between traversal, execution, and completion
//   - [WorkItem] : one discovered regular file pending relocation
//   - [Bucket] : the year/month destination directory derived from a modification time
//   - [RelocationResult] : the single outcome produced for every WorkItem
//   - [EntryError] : a directory entry the traverser could not read and skipped
//   - [Summary] : aggregated counts for a finished run
//
// 2. Persistent entities: database-backed records of past runs
//   - [Run] : one sort invocation with its configuration and counts
//   - [RunFailure] : a non-success item outcome belonging to a run
//
// Persistent entities implement the [Model] interface and are stored through [Repository] implementations.
package models
