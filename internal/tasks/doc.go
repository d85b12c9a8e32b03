// Package tasks sorts files into year/month buckets with a concurrent pipeline and real-time progress reporting.
//
// # Pipeline
//
// [Engine.Run] wires four stages together:
//
//  1. [Traverser] : walks the tree with an explicit stack and pushes one [models.WorkItem] per regular file
//     - a missing root fails fast with shared.ErrPathNotFound
//     - a regular file root is sorted on its own, with its parent as the working root
//     - unreadable entries are recorded and skipped; siblings are still visited
//
//  2. Dispatch channel : a bounded channel, so a slow executor holds the traverser back
//
//  3. [Executor] : either a [WorkerPool] (fixed workers, Idle → Running → ShuttingDown → Terminated)
//     or a [TaskSpawner] (one goroutine per item behind a semaphore)
//
//  4. Completion : results are gathered until the channel is closed and the executor has drained,
//     then summarized into a [RunResult]
//
// [Relocator] is the unit of work: stat, derive the bucket, create the bucket directory, rename.
// Each step's failure becomes a [models.RelocationResult] rather than an error, so one bad file
// never stops the others.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Cancellation
//
// Canceling the run context stops traversal. Jobs already handed to the executor finish with an
// uncancelled context so a rename is never abandoned; items still queued are reported as canceled.
package tasks
