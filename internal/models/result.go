package models

import (
	"sort"
	"time"
)

// Outcome enumerates the possible results of relocating one file.
type Outcome int

const (
	OutcomeSuccess          Outcome = iota // File is in its bucket
	OutcomeSkippedUndatable                // Modification time has no four digit year
	OutcomeFailed                          // An I/O step failed, see [FailureKind]
	OutcomeCanceled                        // Run was canceled before the item was executed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkippedUndatable:
		return "skipped_undatable"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of [Outcome.String].
func ParseOutcome(s string) Outcome {
	for _, o := range []Outcome{OutcomeSuccess, OutcomeSkippedUndatable, OutcomeFailed, OutcomeCanceled} {
		if o.String() == s {
			return o
		}
	}
	return OutcomeFailed
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// FailureKind classifies a non-success outcome.
type FailureKind int

const (
	FailureNone FailureKind = iota
	MetadataError
	TimestampOutOfRange
	DirectoryCreationError
	RenameError
	InternalError
	EntryReadError
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return ""
	case MetadataError:
		return "metadata_error"
	case TimestampOutOfRange:
		return "timestamp_out_of_range"
	case DirectoryCreationError:
		return "directory_creation_error"
	case RenameError:
		return "rename_error"
	case InternalError:
		return "internal_error"
	case EntryReadError:
		return "entry_read_error"
	default:
		return "unknown"
	}
}

// ParseFailureKind is the inverse of [FailureKind.String].
func ParseFailureKind(s string) FailureKind {
	for k := FailureNone; k <= EntryReadError; k++ {
		if k.String() == s {
			return k
		}
	}
	return FailureNone
}

// MarshalText encodes the kind by name.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RelocationResult is the outcome of one Relocator execution.
type RelocationResult struct {
	Item        WorkItem      `json:"item"`
	Outcome     Outcome       `json:"outcome"`
	Kind        FailureKind   `json:"kind,omitempty"`
	Bucket      Bucket        `json:"bucket"`
	Destination string        `json:"destination,omitempty"`
	Err         error         `json:"-"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Succeeded returns a success result for item moved to dest.
func Succeeded(item WorkItem, b Bucket, dest string) RelocationResult {
	return RelocationResult{Item: item, Outcome: OutcomeSuccess, Bucket: b, Destination: dest}
}

// Skipped returns an undatable result for item.
func Skipped(item WorkItem, err error) RelocationResult {
	return RelocationResult{Item: item, Outcome: OutcomeSkippedUndatable, Kind: TimestampOutOfRange, Err: err}
}

// Failed returns a failure of the given kind for item.
func Failed(item WorkItem, kind FailureKind, b Bucket, err error) RelocationResult {
	return RelocationResult{Item: item, Outcome: OutcomeFailed, Kind: kind, Bucket: b, Err: err}
}

// Canceled returns the result recorded for an item that was never executed.
func Canceled(item WorkItem) RelocationResult {
	return RelocationResult{Item: item, Outcome: OutcomeCanceled}
}

// Reason returns the error text, or an empty string.
func (r RelocationResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// EntryError is a directory entry skipped during traversal.
type EntryError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e EntryError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// Summary aggregates the results of a run.
type Summary struct {
	Discovered  int                 `json:"discovered"`
	Moved       int                 `json:"moved"`
	Skipped     int                 `json:"skipped"`
	Failed      int                 `json:"failed"`
	Unprocessed int                 `json:"unprocessed"`
	EntryErrors int                 `json:"entry_errors"`
	ByKind      map[FailureKind]int `json:"by_kind,omitempty"`
	Buckets     map[string]int      `json:"buckets,omitempty"`
}

// Summarize counts results and entry errors.
func Summarize(results []RelocationResult, entryErrors []EntryError) Summary {
	s := Summary{
		Discovered:  len(results),
		EntryErrors: len(entryErrors),
		ByKind:      map[FailureKind]int{},
		Buckets:     map[string]int{},
	}

	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			s.Moved++
			s.Buckets[r.Bucket.String()]++
		case OutcomeSkippedUndatable:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
			s.ByKind[r.Kind]++
		case OutcomeCanceled:
			s.Unprocessed++
		}
	}
	return s
}

// Clean reports whether every discovered item was moved and nothing was skipped during traversal.
func (s Summary) Clean() bool {
	return s.Moved == s.Discovered && s.EntryErrors == 0
}

// BucketNames returns the buckets that received files, sorted.
func (s Summary) BucketNames() []string {
	names := make([]string, 0, len(s.Buckets))
	for name := range s.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortResults orders results by source path.
func SortResults(results []RelocationResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Item.Path < results[j].Item.Path
	})
}
