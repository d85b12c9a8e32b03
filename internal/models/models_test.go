package models

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBucketFor(t *testing.T) {
	tc := []struct {
		name   string
		t      time.Time
		want   string
		wantOK bool
	}{
		{name: "march 2023", t: time.Date(2023, 3, 14, 9, 0, 0, 0, time.UTC), want: "2023/03", wantOK: true},
		{name: "december", t: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), want: "2023/12", wantOK: true},
		{name: "epoch", t: time.Unix(0, 0), want: "1970/01", wantOK: true},
		{
			name:   "local time converted to utc",
			t:      time.Date(2022, 1, 1, 1, 0, 0, 0, time.FixedZone("UTC+5", 5*3600)),
			want:   "2021/12",
			wantOK: true,
		},
		{name: "small year is zero padded", t: time.Date(812, 7, 4, 0, 0, 0, 0, time.UTC), want: "0812/07", wantOK: true},
		{name: "five digit year", t: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), wantOK: false},
		{name: "negative year", t: time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC), wantOK: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BucketFor(tt.t)
			if ok != tt.wantOK {
				t.Fatalf("BucketFor() ok = %v, want %v", ok, tt.wantOK)
			}
			if got.String() != tt.want {
				t.Errorf("BucketFor() = %q, want %q", got.String(), tt.want)
			}
			if ok && (len(got.Year) != 4 || len(got.Month) != 2) {
				t.Errorf("bucket not padded: %+v", got)
			}
		})
	}
}

func TestBucketDir(t *testing.T) {
	b := Bucket{Year: "2021", Month: "06"}
	if got := b.Dir("/data"); got != filepath.Join("/data", "2021", "06") {
		t.Errorf("Dir() = %s", got)
	}
	if !(Bucket{}).IsZero() {
		t.Error("zero bucket should report IsZero")
	}
}

func TestSummarize(t *testing.T) {
	jan := Bucket{Year: "2022", Month: "01"}
	results := []RelocationResult{
		Succeeded(WorkItem{Path: "/r/a.txt"}, jan, "/r/2022/01/a.txt"),
		Succeeded(WorkItem{Path: "/r/b.txt"}, jan, "/r/2022/01/b.txt"),
		Skipped(WorkItem{Path: "/r/old.txt"}, errors.New("year out of range")),
		Failed(WorkItem{Path: "/r/gone.txt"}, MetadataError, Bucket{}, errors.New("no such file")),
		Failed(WorkItem{Path: "/r/ro.txt"}, RenameError, jan, errors.New("permission denied")),
		Canceled(WorkItem{Path: "/r/late.txt"}),
	}
	entryErrors := []EntryError{{Path: "/r/locked", Err: errors.New("permission denied")}}

	s := Summarize(results, entryErrors)

	if s.Discovered != 6 || s.Moved != 2 || s.Skipped != 1 || s.Failed != 2 || s.Unprocessed != 1 || s.EntryErrors != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.ByKind[MetadataError] != 1 || s.ByKind[RenameError] != 1 {
		t.Errorf("unexpected failure kinds %v", s.ByKind)
	}
	if got := s.BucketNames(); len(got) != 1 || got[0] != "2022/01" || s.Buckets["2022/01"] != 2 {
		t.Errorf("unexpected buckets %v", s.Buckets)
	}
	if s.Clean() {
		t.Error("summary with failures should not be clean")
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("failed to marshal summary: %v", err)
	}
	if !strings.Contains(string(data), `"metadata_error":1`) {
		t.Errorf("expected failure kinds keyed by name, got %s", data)
	}
}

func TestSortResults(t *testing.T) {
	results := []RelocationResult{
		Canceled(WorkItem{Path: "/b"}),
		Canceled(WorkItem{Path: "/a"}),
	}
	SortResults(results)
	if results[0].Item.Path != "/a" {
		t.Errorf("expected /a first, got %s", results[0].Item.Path)
	}
}

func TestOutcomeAndKindNames(t *testing.T) {
	for _, o := range []Outcome{OutcomeSuccess, OutcomeSkippedUndatable, OutcomeFailed, OutcomeCanceled} {
		if ParseOutcome(o.String()) != o {
			t.Errorf("outcome %v does not round trip", o)
		}
	}
	for k := MetadataError; k <= EntryReadError; k++ {
		if ParseFailureKind(k.String()) != k {
			t.Errorf("kind %v does not round trip", k)
		}
	}
	if ParseFailureKind("nonsense") != FailureNone {
		t.Error("unknown kinds should parse as FailureNone")
	}
}

func TestRun(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		run := NewRun("/data", "/data", "pool", 4, false)
		if err := run.Validate(); err == nil {
			t.Error("run without ID should not validate")
		}

		run.SetID("abc")
		if err := run.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}

		run.SetStatus("sideways")
		if err := run.Validate(); err == nil {
			t.Error("unknown status should not validate")
		}
	})

	t.Run("Finish", func(t *testing.T) {
		run := NewRun("/data", "/data", "spawner", 0, true)
		if run.Duration() != 0 {
			t.Error("running run should have zero duration")
		}

		run.Finish(Summary{Discovered: 3, Moved: 3}, RunCompleted)

		if run.Status() != RunCompleted {
			t.Errorf("expected completed, got %s", run.Status())
		}
		if run.FinishedAt() == nil {
			t.Fatal("finished time should be set")
		}
		if run.Summary().Moved != 3 {
			t.Errorf("expected summary to be stored, got %+v", run.Summary())
		}
	})

	t.Run("FailuresFrom", func(t *testing.T) {
		results := []RelocationResult{
			Succeeded(WorkItem{Path: "/r/a.txt"}, Bucket{Year: "2022", Month: "01"}, "/r/2022/01/a.txt"),
			Failed(WorkItem{Path: "/r/b.txt"}, RenameError, Bucket{}, errors.New("denied")),
		}
		entryErrors := []EntryError{{Path: "/r/sub", Err: errors.New("unreadable")}}

		failures := FailuresFrom("run-1", results, entryErrors)
		if len(failures) != 2 {
			t.Fatalf("expected 2 failures, got %d", len(failures))
		}
		if failures[0].Kind != RenameError || failures[0].Reason != "denied" {
			t.Errorf("unexpected first failure %+v", failures[0])
		}
		if failures[1].Kind != EntryReadError || failures[1].RunID != "run-1" {
			t.Errorf("unexpected entry failure %+v", failures[1])
		}
	})
}
