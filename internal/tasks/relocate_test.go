package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/datesort/internal/fsx"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/shared"
	tu "github.com/desertthunder/datesort/internal/testing"
)

// fakeInfo is an [os.FileInfo] with a chosen modification time.
type fakeInfo struct {
	name  string
	mtime time.Time
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return f.mtime }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

func TestRelocator(t *testing.T) {
	t.Run("moves file into its bucket", func(t *testing.T) {
		tc := []struct {
			name   string
			mtime  time.Time
			bucket string
		}{
			{name: "march.txt", mtime: tu.Date(2023, 3, 14), bucket: "2023/03"},
			{name: "december.txt", mtime: tu.Date(2023, 12, 1), bucket: "2023/12"},
			{name: "new-year.txt", mtime: time.Date(2021, 12, 31, 23, 59, 59, 0, time.UTC), bucket: "2021/12"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				root := t.TempDir()
				src := tu.WriteFileAt(t, filepath.Join(root, tt.name), "content", tt.mtime)

				r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
				res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)

				if res.Outcome != models.OutcomeSuccess {
					t.Fatalf("expected success, got %s (%v)", res.Outcome, res.Err)
				}
				if res.Bucket.String() != tt.bucket {
					t.Errorf("expected bucket %s, got %s", tt.bucket, res.Bucket)
				}

				dest := filepath.Join(root, filepath.FromSlash(tt.bucket), tt.name)
				if res.Destination != dest {
					t.Errorf("expected destination %s, got %s", dest, res.Destination)
				}
				if tu.MustReadFile(t, dest) != "content" {
					t.Error("moved file content changed")
				}
				tu.AssertMissing(t, src)
			})
		}
	})

	t.Run("logs the file being moved", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "a", tu.Date(2022, 1, 15))

		var buf bytes.Buffer
		r := NewRelocator(RelocatorOpts{Logger: shared.NewLogger(&buf)})
		r.Relocate(context.Background(), models.WorkItem{Path: src}, root)

		if !strings.Contains(buf.String(), "Moving file: a.txt") {
			t.Errorf("expected progress line, got %q", buf.String())
		}
	})

	t.Run("file already in its bucket", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "2022", "01", "a.txt"), "a", tu.Date(2022, 1, 15))

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		r.rename = func(string, string) error { return errors.New("should not rename") }

		res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)
		if res.Outcome != models.OutcomeSuccess {
			t.Errorf("expected success, got %s (%v)", res.Outcome, res.Err)
		}
		tu.AssertFileExists(t, src)
	})

	t.Run("metadata failure", func(t *testing.T) {
		root := t.TempDir()
		item := models.WorkItem{Path: filepath.Join(root, "deleted.txt")}

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		res := r.Relocate(context.Background(), item, root)

		if res.Outcome != models.OutcomeFailed || res.Kind != models.MetadataError {
			t.Errorf("expected Failed(MetadataError), got %s/%s", res.Outcome, res.Kind)
		}
		if !errors.Is(res.Err, os.ErrNotExist) {
			t.Errorf("expected not-exist cause, got %v", res.Err)
		}
	})

	t.Run("undatable timestamp leaves filesystem untouched", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "future.txt"), "f", tu.Date(2022, 1, 1))

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		r.stat = func(string) (os.FileInfo, error) {
			return fakeInfo{name: "future.txt", mtime: time.Date(12000, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
		}

		res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)
		if res.Outcome != models.OutcomeSkippedUndatable {
			t.Fatalf("expected SkippedUndatable, got %s", res.Outcome)
		}
		if res.Kind != models.TimestampOutOfRange {
			t.Errorf("expected TimestampOutOfRange, got %s", res.Kind)
		}
		tu.AssertFileExists(t, src)

		entries, _ := os.ReadDir(root)
		if len(entries) != 1 {
			t.Errorf("no directories should be created, found %d entries", len(entries))
		}
	})

	t.Run("directory creation failure keeps source", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "a", tu.Date(2022, 1, 15))

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		r.ensure = func(string) error { return fmt.Errorf("read-only filesystem") }

		res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)
		if res.Outcome != models.OutcomeFailed || res.Kind != models.DirectoryCreationError {
			t.Errorf("expected Failed(DirectoryCreationError), got %s/%s", res.Outcome, res.Kind)
		}
		tu.AssertFileExists(t, src)
	})

	t.Run("injected rename failure keeps source intact", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "original", tu.Date(2022, 1, 15))

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		r.rename = func(string, string) error { return os.ErrPermission }

		res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)
		if res.Outcome != models.OutcomeFailed || res.Kind != models.RenameError {
			t.Fatalf("expected Failed(RenameError), got %s/%s", res.Outcome, res.Kind)
		}
		if tu.MustReadFile(t, src) != "original" {
			t.Error("source content changed after failed rename")
		}
		tu.AssertMissing(t, filepath.Join(root, "2022", "01", "a.txt"))
	})

	t.Run("destination is claimed before the rename", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "a", tu.Date(2022, 1, 15))
		dest := filepath.Join(root, "2022", "01", "a.txt")

		claims := &Claims{}
		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		claimedDuringRename := false
		r.rename = func(from, to string) error {
			claimedDuringRename = claims.Has(to)
			return fsx.Rename(from, to)
		}

		res := r.RelocateClaimed(context.Background(), models.WorkItem{Path: src}, root, claims)
		if res.Outcome != models.OutcomeSuccess {
			t.Fatalf("expected success, got %s (%v)", res.Outcome, res.Err)
		}
		if !claimedDuringRename {
			t.Error("destination should be claimed while renaming")
		}
		if !claims.Has(dest) {
			t.Error("destination should stay claimed after a successful move")
		}
	})

	t.Run("failed rename releases the claim", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "a", tu.Date(2022, 1, 15))

		claims := &Claims{}
		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		r.rename = func(string, string) error { return os.ErrPermission }

		r.RelocateClaimed(context.Background(), models.WorkItem{Path: src}, root, claims)
		if claims.Has(filepath.Join(root, "2022", "01", "a.txt")) {
			t.Error("claim should be released when the rename fails")
		}
	})

	t.Run("real rename failure keeps source intact", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "original", tu.Date(2022, 1, 15))
		// A non-empty directory squatting on the destination name makes rename fail.
		tu.WriteFileAt(t, filepath.Join(root, "2022", "01", "a.txt", "occupant"), "x", tu.Date(2022, 1, 15))

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)

		if res.Outcome != models.OutcomeFailed || res.Kind != models.RenameError {
			t.Fatalf("expected Failed(RenameError), got %s/%s", res.Outcome, res.Kind)
		}
		if tu.MustReadFile(t, src) != "original" {
			t.Error("source content changed after failed rename")
		}
	})

	t.Run("dry run touches nothing", func(t *testing.T) {
		root := t.TempDir()
		src := tu.WriteFileAt(t, filepath.Join(root, "a.txt"), "a", tu.Date(2022, 1, 15))

		r := NewRelocator(RelocatorOpts{DryRun: true, Logger: quietLogger()})
		res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)

		if res.Outcome != models.OutcomeSuccess {
			t.Errorf("expected planned success, got %s", res.Outcome)
		}
		if res.Destination != filepath.Join(root, "2022", "01", "a.txt") {
			t.Errorf("unexpected planned destination %s", res.Destination)
		}
		tu.AssertFileExists(t, src)
		tu.AssertMissing(t, filepath.Join(root, "2022"))
	})

	t.Run("concurrent relocations into one bucket all succeed", func(t *testing.T) {
		root := t.TempDir()
		const n = 64
		items := make([]models.WorkItem, n)
		for i := range items {
			items[i] = models.WorkItem{
				Path: tu.WriteFileAt(t, filepath.Join(root, fmt.Sprintf("f%02d.txt", i)), "x", tu.Date(2022, 1, 10)),
			}
		}

		r := NewRelocator(RelocatorOpts{Logger: quietLogger()})
		results := make([]models.RelocationResult, n)

		var wg sync.WaitGroup
		for i, item := range items {
			wg.Add(1)
			go func(i int, item models.WorkItem) {
				defer wg.Done()
				results[i] = r.Relocate(context.Background(), item, root)
			}(i, item)
		}
		wg.Wait()

		for i, res := range results {
			if res.Outcome != models.OutcomeSuccess {
				t.Errorf("item %d: expected success, got %s/%s (%v)", i, res.Outcome, res.Kind, res.Err)
			}
		}

		entries, err := os.ReadDir(filepath.Join(root, "2022", "01"))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != n {
			t.Errorf("expected %d files in bucket, got %d", n, len(entries))
		}
	})

	t.Run("rate limited relocations still complete", func(t *testing.T) {
		root := t.TempDir()
		r := NewRelocator(RelocatorOpts{RateLimit: 1000, Logger: quietLogger()})
		if r.limiter == nil {
			t.Fatal("expected limiter to be configured")
		}

		for i := 0; i < 3; i++ {
			src := tu.WriteFileAt(t, filepath.Join(root, fmt.Sprintf("r%d.txt", i)), "r", tu.Date(2020, 2, 2))
			res := r.Relocate(context.Background(), models.WorkItem{Path: src}, root)
			if res.Outcome != models.OutcomeSuccess {
				t.Errorf("expected success, got %s (%v)", res.Outcome, res.Err)
			}
		}
	})
}
