package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"xtherma_bridge/internal/types"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTest(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	n := 0
	j.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}

	j.Record(types.WriteRecord{Key: "411", Display: -20, Raw: -20})
	j.Record(types.WriteRecord{Key: "451", Display: 16, Raw: 16})
	j.Record(types.WriteRecord{Key: "411", Display: -15, Raw: -15, Err: types.ErrBusy})

	ctx := context.Background()
	all, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(all))
	}
	if all[0].Key != "411" || all[0].Display != -15 || all[0].Error != types.ErrBusy.Error() {
		t.Errorf("newest = %+v, want failed 411 write of -15", all[0])
	}
	if !all[2].At.Equal(base.Add(time.Second)) {
		t.Errorf("oldest At = %v, want %v", all[2].At, base.Add(time.Second))
	}

	only, err := j.Recent(ctx, "411", 1)
	if err != nil {
		t.Fatalf("Recent(411) error: %v", err)
	}
	if len(only) != 1 || only[0].Display != -15 {
		t.Errorf("Recent(411, 1) = %+v, want the -15 write", only)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	j, err := Open(path, logger)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	j.Record(types.WriteRecord{Key: "501", Display: 50, Raw: 50})
	j.Close()

	j, err = Open(path, logger)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer j.Close()

	entries, err := j.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "501" {
		t.Errorf("entries = %+v, want one 501 write", entries)
	}
}
