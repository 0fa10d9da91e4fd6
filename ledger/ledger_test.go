package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dyfetch/internal"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	done, err := store.IsDownloaded(ctx, "v1", "post:sec1")
	if err != nil {
		t.Fatalf("IsDownloaded: %v", err)
	}
	if done {
		t.Fatal("fresh store should not know v1")
	}

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Record(ctx, "v1", "post:sec1", created, "first clip"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	done, err = store.IsDownloaded(ctx, "v1", "post:sec1")
	if err != nil {
		t.Fatalf("IsDownloaded: %v", err)
	}
	if !done {
		t.Error("v1 should be recorded")
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, "v1", "post:sec1", created, "clip"); err != nil {
			t.Fatalf("Record #%d: %v", i+1, err)
		}
	}

	n, err := store.CountForScope(ctx, "post:sec1")
	if err != nil {
		t.Fatalf("CountForScope: %v", err)
	}
	if n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}
}

func TestScopeNamespacesAreIndependent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := time.Now()
	if err := store.Record(ctx, "v1", "post:sec1", created, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Same item under a mix scope is a separate entry
	if done, _ := store.IsDownloaded(ctx, "v1", "mix:m1"); done {
		t.Error("mix scope should not see the post scope's entry")
	}
	if err := store.Record(ctx, "v1", "mix:m1", created, ""); err != nil {
		t.Fatalf("Record mix: %v", err)
	}
	if done, _ := store.IsDownloaded(ctx, "v1", "mix:m1"); !done {
		t.Error("mix scope entry missing")
	}
}

func TestHighWaterTime(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.HighWaterTime(ctx, "post:sec1"); err != nil || ok {
		t.Fatalf("empty scope: ok=%v err=%v", ok, err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Record(ctx, "v1", "post:sec1", base, "")
	store.Record(ctx, "v2", "post:sec1", base.Add(2*time.Hour), "")
	store.Record(ctx, "v3", "post:sec1", base.Add(time.Hour), "")
	store.Record(ctx, "other", "post:sec2", base.Add(10*time.Hour), "")

	high, ok, err := store.HighWaterTime(ctx, "post:sec1")
	if err != nil {
		t.Fatalf("HighWaterTime: %v", err)
	}
	if !ok {
		t.Fatal("scope with entries should report a high-water mark")
	}
	if !high.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("high water = %v, want %v", high, base.Add(2*time.Hour))
	}
}

func TestRecordRunSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	result := internal.DownloadResult{Total: 5, Success: 3, Failed: 1, Skipped: 1}
	if err := store.RecordRunSummary(ctx, started, time.Now(), result); err != nil {
		t.Fatalf("RecordRunSummary: %v", err)
	}

	var total, success, failed, skipped int
	err := store.db.QueryRowContext(ctx,
		`SELECT total, success, failed, skipped FROM run_summaries ORDER BY id DESC LIMIT 1`).
		Scan(&total, &success, &failed, &skipped)
	if err != nil {
		t.Fatalf("query summary: %v", err)
	}
	if total != 5 || success != 3 || failed != 1 || skipped != 1 {
		t.Errorf("summary row = %d/%d/%d/%d", total, success, failed, skipped)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := store.Record(ctx, "v1", "post:sec1", time.Now(), ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if done, _ := reopened.IsDownloaded(ctx, "v1", "post:sec1"); !done {
		t.Error("history should survive reopen")
	}
}

func TestNoopLedger(t *testing.T) {
	var ledger internal.Ledger = NewNoop()
	ctx := context.Background()

	if err := ledger.Record(ctx, "v1", "post:sec1", time.Now(), ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if done, _ := ledger.IsDownloaded(ctx, "v1", "post:sec1"); done {
		t.Error("noop ledger never skips")
	}
	if _, ok, _ := ledger.HighWaterTime(ctx, "post:sec1"); ok {
		t.Error("noop ledger has no high-water mark")
	}
}
