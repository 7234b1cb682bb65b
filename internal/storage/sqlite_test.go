package storage

import (
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("applied %v, want 2 migrations", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_cycle_runs_started", "idx_cycle_runs_workflow", "idx_notifications_created"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_notifications.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if _, err := parseMigrationVersion("notes.sql"); err == nil {
		t.Error("expected error for unnumbered file")
	}
}

func TestSeenImages(t *testing.T) {
	s := openTestStore(t)

	seen, err := s.IsImageSeen("img-1")
	if err != nil {
		t.Fatalf("IsImageSeen: %v", err)
	}
	if seen {
		t.Fatal("img-1 seen before marking")
	}

	base := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	if err := s.MarkImageSeen(SeenImage{ID: "img-1", Name: "a.jpg", CompletedAt: base}); err != nil {
		t.Fatalf("MarkImageSeen: %v", err)
	}
	if err := s.MarkImageSeen(SeenImage{ID: "img-2", Name: "b.jpg", CompletedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("MarkImageSeen: %v", err)
	}
	// Marking twice keeps the first record.
	if err := s.MarkImageSeen(SeenImage{ID: "img-1", Name: "renamed.jpg", CompletedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("MarkImageSeen duplicate: %v", err)
	}

	seen, err = s.IsImageSeen("img-1")
	if err != nil {
		t.Fatalf("IsImageSeen: %v", err)
	}
	if !seen {
		t.Error("img-1 not seen after marking")
	}

	ids, err := s.SeenImageIDs()
	if err != nil {
		t.Fatalf("SeenImageIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "img-1" || ids[1] != "img-2" {
		t.Errorf("SeenImageIDs = %v, want [img-1 img-2]", ids)
	}

	list, err := s.ListSeenImages(10)
	if err != nil {
		t.Fatalf("ListSeenImages: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListSeenImages returned %d, want 2", len(list))
	}
	if list[0].ID != "img-2" {
		t.Errorf("newest first: got %q", list[0].ID)
	}
	if list[1].Name != "a.jpg" {
		t.Errorf("duplicate mark overwrote name: %q", list[1].Name)
	}
	if !list[1].CompletedAt.Equal(base) {
		t.Errorf("CompletedAt = %v, want %v", list[1].CompletedAt, base)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	start := time.Now().UTC().Truncate(time.Second)
	run := CycleRun{ID: "run-1", Workflow: "images", Trigger: "polling", StartedAt: start}
	if err := s.StartRun(run); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunRunning {
		t.Errorf("Status = %q, want %q", got.Status, RunRunning)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero", got.FinishedAt)
	}

	run.Status = RunCompleted
	run.FinishedAt = start.Add(2 * time.Minute)
	run.Items, run.Succeeded, run.Failed, run.Skipped = 4, 2, 1, 1
	if err := s.FinishRun(run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err = s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunCompleted || got.Items != 4 || got.Succeeded != 2 || got.Failed != 1 || got.Skipped != 1 {
		t.Errorf("unexpected run after finish: %+v", got)
	}
	if !got.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, run.FinishedAt)
	}
	if got.Trigger != "polling" {
		t.Errorf("Trigger = %q, want polling", got.Trigger)
	}
}

func TestFinishRunNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.FinishRun(CycleRun{ID: "missing", Status: RunFailed, FinishedAt: time.Now()})
	if err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRun("missing"); err != ErrNotFound {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
}

func TestListRunsFilterAndOrder(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		wf := "content"
		if i%2 == 0 {
			wf = "images"
		}
		run := CycleRun{ID: fmt.Sprintf("run-%d", i), Workflow: wf, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.StartRun(run); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}

	all, err := s.ListRuns("", 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListRuns returned %d, want 3", len(all))
	}
	if all[0].ID != "run-4" {
		t.Errorf("first run = %q, want run-4", all[0].ID)
	}

	images, err := s.ListRuns("images", 10)
	if err != nil {
		t.Fatalf("ListRuns(images): %v", err)
	}
	if len(images) != 3 {
		t.Errorf("images runs = %d, want 3", len(images))
	}
	for _, r := range images {
		if r.Workflow != "images" {
			t.Errorf("unexpected workflow %q", r.Workflow)
		}
	}
}

func TestNotifications(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveNotification(Notification{ID: "n1", Kind: "failure", Subject: "Susi S3 Upload Failed", Transport: "smtp", Error: "dial tcp: refused", CreatedAt: base}); err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}
	if err := s.SaveNotification(Notification{ID: "n2", Kind: "success", Subject: "Susi Post Created", Transport: "gmail", Delivered: true, CreatedAt: base.Add(time.Second)}); err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}

	list, err := s.ListNotifications(10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d notifications, want 2", len(list))
	}
	if list[0].ID != "n2" || !list[0].Delivered {
		t.Errorf("first = %+v, want delivered n2", list[0])
	}
	if list[1].Delivered || list[1].Error != "dial tcp: refused" {
		t.Errorf("second = %+v, want undelivered with error", list[1])
	}
}
