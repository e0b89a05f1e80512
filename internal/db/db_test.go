package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/scenario.report/internal/risk"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	latest, err := LatestVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if dirty {
		t.Error("expected clean schema")
	}
	if version != latest {
		t.Errorf("version = %d, want %d", version, latest)
	}
	if latest != 2 {
		t.Errorf("latest = %d, want 2", latest)
	}
}

func TestOpenDB_Pragmas(t *testing.T) {
	db := newTestDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)

	if err := db.MigrateDown(MigrationsFS()); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err := db.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}
	if _, err := db.BoxJobs(0); err == nil {
		t.Error("expected bbox_jobs to be gone after rollback")
	}

	if err := db.MigrateUp(MigrationsFS()); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if _, err := db.BoxJobs(0); err != nil {
		t.Errorf("BoxJobs after up: %v", err)
	}
}

func TestRuns_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	thr := 0.35
	run := &EvalRun{
		Mode:         "scenario",
		WindowFrames: 5,
		GoThreshold:  &thr,
		RiskFile:     "risk.json",
		GTFile:       "gt.json",
		Scenarios:    12,
		Notes:        "baseline",
	}
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if run.RunID == "" || run.CreatedAt == 0 {
		t.Fatalf("expected id and timestamp to be assigned: %+v", run)
	}

	got, err := db.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("GetRun mismatch (-want +got):\n%s", diff)
	}

	frames := &EvalRun{Mode: "frame", RiskFile: "risk.json", GTFile: "gt.json", CreatedAt: run.CreatedAt + 1}
	if err := db.InsertRun(frames); err != nil {
		t.Fatal(err)
	}
	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != frames.RunID {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs[0].GoThreshold != nil {
		t.Error("frame run should have no go threshold")
	}

	limited, err := db.ListRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(limited))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := db.DeleteRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPoints_CascadeOnDelete(t *testing.T) {
	db := newTestDB(t)

	run := &EvalRun{Mode: "scenario", WindowFrames: 3, RiskFile: "r", GTFile: "g"}
	if err := db.InsertRun(run); err != nil {
		t.Fatal(err)
	}
	points := []EvalPoint{
		{RunID: run.RunID, Threshold: 0.5, TP: 3, FP: 1, FN: 0, TN: 4, Precision: 0.75, Recall: 1, F1: 6.0 / 7.0},
		{RunID: run.RunID, Threshold: 0.1, TP: 1, FP: 0, FN: 2, TN: 5, Precision: 1, Recall: 1.0 / 3.0, F1: 0.5},
	}
	if err := db.InsertPoints(run.RunID, points); err != nil {
		t.Fatalf("InsertPoints failed: %v", err)
	}

	got, err := db.Points(run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	want := []EvalPoint{points[1], points[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Points mismatch (-want +got):\n%s", diff)
	}

	if err := db.DeleteRun(run.RunID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	got, err = db.Points(run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected points to be deleted with run, got %d", len(got))
	}
}

func TestPointsFromCurve(t *testing.T) {
	curve := []risk.Point{
		risk.NewPoint(0.5, risk.Confusion{TP: 2, FP: 2, FN: 1, TN: 5}),
		risk.NewPoint(0.9, risk.Confusion{TP: 0, FP: 0, FN: 3, TN: 7}),
	}
	rows := PointsFromCurve("run-1", curve)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := EvalPoint{RunID: "run-1", Threshold: 0.5, TP: 2, FP: 2, FN: 1, TN: 5, Precision: 0.5, Recall: 2.0 / 3.0, F1: 4.0 / 7.0}
	if diff := cmp.Diff(want, rows[0], cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("PointsFromCurve mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(curve, CurveFromPoints(rows)); diff != "" {
		t.Errorf("CurveFromPoints mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertPoints_UnknownRun(t *testing.T) {
	db := newTestDB(t)

	err := db.InsertPoints("nope", []EvalPoint{{Threshold: 0.5}})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestBoxJobs(t *testing.T) {
	db := newTestDB(t)

	ok := &BoxJob{Scenario: "collision/7/Town03_ClearNoon_car", Sensor: "instance_segmentation", OutputPath: "out.json", Frames: 10, Boxes: 14, DurationMS: 120}
	failed := &BoxJob{Scenario: "collision/8/Town03_ClearNoon_car", Sensor: "instance_segmentation", Error: "no frames", CreatedAt: 1}
	for _, j := range []*BoxJob{ok, failed} {
		if err := db.RecordBoxJob(j); err != nil {
			t.Fatalf("RecordBoxJob failed: %v", err)
		}
	}

	jobs, err := db.BoxJobs(0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*BoxJob{ok, failed}, jobs); diff != "" {
		t.Errorf("BoxJobs mismatch (-want +got):\n%s", diff)
	}

	counts, err := db.TableCounts()
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range counts {
		if c.Name == "bbox_jobs" && c.Rows != 2 {
			t.Errorf("bbox_jobs rows = %d, want 2", c.Rows)
		}
	}
}
