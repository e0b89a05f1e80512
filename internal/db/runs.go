package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scenario.report/internal/risk"
)

// EvalRun is one persisted risk evaluation.
type EvalRun struct {
	RunID        string   `json:"run_id"`
	CreatedAt    int64    `json:"created_at"`
	Mode         string   `json:"mode"`
	WindowFrames int      `json:"window_frames"`
	GoThreshold  *float64 `json:"go_threshold,omitempty"`
	RiskFile     string   `json:"risk_file"`
	GTFile       string   `json:"gt_file"`
	Scenarios    int      `json:"scenarios"`
	Notes        string   `json:"notes,omitempty"`
}

// EvalPoint is one threshold of a run's curve.
type EvalPoint struct {
	RunID     string  `json:"run_id"`
	Threshold float64 `json:"threshold"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	TN        int     `json:"tn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// PointsFromCurve converts curve points into rows for runID.
func PointsFromCurve(runID string, points []risk.Point) []EvalPoint {
	rows := make([]EvalPoint, len(points))
	for i, p := range points {
		rows[i] = EvalPoint{
			RunID:     runID,
			Threshold: p.Threshold,
			TP:        p.TP,
			FP:        p.FP,
			FN:        p.FN,
			TN:        p.TN,
			Precision: p.Precision,
			Recall:    p.Recall,
			F1:        p.F1,
		}
	}
	return rows
}

// CurveFromPoints converts stored rows back into curve points.
func CurveFromPoints(stored []EvalPoint) []risk.Point {
	points := make([]risk.Point, len(stored))
	for i, p := range stored {
		points[i] = risk.NewPoint(p.Threshold, risk.Confusion{TP: p.TP, FP: p.FP, FN: p.FN, TN: p.TN})
	}
	return points
}

// InsertRun stores a run. An empty RunID is filled with a new UUID and a
// zero CreatedAt with the current time.
func (db *DB) InsertRun(run *EvalRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	var notes interface{}
	if run.Notes != "" {
		notes = run.Notes
	}
	return retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO eval_runs (
				run_id, created_at, mode, window_frames, go_threshold,
				risk_file, gt_file, scenarios, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.Mode, run.WindowFrames, run.GoThreshold,
			run.RiskFile, run.GTFile, run.Scenarios, notes,
		)
		return err
	})
}

const runColumns = `run_id, created_at, mode, window_frames, go_threshold, risk_file, gt_file, scenarios, notes`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*EvalRun, error) {
	var r EvalRun
	var goThr sql.NullFloat64
	var notes sql.NullString
	if err := row.Scan(&r.RunID, &r.CreatedAt, &r.Mode, &r.WindowFrames, &goThr,
		&r.RiskFile, &r.GTFile, &r.Scenarios, &notes); err != nil {
		return nil, err
	}
	if goThr.Valid {
		v := goThr.Float64
		r.GoThreshold = &v
	}
	r.Notes = notes.String
	return &r, nil
}

// GetRun returns one run or ErrNotFound.
func (db *DB) GetRun(runID string) (*EvalRun, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM eval_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]*EvalRun, error) {
	query := `SELECT ` + runColumns + ` FROM eval_runs ORDER BY created_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*EvalRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its points.
func (db *DB) DeleteRun(runID string) error {
	var affected int64
	err := retryOnBusy(func() error {
		res, err := db.Exec(`DELETE FROM eval_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// InsertPoints stores the curve of a run in one transaction, replacing
// any existing point at the same threshold.
func (db *DB) InsertPoints(runID string, points []EvalPoint) error {
	return retryOnBusy(func() error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO eval_points (
				run_id, threshold, tp, fp, fn, tn, precision, recall, f1
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.Exec(runID, p.Threshold, p.TP, p.FP, p.FN, p.TN, p.Precision, p.Recall, p.F1); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Points returns a run's curve ordered by threshold.
func (db *DB) Points(runID string) ([]EvalPoint, error) {
	rows, err := db.Query(`
		SELECT run_id, threshold, tp, fp, fn, tn, precision, recall, f1
		FROM eval_points WHERE run_id = ? ORDER BY threshold`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	points := []EvalPoint{}
	for rows.Next() {
		var p EvalPoint
		if err := rows.Scan(&p.RunID, &p.Threshold, &p.TP, &p.FP, &p.FN, &p.TN, &p.Precision, &p.Recall, &p.F1); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
