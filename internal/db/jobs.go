package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BoxJob records the outcome of extracting boxes for one variant.
type BoxJob struct {
	JobID       string `json:"job_id"`
	Scenario    string `json:"scenario"`
	Sensor      string `json:"sensor"`
	OutputPath  string `json:"output_path"`
	Frames      int    `json:"frames"`
	Boxes       int    `json:"boxes"`
	FrameErrors int    `json:"frame_errors"`
	Skipped     bool   `json:"skipped"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// RecordBoxJob stores a job, assigning an id and timestamp when missing.
func (db *DB) RecordBoxJob(job *BoxJob) error {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.CreatedAt == 0 {
		job.CreatedAt = time.Now().UnixNano()
	}
	var errText interface{}
	if job.Error != "" {
		errText = job.Error
	}
	return retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO bbox_jobs (
				job_id, scenario, sensor, output_path, frames, boxes,
				frame_errors, skipped, duration_ms, error, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.JobID, job.Scenario, job.Sensor, job.OutputPath, job.Frames, job.Boxes,
			job.FrameErrors, job.Skipped, job.DurationMS, errText, job.CreatedAt,
		)
		return err
	})
}

// BoxJobs returns the most recent jobs first. limit <= 0 returns all.
func (db *DB) BoxJobs(limit int) ([]*BoxJob, error) {
	query := `
		SELECT job_id, scenario, sensor, output_path, frames, boxes,
		       frame_errors, skipped, duration_ms, error, created_at
		FROM bbox_jobs ORDER BY created_at DESC, job_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list box jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*BoxJob{}
	for rows.Next() {
		var j BoxJob
		var errText sql.NullString
		if err := rows.Scan(&j.JobID, &j.Scenario, &j.Sensor, &j.OutputPath, &j.Frames, &j.Boxes,
			&j.FrameErrors, &j.Skipped, &j.DurationMS, &errText, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan box job: %w", err)
		}
		j.Error = errText.String
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}
