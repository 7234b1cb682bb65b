package storage

import (
	"database/sql"
	"fmt"
)

// StartRun inserts a run in the running state.
func (s *Store) StartRun(run CycleRun) error {
	status := run.Status
	if status == "" {
		status = RunRunning
	}
	_, err := s.db.Exec(`
		INSERT INTO cycle_runs (id, workflow, trigger_mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Workflow, run.Trigger, status, formatTime(run.StartedAt),
	)
	return err
}

// FinishRun stores the final status and counts of a run.
func (s *Store) FinishRun(run CycleRun) error {
	res, err := s.db.Exec(`
		UPDATE cycle_runs
		SET status = ?, finished_at = ?, items = ?, succeeded = ?, failed = ?, skipped = ?, error = ?
		WHERE id = ?`,
		run.Status, formatTime(run.FinishedAt), run.Items, run.Succeeded, run.Failed, run.Skipped,
		nullString(run.Error), run.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, workflow, trigger_mode, status, started_at, finished_at, items, succeeded, failed, skipped, error`

func (s *Store) GetRun(id string) (CycleRun, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM cycle_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return CycleRun{}, ErrNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs first, optionally filtered by workflow.
func (s *Store) ListRuns(workflow string, limit int) ([]CycleRun, error) {
	query := `SELECT ` + runColumns + ` FROM cycle_runs`
	args := []any{}
	if workflow != "" {
		query += ` WHERE workflow = ?`
		args = append(args, workflow)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (CycleRun, error) {
	var r CycleRun
	var started string
	var finished, errMsg sql.NullString
	if err := sc.Scan(&r.ID, &r.Workflow, &r.Trigger, &r.Status, &started, &finished,
		&r.Items, &r.Succeeded, &r.Failed, &r.Skipped, &errMsg); err != nil {
		return CycleRun{}, err
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return CycleRun{}, fmt.Errorf("parsing started_at for run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseNullTime(finished); err != nil {
		return CycleRun{}, fmt.Errorf("parsing finished_at for run %s: %w", r.ID, err)
	}
	r.Error = errMsg.String
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
