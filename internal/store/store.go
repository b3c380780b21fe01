// Package store handles SQLite persistence of finalized attempts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/typegrade/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for attempt results. It is invoked by the
// CLI after scoring; the grading core itself never touches it.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY,
			profile_id TEXT NOT NULL,
			lang TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			keystrokes INTEGER NOT NULL,
			backspaces INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			gross_speed REAL NOT NULL,
			net_speed REAL NOT NULL,
			net_wpm REAL NOT NULL,
			accuracy_pct REAL NOT NULL,
			total_errors REAL NOT NULL,
			ignored_errors REAL NOT NULL,
			chargeable_errors REAL NOT NULL,
			penalty REAL NOT NULL,
			qualified INTEGER NOT NULL,
			below_min_keystrokes INTEGER NOT NULL,
			below_eligibility INTEGER NOT NULL,
			score REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempt_word_errors (
			attempt_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			reference TEXT NOT NULL,
			typed TEXT NOT NULL,
			status TEXT NOT NULL,
			PRIMARY KEY (attempt_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_ended_at ON attempts(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_attempt_word_errors_reference ON attempt_word_errors(reference);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertAttempt stores a finalized attempt and its word-level errors.
func (s *Store) InsertAttempt(ctx context.Context, rec model.AttemptRecord, wordErrors []model.WordError) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (profile_id, lang, started_at, ended_at, keystrokes, backspaces, duration_ms,
			gross_speed, net_speed, net_wpm, accuracy_pct, total_errors, ignored_errors, chargeable_errors,
			penalty, qualified, below_min_keystrokes, below_eligibility, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ProfileID,
		rec.Lang,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.EndedAt.Format(time.RFC3339Nano),
		rec.Keystrokes,
		rec.Backspaces,
		rec.DurationMs,
		rec.Result.GrossSpeed,
		rec.Result.NetSpeed,
		rec.Result.NetWPM,
		rec.Result.AccuracyPct,
		rec.Result.TotalErrors,
		rec.Result.IgnoredErrors,
		rec.Result.ChargeableErrors,
		rec.Result.PenaltyAmount,
		boolToInt(rec.Result.Qualified),
		boolToInt(rec.Result.BelowMinKeystrokes),
		boolToInt(rec.Result.BelowEligibility),
		rec.Result.Score,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(wordErrors) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO attempt_word_errors (attempt_id, position, reference, typed, status)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, we := range wordErrors {
			if _, err := stmt.ExecContext(ctx, id, we.Position, we.Reference, we.Typed, we.Status); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListAttempts returns attempt records filtered by the results filter,
// oldest first.
func (s *Store) ListAttempts(ctx context.Context, filter model.ResultsFilter) ([]model.AttemptRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.ProfileID != "" {
		clauses = append(clauses, "profile_id = ?")
		args = append(args, filter.ProfileID)
	}
	if filter.Lang != "" {
		clauses = append(clauses, "lang = ?")
		args = append(args, filter.Lang)
	}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, profile_id, lang, started_at, ended_at, keystrokes, backspaces, duration_ms,
			gross_speed, net_speed, net_wpm, accuracy_pct, total_errors, ignored_errors, chargeable_errors,
			penalty, qualified, below_min_keystrokes, below_eligibility, score
		FROM attempts
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var attempts []model.AttemptRecord
	for rows.Next() {
		var rec model.AttemptRecord
		var startedAt, endedAt string
		var qualified, belowKeys, belowElig int
		if err := rows.Scan(&rec.AttemptID, &rec.ProfileID, &rec.Lang, &startedAt, &endedAt,
			&rec.Keystrokes, &rec.Backspaces, &rec.DurationMs,
			&rec.Result.GrossSpeed, &rec.Result.NetSpeed, &rec.Result.NetWPM, &rec.Result.AccuracyPct,
			&rec.Result.TotalErrors, &rec.Result.IgnoredErrors, &rec.Result.ChargeableErrors,
			&rec.Result.PenaltyAmount, &qualified, &belowKeys, &belowElig, &rec.Result.Score); err != nil {
			return nil, err
		}
		started, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, err
		}
		ended, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		rec.StartedAt = started
		rec.EndedAt = ended
		rec.Result.Qualified = qualified != 0
		rec.Result.BelowMinKeystrokes = belowKeys != 0
		rec.Result.BelowEligibility = belowElig != 0
		rec.Result.FormattedScore = fmt.Sprintf("%.2f", rec.Result.Score)
		attempts = append(attempts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

// ListWordErrors returns the stored word errors of one attempt in
// passage order.
func (s *Store) ListWordErrors(ctx context.Context, attemptID int64) ([]model.WordError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, reference, typed, status
		 FROM attempt_word_errors
		 WHERE attempt_id = ?
		 ORDER BY position ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var out []model.WordError
	for rows.Next() {
		var we model.WordError
		if err := rows.Scan(&we.Position, &we.Reference, &we.Typed, &we.Status); err != nil {
			return nil, err
		}
		out = append(out, we)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AggregateWordErrors aggregates reference-word error counts over the
// most recent attempts.
func (s *Store) AggregateWordErrors(ctx context.Context, window int, profileID string) ([]model.WordErrorAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_attempts AS (
		SELECT id FROM attempts
		WHERE (? = '' OR profile_id = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT we.reference,
		SUM(CASE WHEN we.status = 'mismatch' THEN 1 ELSE 0 END) AS mismatches,
		SUM(CASE WHEN we.status = 'missing' THEN 1 ELSE 0 END) AS missing
	FROM attempt_word_errors we
	JOIN recent_attempts r ON r.id = we.attempt_id
	WHERE we.reference != ''
	GROUP BY we.reference`

	rows, err := s.db.QueryContext(ctx, query, profileID, profileID, window)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.WordErrorAggregate
	for rows.Next() {
		var agg model.WordErrorAggregate
		if err := rows.Scan(&agg.Reference, &agg.Mismatches, &agg.Missing); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
