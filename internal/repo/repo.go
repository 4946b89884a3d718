package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"inductionlog/internal/domain"
	"inductionlog/internal/ingest"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// LogRecord is a stored induction log with its document.
type LogRecord struct {
	ID        string
	CreatedBy string
	CreatedAt string
	UpdatedAt string
	Data      domain.FormData
}

func (l LogRecord) Summary() domain.LogSummary {
	return domain.LogSummary{
		ID:            l.ID,
		Inductee:      l.Data.Inductee,
		Building:      l.Data.Building,
		SchoolYearOne: l.Data.SchoolYearOne,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func encode(d domain.FormData) (string, error) {
	b, err := json.Marshal(d.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode log data: %w", err)
	}
	return string(b), nil
}

func (r Repo) InsertLog(ctx context.Context, tx *sql.Tx, l LogRecord) error {
	data, err := encode(l.Data)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO induction_logs(id,inductee,building,school_year_one,data_json,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		l.ID, l.Data.Inductee, l.Data.Building, l.Data.SchoolYearOne, data, l.CreatedBy, l.CreatedAt, l.UpdatedAt)
	return err
}

// UpdateLogData replaces the document of a log and its denormalised columns.
func (r Repo) UpdateLogData(ctx context.Context, tx *sql.Tx, id string, d domain.FormData, updatedAt string) error {
	data, err := encode(d)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE induction_logs SET inductee=?, building=?, school_year_one=?, data_json=?, updated_at=? WHERE id=?`,
		d.Inductee, d.Building, d.SchoolYearOne, data, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLog(ctx context.Context, q querier, id string) (LogRecord, error) {
	var (
		l    LogRecord
		data string
	)
	err := q.QueryRowContext(ctx, `SELECT id,created_by,created_at,updated_at,data_json FROM induction_logs WHERE id=?`, id).
		Scan(&l.ID, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	if err != nil {
		return l, err
	}
	l.Data, err = ingest.DecodeFormData([]byte(data))
	if err != nil {
		return l, fmt.Errorf("decode log %s: %w", id, err)
	}
	return l, nil
}

func (r Repo) GetLog(ctx context.Context, id string) (LogRecord, error) {
	return scanLog(ctx, r.DB, id)
}

func (r Repo) GetLogTx(ctx context.Context, tx *sql.Tx, id string) (LogRecord, error) {
	return scanLog(ctx, tx, id)
}

type LogFilters struct {
	Inductee string
	Building string
	Limit    int
}

func (r Repo) ListLogs(ctx context.Context, f LogFilters) ([]domain.LogSummary, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Inductee != "" {
		clauses = append(clauses, "inductee LIKE ?")
		args = append(args, "%"+f.Inductee+"%")
	}
	if f.Building != "" {
		clauses = append(clauses, "building=?")
		args = append(args, f.Building)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id,inductee,building,school_year_one,created_at,updated_at FROM induction_logs WHERE %s ORDER BY created_at DESC, id LIMIT ?`,
		strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.LogSummary{}
	for rows.Next() {
		var s domain.LogSummary
		if err := rows.Scan(&s.ID, &s.Inductee, &s.Building, &s.SchoolYearOne, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) DeleteLog(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM induction_logs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type EventFilters struct {
	LogID  string
	Type   string
	Cursor int64
	Limit  int
}

// LatestEvents returns events newest first. A non-zero Cursor returns only
// events older than it.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.LogID != "" {
		clauses = append(clauses, "log_id=?")
		args = append(args, f.LogID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(log_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.LogID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with an id above afterID, oldest
// first.
func (r Repo) EventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(log_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id LIMIT ?`,
		afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.LogID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the id of the newest event, or 0.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}
