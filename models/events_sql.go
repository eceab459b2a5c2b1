package models

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect picks the placeholder style of the SQL backend.
type Dialect int

const (
	DialectSQLite Dialect = iota // ?
	DialectPostgres              // $1, $2, ...
)

type sqlEventRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLEventRepository(db *sql.DB, dialect Dialect) EventRepository {
	return &sqlEventRepo{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders for postgres.
func (r *sqlEventRepo) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *sqlEventRepo) GetAll() ([]Event, error) {
	return r.query(`SELECT id, event, date FROM events ORDER BY id`)
}

func (r *sqlEventRepo) GetByDateRange(start, end time.Time) ([]Event, error) {
	return r.query(`SELECT id, event, date FROM events WHERE date >= ? AND date <= ? ORDER BY id`,
		FormatDate(start), FormatDate(end))
}

func (r *sqlEventRepo) GetByID(id int64) (Event, error) {
	row := r.db.QueryRow(r.rebind(`SELECT id, event, date FROM events WHERE id = ?`), id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return e, nil
}

func (r *sqlEventRepo) Create(e *Event) error {
	// RETURNING works on both postgres and sqlite >= 3.35
	err := r.db.QueryRow(r.rebind(`INSERT INTO events(event, date) VALUES (?, ?) RETURNING id`),
		e.Name, FormatDate(e.Date)).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.Date = DateOf(e.Date)
	return nil
}

func (r *sqlEventRepo) Delete(id int64) error {
	res, err := r.db.Exec(r.rebind(`DELETE FROM events WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlEventRepo) Ping() error { return r.db.Ping() }

func (r *sqlEventRepo) query(q string, args ...any) ([]Event, error) {
	rows, err := r.db.Query(r.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (Event, error) {
	var (
		e   Event
		raw any
	)
	if err := s.Scan(&e.ID, &e.Name, &raw); err != nil {
		return Event{}, err
	}
	d, err := scanDate(raw)
	if err != nil {
		return Event{}, err
	}
	e.Date = d
	return e, nil
}
