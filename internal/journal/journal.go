// Optional print history, one row per job. A journal failure never fails a
// print job; callers log and move on.
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schema string

type Entry struct {
	Id        int64
	CreatedAt time.Time
	// Source is "text" or "image"; Detail is the caption or the file path.
	Source string
	Detail string
	Preset string
	// Bytes is the packed raster payload size sent (or attempted).
	Bytes int
	// State is the final session state of the job.
	State string
}

type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("couldn't initialise journal database: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Record(e Entry) error {
	_, err := j.db.Exec(
		`INSERT INTO print_jobs (created_at, source, detail, preset, bytes, state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.Source,
		e.Detail,
		e.Preset,
		e.Bytes,
		e.State,
	)
	return err
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, created_at, source, detail, preset, bytes, state
		 FROM print_jobs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.Id, &createdAt, &e.Source, &e.Detail, &e.Preset, &e.Bytes, &e.State); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
