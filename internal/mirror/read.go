package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ObjectRow is a registered object as recorded by the mirror.
type ObjectRow struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	TypeName   string `json:"type_name"`
	Name       string `json:"name"`
	ChangeDate int64  `json:"change_date"`
	Seq        int64  `json:"seq"`
}

// ClassRow is a registered class as recorded by the mirror.
type ClassRow struct {
	Repository string   `json:"repository"`
	Name       string   `json:"name"`
	SimpleName string   `json:"simple_name"`
	BaseKind   string   `json:"base_kind"`
	Requires   []string `json:"requires"`
	Source     string   `json:"source,omitempty"`
	ChangeDate int64    `json:"change_date"`
	Seq        int64    `json:"seq"`
}

// Transition is one journal entry.
type Transition struct {
	Seq        int64  `json:"seq"`
	Repository string `json:"repository"`
	Op         string `json:"op"`
	Subject    string `json:"subject"`
	Kind       string `json:"kind"`
	ChangeDate int64  `json:"change_date"`
}

// Objects returns the objects registered in repository, ordered by path.
// An empty repository returns every repository's objects.
func (m *SQLite) Objects(ctx context.Context, repository string) ([]ObjectRow, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT repository, path, kind, type_name, name, change_date, seq
		FROM objects
		WHERE ? = '' OR repository = ?
		ORDER BY repository ASC, path ASC
	`, repository, repository)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	var out []ObjectRow
	for rows.Next() {
		var r ObjectRow
		if err := rows.Scan(&r.Repository, &r.Path, &r.Kind, &r.TypeName, &r.Name, &r.ChangeDate, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return out, nil
}

// Object returns the row for path in repository, or sql.ErrNoRows.
func (m *SQLite) Object(ctx context.Context, repository, path string) (ObjectRow, error) {
	var r ObjectRow
	err := m.db.QueryRowContext(ctx, `
		SELECT repository, path, kind, type_name, name, change_date, seq
		FROM objects
		WHERE repository = ? AND path = ?
	`, repository, path).Scan(&r.Repository, &r.Path, &r.Kind, &r.TypeName, &r.Name, &r.ChangeDate, &r.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ObjectRow{}, err
		}
		return ObjectRow{}, fmt.Errorf("query object %s: %w", path, err)
	}
	return r, nil
}

// Classes returns the classes registered in repository, ordered by name.
// An empty repository returns every repository's classes.
func (m *SQLite) Classes(ctx context.Context, repository string) ([]ClassRow, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT repository, name, simple_name, base_kind, requires, source, change_date, seq
		FROM classes
		WHERE ? = '' OR repository = ?
		ORDER BY repository ASC, name ASC
	`, repository, repository)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var out []ClassRow
	for rows.Next() {
		var (
			r        ClassRow
			requires string
		)
		if err := rows.Scan(&r.Repository, &r.Name, &r.SimpleName, &r.BaseKind, &requires, &r.Source, &r.ChangeDate, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		if err := json.Unmarshal([]byte(requires), &r.Requires); err != nil {
			return nil, fmt.Errorf("decode requires of %s: %w", r.Name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return out, nil
}

// Transitions returns the journal for repository in seq order.
// An empty repository returns the whole journal.
func (m *SQLite) Transitions(ctx context.Context, repository string) ([]Transition, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT seq, repository, op, subject, kind, change_date
		FROM transitions
		WHERE ? = '' OR repository = ?
		ORDER BY seq ASC
	`, repository, repository)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.Seq, &t.Repository, &t.Op, &t.Subject, &t.Kind, &t.ChangeDate); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}
