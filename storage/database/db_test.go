package database

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/samkazadi/mahudhurio/core"
)

type executorMock struct {
	queries []string
	err     error
}

var _ core.DBExecutor = (*executorMock)(nil)

func (m *executorMock) Exec(query string, args ...interface{}) (sql.Result, error) {
	m.queries = append(m.queries, query)
	return nil, m.err
}
func (m *executorMock) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return m.Exec(query, args...)
}
func (m *executorMock) Query(query string, args ...interface{}) (*sql.Rows, error) { return nil, nil }
func (m *executorMock) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *executorMock) QueryRow(query string, args ...interface{}) *sql.Row { return nil }
func (m *executorMock) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func TestMigrate(t *testing.T) {
	db := &executorMock{}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if len(db.queries) != 1 {
		t.Fatalf("Migrate() ran %d statements, want 1 batch", len(db.queries))
	}

	schema := db.queries[0]
	for _, table := range []string{"users", "students", "subjects", "attendance_records"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema does not create table %q", table)
		}
	}
	if !strings.Contains(schema, "attendance_records_session_student_idx") {
		t.Error("schema does not create the session/student dedup index")
	}
}

func TestMigrate_execError(t *testing.T) {
	db := &executorMock{err: sql.ErrConnDone}

	err := Migrate(db)
	if err == nil {
		t.Fatal("Migrate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "migrating database") {
		t.Errorf("Migrate() error = %v, want wrapped migrate error", err)
	}
}
