package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Relay/internal/domain"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB записывает Exec и отдаёт заранее заданные строки в Query.
type fakeDB struct {
	execs    []execCall
	execErr  error
	queryErr error
	rows     [][]any
	lastArgs []any
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, execCall{sql: sql, args: args})
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.lastArgs = args
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return &fakeRows{rows: db.rows, pos: -1}, nil
}

type fakeRows struct {
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d columns, %d destinations", len(row), len(dest))
	}

	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = row[i].(uuid.UUID)
		case *string:
			*p = row[i].(string)
		case **string:
			if row[i] == nil {
				*p = nil
			} else {
				s := row[i].(string)
				*p = &s
			}
		case *bool:
			*p = row[i].(bool)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestRejectionRepo_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	repo := NewRejectionRepo(db)

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS rejections") {
		t.Errorf("unexpected exec: %+v", db.execs)
	}

	db.execErr = errors.New("permission denied")
	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestRejectionRepo_Record(t *testing.T) {
	db := &fakeDB{}
	repo := NewRejectionRepo(db)

	rej := domain.NewRejection("m2", "input_queue", "index", nil, false, true)
	if err := repo.Record(context.Background(), rej); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := db.execs[0].args
	if args[0] != rej.ID || args[1] != "m2" || args[2] != "input_queue" || args[3] != "index" {
		t.Errorf("unexpected args: %v", args)
	}
	if reason, ok := args[4].(*string); !ok || reason != nil {
		t.Errorf("empty reason should be stored as NULL, got %v", args[4])
	}
	if args[5] != false || args[6] != true {
		t.Errorf("flags = %v/%v", args[5], args[6])
	}
}

func TestRejectionRepo_RecordError(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection reset")}
	repo := NewRejectionRepo(db)

	err := repo.Record(context.Background(), domain.NewRejection("m1", "q", "index", errors.New("x"), true, false))
	if err == nil || !strings.Contains(err.Error(), "insert rejection") {
		t.Errorf("error = %v", err)
	}
}

func TestRejectionRepo_ListRecent(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	db := &fakeDB{rows: [][]any{
		{id1, "m2", "input_queue", "index", "mapper_parsing_exception", false, true, at},
		{id2, "m7", "output_queue", "continuous", nil, true, false, at.Add(-time.Minute)},
	}}
	repo := NewRejectionRepo(db)

	got, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != id1 || got[0].Reason != "mapper_parsing_exception" || !got[0].DeadLettered {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if got[1].Reason != "" || !got[1].Requeued {
		t.Errorf("unexpected second record: %+v", got[1])
	}
	if db.lastArgs[0] != 10 {
		t.Errorf("limit arg = %v, want 10", db.lastArgs[0])
	}
}

func TestRejectionRepo_ListRecentInvalidLimit(t *testing.T) {
	repo := NewRejectionRepo(&fakeDB{})

	for _, limit := range []int{0, -1, MaxListLimit + 1} {
		if _, err := repo.ListRecent(context.Background(), limit); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("limit %d: error = %v, want ErrInvalidLimit", limit, err)
		}
	}
}

func TestRejectionRepo_ListRecentQueryError(t *testing.T) {
	repo := NewRejectionRepo(&fakeDB{queryErr: errors.New("relation does not exist")})

	if _, err := repo.ListRecent(context.Background(), 5); err == nil {
		t.Error("expected error")
	}
}

func TestNewPool_RequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); !errors.Is(err, ErrNoDSN) {
		t.Errorf("error = %v, want ErrNoDSN", err)
	}
}
