package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Relay/internal/domain"
)

// MaxListLimit — верхняя граница выборки ListRecent.
const MaxListLimit = 500

const rejectionsSchema = `
	CREATE TABLE IF NOT EXISTS rejections (
		id            UUID PRIMARY KEY,
		message_id    TEXT        NOT NULL,
		queue         TEXT        NOT NULL,
		job           TEXT        NOT NULL,
		reason        TEXT,
		requeued      BOOLEAN     NOT NULL DEFAULT FALSE,
		dead_lettered BOOLEAN     NOT NULL DEFAULT FALSE,
		rejected_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS rejections_rejected_at_idx ON rejections (rejected_at DESC);
`

// DB — минимальный интерфейс пула, нужный репозиторию.
// *pgxpool.Pool ему соответствует.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RejectionRepo — журнал отклонённых сообщений.
type RejectionRepo struct {
	db DB
}

// NewRejectionRepo создаёт новый RejectionRepo.
func NewRejectionRepo(db DB) *RejectionRepo {
	return &RejectionRepo{db: db}
}

// EnsureSchema создаёт таблицу rejections, если её нет.
func (r *RejectionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, rejectionsSchema); err != nil {
		return fmt.Errorf("ensure rejections schema: %w", err)
	}
	return nil
}

// Record сохраняет запись об отклонении.
func (r *RejectionRepo) Record(ctx context.Context, rej domain.Rejection) error {
	query := `
		INSERT INTO rejections (id, message_id, queue, job, reason, requeued, dead_lettered, rejected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		rej.ID,
		rej.MessageID,
		rej.Queue,
		rej.Job,
		nullString(rej.Reason),
		rej.Requeued,
		rej.DeadLettered,
		rej.RejectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

// ListRecent возвращает последние отклонения, новые первыми.
func (r *RejectionRepo) ListRecent(ctx context.Context, limit int) ([]domain.Rejection, error) {
	if limit <= 0 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: %d (1..%d)", ErrInvalidLimit, limit, MaxListLimit)
	}

	query := `
		SELECT id, message_id, queue, job, reason, requeued, dead_lettered, rejected_at
		FROM rejections
		ORDER BY rejected_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	defer rows.Close()

	var out []domain.Rejection
	for rows.Next() {
		var rej domain.Rejection
		var reason *string

		if err := rows.Scan(
			&rej.ID,
			&rej.MessageID,
			&rej.Queue,
			&rej.Job,
			&reason,
			&rej.Requeued,
			&rej.DeadLettered,
			&rej.RejectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}

		if reason != nil {
			rej.Reason = *reason
		}
		out = append(out, rej)
	}
	return out, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
