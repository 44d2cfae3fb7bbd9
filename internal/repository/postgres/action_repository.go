package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-confirmation/internal/domain/action"
	domainErrors "payment-confirmation/internal/domain/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActionRepository persists pending actions in Postgres. The uniqueness of
// one unresolved action per (kind, payment_reference) is enforced by a
// partial unique index, so concurrent callers racing to enqueue the same
// action get ErrDuplicateAction instead of a second row.
type ActionRepository struct {
	pool *pgxpool.Pool
}

func NewActionRepository(pool *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{pool: pool}
}

func (r *ActionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *ActionRepository) Store(ctx context.Context, a *action.PendingAction) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal action payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO pending_actions (id, kind, payment_reference, payload, status, attempts, max_attempts, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, string(a.Kind), a.PaymentReference, payload, string(a.Status), a.Attempts, a.MaxAttempts, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateAction
		}
		return fmt.Errorf("insert pending action: %w", err)
	}
	return nil
}

func (r *ActionRepository) GetByID(ctx context.Context, id uuid.UUID) (*action.PendingAction, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT id, kind, payment_reference, payload, status, attempts, max_attempts, last_error, created_at, resolved_at
		 FROM pending_actions WHERE id = $1`, id,
	)
	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrActionNotFound
		}
		return nil, fmt.Errorf("get pending action: %w", err)
	}
	return a, nil
}

func (r *ActionRepository) ListUnresolved(ctx context.Context, filter action.ListFilter) ([]*action.PendingAction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, payment_reference, payload, status, attempts, max_attempts, last_error, created_at, resolved_at
		 FROM pending_actions WHERE resolved_at IS NULL`
	args := []any{}
	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if !filter.IncludeFailed {
		args = append(args, string(action.StatusFailed))
		query += fmt.Sprintf(" AND status <> $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d FOR UPDATE SKIP LOCKED", len(args))

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unresolved actions: %w", err)
	}
	defer rows.Close()

	var actions []*action.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (r *ActionRepository) MarkResolved(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE pending_actions SET status = $1, resolved_at = $2
		 WHERE id = $3 AND resolved_at IS NULL`,
		string(action.StatusResolved), now, id,
	)
	if err != nil {
		return fmt.Errorf("mark action resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already resolved; distinguish for the caller.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domainErrors.ErrActionAlreadyResolved
	}
	return nil
}

func (r *ActionRepository) RecordAttemptFailure(ctx context.Context, id uuid.UUID, attemptErr string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE pending_actions
		 SET attempts = attempts + 1,
		     last_error = $1,
		     status = CASE WHEN attempts + 1 >= max_attempts THEN $2 ELSE $3 END
		 WHERE id = $4 AND resolved_at IS NULL`,
		attemptErr, string(action.StatusFailed), string(action.StatusPending), id,
	)
	if err != nil {
		return fmt.Errorf("record attempt failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domainErrors.ErrActionAlreadyResolved
	}
	return nil
}

func (r *ActionRepository) CountByStatus(ctx context.Context) (action.Counts, error) {
	counts := action.Counts{ByKind: make(map[action.Kind]int)}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT kind, status, COUNT(*) FROM pending_actions GROUP BY kind, status`,
	)
	if err != nil {
		return counts, fmt.Errorf("count actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, status string
		var n int
		if err := rows.Scan(&kind, &status, &n); err != nil {
			return counts, fmt.Errorf("scan action counts: %w", err)
		}
		switch action.Status(status) {
		case action.StatusResolved:
			counts.Resolved += n
		case action.StatusFailed:
			counts.Failed += n
			counts.ByKind[action.Kind(kind)] += n
		default:
			counts.Unresolved += n
			counts.ByKind[action.Kind(kind)] += n
		}
	}
	return counts, rows.Err()
}

func scanAction(row pgx.Row) (*action.PendingAction, error) {
	a := &action.PendingAction{}
	var kind, status string
	var payload []byte
	if err := row.Scan(&a.ID, &kind, &a.PaymentReference, &payload, &status,
		&a.Attempts, &a.MaxAttempts, &a.LastError, &a.CreatedAt, &a.ResolvedAt); err != nil {
		return nil, err
	}
	a.Kind = action.Kind(kind)
	a.Status = action.Status(status)
	if len(payload) > 0 {
		a.Payload = make(map[string]any)
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal action payload: %w", err)
		}
	}
	return a, nil
}
