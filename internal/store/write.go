package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation is one ledger row: an expense or income belonging to a tenant.
type Operation struct {
	ID          string
	TenantID    string
	Kind        string // "expense" or "income"
	AmountCents int64
	CategoryID  int64
	Category    string
	Note        string
	OccurredOn  time.Time // calendar date; time of day is ignored
}

// Insert writes one operation. An empty ID is assigned a fresh UUID.
// Insert fails on read-only handles; the compiler core never calls it.
func (s *Store) Insert(ctx context.Context, op Operation) (string, error) {
	if s.readOnly {
		return "", fmt.Errorf("store is read-only")
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.TenantID == "" {
		return "", fmt.Errorf("operation needs a tenant id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (id, tenant_id, kind, amount_cents, category_id, category, note, occurred_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.TenantID, op.Kind, op.AmountCents, op.CategoryID, op.Category, op.Note,
		op.OccurredOn.Format("2006-01-02"))
	if err != nil {
		return "", fmt.Errorf("insert operation: %w", err)
	}
	return op.ID, nil
}

// InsertAll writes a batch of operations in one transaction.
func (s *Store) InsertAll(ctx context.Context, ops []Operation) error {
	if s.readOnly {
		return fmt.Errorf("store is read-only")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operations (id, tenant_id, kind, amount_cents, category_id, category, note, occurred_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		if op.ID == "" {
			op.ID = uuid.NewString()
		}
		if op.TenantID == "" {
			return fmt.Errorf("operation needs a tenant id")
		}
		if _, err := stmt.ExecContext(ctx, op.ID, op.TenantID, op.Kind, op.AmountCents,
			op.CategoryID, op.Category, op.Note, op.OccurredOn.Format("2006-01-02")); err != nil {
			return fmt.Errorf("insert operation %s: %w", op.ID, err)
		}
	}

	return tx.Commit()
}
