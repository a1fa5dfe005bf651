package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, user_id, amount, source_type, source_id, reason, status, created_at, updated_at`

// CreateLedgerEntry inserts a ledger credit. A second live entry for the same
// source is rejected by uq_ledger_live_source and surfaces as ErrConflict.
func (q *Queries) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = models.LedgerStatusPending
	}

	err := sqlx.GetContext(ctx, q.db, entry, `
		INSERT INTO ledger_entries (id, user_id, amount, source_type, source_id, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+ledgerColumns,
		entry.ID, entry.UserID, entry.Amount, entry.SourceType, entry.SourceID, entry.Reason, entry.Status)
	return convertErr(err, "create ledger entry for %s/%s", entry.SourceType, entry.SourceID)
}

// ListLedgerEntriesByUser returns the user's entries, newest first
func (q *Queries) ListLedgerEntriesByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := sqlx.SelectContext(ctx, q.db, &entries,
		"SELECT "+ledgerColumns+" FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC, id", userID)
	if err != nil {
		return nil, convertErr(err, "ledger of %s", userID)
	}
	return entries, nil
}

// ListPendingLedgerEntriesForUpdate locks the user's pending entries, oldest first
func (q *Queries) ListPendingLedgerEntriesForUpdate(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := sqlx.SelectContext(ctx, q.db, &entries, `
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at, id
		FOR UPDATE`, userID, models.LedgerStatusPending)
	if err != nil {
		return nil, convertErr(err, "pending ledger of %s", userID)
	}
	return entries, nil
}

// GetLedgerEntriesByIDs retrieves entries by id
func (q *Queries) GetLedgerEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error) {
	if len(ids) == 0 {
		return []models.LedgerEntry{}, nil
	}

	query, args, err := sqlx.In("SELECT "+ledgerColumns+" FROM ledger_entries WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	var entries []models.LedgerEntry
	if err := sqlx.SelectContext(ctx, q.db, &entries, q.db.Rebind(query), args...); err != nil {
		return nil, convertErr(err, "ledger entries by ids")
	}
	return entries, nil
}

// TransitionLedgerEntries moves the given entries from one status to another.
// Only rows still in from are touched; the caller compares the count with len(ids).
func (q *Queries) TransitionLedgerEntries(ctx context.Context, ids []uuid.UUID, from, to models.LedgerStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"UPDATE ledger_entries SET status = ?, updated_at = NOW() WHERE id IN (?) AND status = ?",
		to, ids, from)
	if err != nil {
		return 0, err
	}

	res, err := q.db.ExecContext(ctx, q.db.Rebind(query), args...)
	if err != nil {
		return 0, convertErr(err, "transition ledger entries %s -> %s", from, to)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition ledger entries rows affected: %w", err)
	}
	return affected, nil
}

// LedgerBalance sums the user's entries per status
func (q *Queries) LedgerBalance(ctx context.Context, userID uuid.UUID) (*models.LedgerBalance, error) {
	var rows []struct {
		Status models.LedgerStatus `db:"status"`
		Total  decimal.Decimal     `db:"total"`
	}
	err := sqlx.SelectContext(ctx, q.db, &rows, `
		SELECT status, COALESCE(SUM(amount), 0) AS total
		FROM ledger_entries WHERE user_id = $1
		GROUP BY status`, userID)
	if err != nil {
		return nil, convertErr(err, "balance of %s", userID)
	}

	balance := &models.LedgerBalance{}
	for _, r := range rows {
		switch r.Status {
		case models.LedgerStatusPending:
			balance.Available = r.Total
		case models.LedgerStatusLocked:
			balance.Locked = r.Total
		case models.LedgerStatusWithdrawn:
			balance.Withdrawn = r.Total
		case models.LedgerStatusReversed:
			balance.Reversed = r.Total
		}
	}
	return balance, nil
}
