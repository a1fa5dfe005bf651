package store

import (
	"context"

	"shop-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const withdrawalColumns = `id, user_id, amount, method, status, reference_id, created_at, updated_at`

// CreateWithdrawal inserts a withdrawal and links the ledger entries it consumes
func (q *Queries) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	if withdrawal.ID == uuid.Nil {
		withdrawal.ID = uuid.New()
	}
	if withdrawal.Status == "" {
		withdrawal.Status = models.WithdrawalStatusProcessing
	}

	ledgerIDs := withdrawal.LedgerIDs
	err := sqlx.GetContext(ctx, q.db, withdrawal, `
		INSERT INTO withdrawals (id, user_id, amount, method, status, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+withdrawalColumns,
		withdrawal.ID, withdrawal.UserID, withdrawal.Amount, withdrawal.Method, withdrawal.Status, withdrawal.ReferenceID)
	if err != nil {
		return convertErr(err, "create withdrawal for %s", withdrawal.UserID)
	}
	withdrawal.LedgerIDs = ledgerIDs

	for i, ledgerID := range ledgerIDs {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO withdrawal_ledger_entries (withdrawal_id, ledger_entry_id, position)
			VALUES ($1, $2, $3)`, withdrawal.ID, ledgerID, i)
		if err != nil {
			return convertErr(err, "link ledger entry %s to withdrawal %s", ledgerID, withdrawal.ID)
		}
	}
	return nil
}

// GetWithdrawal retrieves a withdrawal with its ledger entry ids
func (q *Queries) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return q.getWithdrawal(ctx, "SELECT "+withdrawalColumns+" FROM withdrawals WHERE id = $1", id)
}

// GetWithdrawalForUpdate retrieves a withdrawal and locks its row until the transaction ends
func (q *Queries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return q.getWithdrawal(ctx, "SELECT "+withdrawalColumns+" FROM withdrawals WHERE id = $1 FOR UPDATE", id)
}

func (q *Queries) getWithdrawal(ctx context.Context, query string, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := sqlx.GetContext(ctx, q.db, &withdrawal, query, id); err != nil {
		return nil, convertErr(err, "withdrawal %s", id)
	}

	withdrawals := []models.Withdrawal{withdrawal}
	if err := q.attachLedgerIDs(ctx, withdrawals); err != nil {
		return nil, err
	}
	return &withdrawals[0], nil
}

// ListWithdrawalsByUser returns the user's withdrawals, newest first
func (q *Queries) ListWithdrawalsByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	err := sqlx.SelectContext(ctx, q.db, &withdrawals,
		"SELECT "+withdrawalColumns+" FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC, id", userID)
	if err != nil {
		return nil, convertErr(err, "withdrawals of %s", userID)
	}

	if err := q.attachLedgerIDs(ctx, withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (q *Queries) attachLedgerIDs(ctx context.Context, withdrawals []models.Withdrawal) error {
	if len(withdrawals) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(withdrawals))
	index := make(map[uuid.UUID]int, len(withdrawals))
	for i := range withdrawals {
		ids[i] = withdrawals[i].ID
		index[withdrawals[i].ID] = i
		withdrawals[i].LedgerIDs = []uuid.UUID{}
	}

	query, args, err := sqlx.In(`
		SELECT withdrawal_id, ledger_entry_id FROM withdrawal_ledger_entries
		WHERE withdrawal_id IN (?) ORDER BY withdrawal_id, position`, ids)
	if err != nil {
		return err
	}

	var links []struct {
		WithdrawalID  uuid.UUID `db:"withdrawal_id"`
		LedgerEntryID uuid.UUID `db:"ledger_entry_id"`
	}
	if err := sqlx.SelectContext(ctx, q.db, &links, q.db.Rebind(query), args...); err != nil {
		return convertErr(err, "withdrawal ledger links")
	}

	for _, l := range links {
		i := index[l.WithdrawalID]
		withdrawals[i].LedgerIDs = append(withdrawals[i].LedgerIDs, l.LedgerEntryID)
	}
	return nil
}

// UpdateWithdrawalStatus moves a withdrawal between statuses if it is still in from
func (q *Queries) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to models.WithdrawalStatus, referenceID *string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE withdrawals SET status = $2, reference_id = COALESCE($3, reference_id), updated_at = NOW()
		WHERE id = $1 AND status = $4`, id, to, referenceID, from)
	return rowsChanged(res, err, "update withdrawal %s status", id)
}
