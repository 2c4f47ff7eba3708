package repositories

import (
	"context"

	"github.com/florence-gateway/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) Log(ctx context.Context, tx models.TokenTransaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO token_transactions (user_key, reason, amount, balance, meta)
		VALUES ($1, $2, $3, $4, $5)
	`, tx.UserKey, tx.Reason, tx.Amount, tx.Balance, tx.Meta)
	return err
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userKey string, limit int) ([]models.TokenTransaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_key, reason, amount, balance, meta, created_at
		FROM token_transactions WHERE user_key = $1
		ORDER BY created_at DESC LIMIT $2
	`, userKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.TokenTransaction
	for rows.Next() {
		var t models.TokenTransaction
		if err := rows.Scan(&t.ID, &t.UserKey, &t.Reason, &t.Amount, &t.Balance, &t.Meta, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
