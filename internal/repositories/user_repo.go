package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/florence-gateway/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo is the Postgres implementation of UserStore.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Get(ctx context.Context, key string) (*models.UserRecord, error) {
	channel, id, ok := strings.Cut(key, ":")
	if !ok {
		return nil, ErrNotFound
	}

	var u models.UserRecord
	var referral *string
	err := r.pool.QueryRow(ctx, `
		SELECT channel, external_id, display_name, tokens, streak, referral_code,
		       last_token_reward, last_activity, streak_date, created_at
		FROM assistant_users WHERE channel = $1 AND external_id = $2
	`, channel, id).Scan(
		&u.Channel, &u.ID, &u.DisplayName, &u.Tokens, &u.Streak, &referral,
		&u.LastTokenReward, &u.LastActivity, &u.StreakDate, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if referral != nil {
		u.ReferralCode = *referral
	}
	return &u, nil
}

func (r *UserRepo) Put(ctx context.Context, u *models.UserRecord) error {
	var referral *string
	if u.ReferralCode != "" {
		referral = &u.ReferralCode
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assistant_users (
			channel, external_id, display_name, tokens, streak, referral_code,
			last_token_reward, last_activity, streak_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (channel, external_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			tokens = EXCLUDED.tokens,
			streak = EXCLUDED.streak,
			last_token_reward = EXCLUDED.last_token_reward,
			last_activity = EXCLUDED.last_activity,
			streak_date = EXCLUDED.streak_date
	`, u.Channel, u.ID, u.DisplayName, u.Tokens, u.Streak, referral,
		u.LastTokenReward, u.LastActivity, u.StreakDate, u.CreatedAt,
	)
	return err
}

func (r *UserRepo) Delete(ctx context.Context, key string) error {
	channel, id, ok := strings.Cut(key, ":")
	if !ok {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM assistant_users WHERE channel = $1 AND external_id = $2`, channel, id)
	return err
}
