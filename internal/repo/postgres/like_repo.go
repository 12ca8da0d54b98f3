package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LikeRepo struct {
	pool *pgxpool.Pool
}

func NewLikeRepo(pool *pgxpool.Pool) *LikeRepo {
	return &LikeRepo{pool: pool}
}

func (r *LikeRepo) Create(ctx context.Context, likerPetID, likedPetID int64, isSuperLike bool) error {
	if likerPetID <= 0 || likedPetID <= 0 || likerPetID == likedPetID {
		return fmt.Errorf("invalid like payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO likes (
	liker_pet_id,
	liked_pet_id,
	is_super_like,
	created_at
) VALUES ($1, $2, $3, NOW())
ON CONFLICT (liker_pet_id, liked_pet_id) DO UPDATE SET
	is_super_like = likes.is_super_like OR EXCLUDED.is_super_like
`, likerPetID, likedPetID, isSuperLike); err != nil {
		return fmt.Errorf("create like: %w", err)
	}

	return nil
}

func (r *LikeRepo) Delete(ctx context.Context, likerPetID, likedPetID int64) (bool, error) {
	if likerPetID <= 0 || likedPetID <= 0 {
		return false, fmt.Errorf("invalid like delete payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM likes
WHERE liker_pet_id = $1 AND liked_pet_id = $2
`, likerPetID, likedPetID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ReciprocalExists reports whether the liked pet has previously liked
// the liker back.
func (r *LikeRepo) ReciprocalExists(ctx context.Context, likerPetID, likedPetID int64) (bool, error) {
	if likerPetID <= 0 || likedPetID <= 0 {
		return false, fmt.Errorf("invalid like lookup payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM likes
WHERE liker_pet_id = $1 AND liked_pet_id = $2
LIMIT 1
`, likedPetID, likerPetID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup reciprocal like: %w", err)
	}

	return true, nil
}
