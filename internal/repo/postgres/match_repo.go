package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

type MatchRow struct {
	ID         int64
	PetAID     int64
	PetBID     int64
	CreatedAt  time.Time
	OtherPetID int64
}

// CreateIfMutualLike checks for the reciprocal like and, if present,
// inserts the match row for the ordered pair. Both steps run inside
// the supplied transaction so a concurrent reciprocal swipe cannot
// produce two rows.
func (r *MatchRepo) CreateIfMutualLike(ctx context.Context, tx pgx.Tx, petID, targetPetID int64) (int64, bool, error) {
	if petID <= 0 || targetPetID <= 0 {
		return 0, false, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return 0, false, fmt.Errorf("transaction is required")
	}

	var one int
	err := tx.QueryRow(ctx, `
SELECT 1
FROM likes
WHERE liker_pet_id = $1 AND liked_pet_id = $2
LIMIT 1
`, targetPetID, petID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup reciprocal like: %w", err)
	}

	petA := petID
	petB := targetPetID
	if petA > petB {
		petA, petB = petB, petA
	}

	var matchID int64
	err = tx.QueryRow(ctx, `
INSERT INTO matches (
	pet_a_id,
	pet_b_id,
	created_at
) VALUES ($1, $2, NOW())
ON CONFLICT (pet_a_id, pet_b_id) DO NOTHING
RETURNING id
`, petA, petB).Scan(&matchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("create match: %w", err)
	}

	return matchID, true, nil
}

func (r *MatchRepo) DeleteByPets(ctx context.Context, petID, targetPetID int64) (bool, error) {
	if petID <= 0 || targetPetID <= 0 {
		return false, fmt.Errorf("invalid match delete payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	petA := petID
	petB := targetPetID
	if petA > petB {
		petA, petB = petB, petA
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM matches
WHERE pet_a_id = $1 AND pet_b_id = $2
`, petA, petB)
	if err != nil {
		return false, fmt.Errorf("delete match: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListMatchedPetIDs returns the pets already in a mutual match with the
// given pet, for exclusion from the candidate queue.
func (r *MatchRepo) ListMatchedPetIDs(ctx context.Context, petID int64) ([]int64, error) {
	if petID <= 0 {
		return nil, fmt.Errorf("invalid match lookup payload")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT CASE WHEN pet_a_id = $1 THEN pet_b_id ELSE pet_a_id END
FROM matches
WHERE pet_a_id = $1 OR pet_b_id = $1
`, petID)
	if err != nil {
		return nil, fmt.Errorf("list matched pets: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan matched pet id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matched pets: %w", err)
	}

	return ids, nil
}

type ActiveMatchRecord struct {
	ID            int64
	OtherPetID    int64
	OtherPetName  string
	OtherPhotoKey string
	CreatedAt     time.Time
}

func (r *MatchRepo) ListActiveForPet(ctx context.Context, petID int64, limit int) ([]ActiveMatchRecord, error) {
	if petID <= 0 {
		return nil, fmt.Errorf("invalid match list payload")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	m.id,
	p.id,
	p.pet_name,
	COALESCE(ph.photo_key, ''),
	m.created_at
FROM matches m
JOIN pets p ON p.id = CASE WHEN m.pet_a_id = $1 THEN m.pet_b_id ELSE m.pet_a_id END
LEFT JOIN LATERAL (
	SELECT photo_key
	FROM pet_photos
	WHERE pet_id = p.id
	ORDER BY position ASC
	LIMIT 1
) ph ON TRUE
WHERE m.pet_a_id = $1 OR m.pet_b_id = $1
ORDER BY m.created_at DESC
LIMIT $2
`, petID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	defer rows.Close()

	var records []ActiveMatchRecord
	for rows.Next() {
		var rec ActiveMatchRecord
		if err := rows.Scan(&rec.ID, &rec.OtherPetID, &rec.OtherPetName, &rec.OtherPhotoKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return records, nil
}
