package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrViewerPetNotFound = errors.New("viewer pet not found")

type CandidateRepo struct {
	pool *pgxpool.Pool
}

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

// ViewerPetRecord is the signed-in user's most recent pet profile; its
// coordinates anchor distance computation for the whole queue.
type ViewerPetRecord struct {
	PetID    int64
	Name     string
	PhotoKey string
	Lat      *float64
	Lon      *float64
}

type CandidateQuery struct {
	ViewerUserID int64
	Breed        string
	Gender       string
	AgeMin       int
	AgeMax       int
	VerifiedOnly bool
	Limit        int
}

type CandidateRecord struct {
	PetID       int64
	OwnerUserID int64
	Name        string
	Breed       string
	Age         int
	Gender      string
	Verified    bool
	Description string
	PhotoKey    string
	OwnerName   string
	Lat         *float64
	Lon         *float64
	CreatedAt   time.Time
}

func (r *CandidateRepo) GetViewerPet(ctx context.Context, userID int64) (ViewerPetRecord, error) {
	if userID <= 0 {
		return ViewerPetRecord{}, fmt.Errorf("invalid viewer lookup payload")
	}
	if r.pool == nil {
		return ViewerPetRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec ViewerPetRecord
	err := r.pool.QueryRow(ctx, `
SELECT
	p.id,
	p.pet_name,
	COALESCE(ph.photo_key, ''),
	p.latitude,
	p.longitude
FROM pets p
LEFT JOIN LATERAL (
	SELECT photo_key
	FROM pet_photos
	WHERE pet_id = p.id
	ORDER BY position ASC
	LIMIT 1
) ph ON TRUE
WHERE p.user_id = $1
ORDER BY p.created_at DESC
LIMIT 1
`, userID).Scan(&rec.PetID, &rec.Name, &rec.PhotoKey, &rec.Lat, &rec.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ViewerPetRecord{}, ErrViewerPetNotFound
		}
		return ViewerPetRecord{}, fmt.Errorf("get viewer pet: %w", err)
	}

	return rec, nil
}

// ListCandidates applies the exact-match filters in SQL; distance
// filtering needs the viewer's coordinates and happens in the queue
// builder.
func (r *CandidateRepo) ListCandidates(ctx context.Context, q CandidateQuery) ([]CandidateRecord, error) {
	if q.ViewerUserID <= 0 {
		return nil, fmt.Errorf("invalid candidate query payload")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 200
	}

	sql := strings.Builder{}
	sql.WriteString(`
SELECT
	p.id,
	p.user_id,
	p.pet_name,
	COALESCE(p.breed, 'Mixed Breed'),
	COALESCE(p.age, 1),
	COALESCE(p.gender, ''),
	COALESCE(p.verified, FALSE),
	COALESCE(p.description, ''),
	COALESCE(ph.photo_key, ''),
	COALESCE(p.owner_name, 'Anonymous'),
	p.latitude,
	p.longitude,
	p.created_at
FROM pets p
LEFT JOIN LATERAL (
	SELECT photo_key
	FROM pet_photos
	WHERE pet_id = p.id
	ORDER BY position ASC
	LIMIT 1
) ph ON TRUE
WHERE p.user_id <> $1
`)
	args := []any{q.ViewerUserID}

	if breed := strings.TrimSpace(q.Breed); breed != "" {
		args = append(args, breed)
		fmt.Fprintf(&sql, "AND p.breed = $%d\n", len(args))
	}
	if gender := strings.TrimSpace(q.Gender); gender != "" {
		args = append(args, gender)
		fmt.Fprintf(&sql, "AND p.gender = $%d\n", len(args))
	}
	if q.AgeMin > 0 {
		args = append(args, q.AgeMin)
		fmt.Fprintf(&sql, "AND p.age >= $%d\n", len(args))
	}
	if q.AgeMax > 0 {
		args = append(args, q.AgeMax)
		fmt.Fprintf(&sql, "AND p.age <= $%d\n", len(args))
	}
	if q.VerifiedOnly {
		sql.WriteString("AND p.verified = TRUE\n")
	}

	args = append(args, q.Limit)
	fmt.Fprintf(&sql, "ORDER BY p.created_at DESC\nLIMIT $%d\n", len(args))

	rows, err := r.pool.Query(ctx, sql.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var records []CandidateRecord
	for rows.Next() {
		var rec CandidateRecord
		if err := rows.Scan(
			&rec.PetID,
			&rec.OwnerUserID,
			&rec.Name,
			&rec.Breed,
			&rec.Age,
			&rec.Gender,
			&rec.Verified,
			&rec.Description,
			&rec.PhotoKey,
			&rec.OwnerName,
			&rec.Lat,
			&rec.Lon,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	return records, nil
}
