package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawmatch/backend/internal/domain/model"
	pgrepo "github.com/pawmatch/backend/internal/repo/postgres"
	"github.com/pawmatch/backend/internal/services/candidates"
)

type MatchStore interface {
	CreateIfMutualLike(ctx context.Context, tx pgx.Tx, petID, targetPetID int64) (int64, bool, error)
	DeleteByPets(ctx context.Context, petID, targetPetID int64) (bool, error)
	ListActiveForPet(ctx context.Context, petID int64, limit int) ([]pgrepo.ActiveMatchRecord, error)
}

type PhotoSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service detects reciprocal likes and materialises match rows. The
// reciprocal lookup and the insert run inside one transaction; detection
// happens only after the viewer's own like is durably recorded.
type Service struct {
	matches MatchStore
	photos  PhotoSigner

	photoTTL time.Duration
	now      func() time.Time

	// withTx wraps the mutual-like check in a transaction; injectable so
	// tests can run the callback against a stub.
	withTx func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool        *pgxpool.Pool
	MatchStore  MatchStore
	PhotoSigner PhotoSigner
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		matches:  deps.MatchStore,
		photos:   deps.PhotoSigner,
		photoTTL: 15 * time.Minute,
		now:      time.Now,
	}
	s.withTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, deps.Pool, fn)
	}

	return s
}

// CheckAfterLike runs the mutual-like check for a like the viewer just
// durably recorded against the target. Returns the presentation record
// when a new match row was created; false when the target has not liked
// back or the pair was already matched.
func (s *Service) CheckAfterLike(ctx context.Context, viewer candidates.Viewer, target model.Candidate) (model.MatchRecord, bool, error) {
	var (
		matchID int64
		created bool
	)
	err := s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		matchID, created, err = s.matches.CreateIfMutualLike(ctx, tx, viewer.PetID, target.PetID)
		return err
	})
	if err != nil {
		return model.MatchRecord{}, false, fmt.Errorf("detect match: %w", err)
	}
	if !created {
		return model.MatchRecord{}, false, nil
	}

	return model.MatchRecord{
		MatchID:        matchID,
		OtherPetID:     target.PetID,
		OtherName:      target.Name,
		OtherPhotoURL:  target.PhotoURL,
		ViewerPetID:    viewer.PetID,
		ViewerName:     viewer.Name,
		ViewerPhotoURL: viewer.PhotoURL,
		CreatedAt:      s.now().UTC(),
	}, true, nil
}

// Unmatch drops the match row for the pair, if any. Used when a synced
// like is rewound.
func (s *Service) Unmatch(ctx context.Context, petID, targetPetID int64) (bool, error) {
	removed, err := s.matches.DeleteByPets(ctx, petID, targetPetID)
	if err != nil {
		return false, fmt.Errorf("unmatch: %w", err)
	}
	return removed, nil
}

// ListMatches returns the pet's active matches as presentation records,
// newest first.
func (s *Service) ListMatches(ctx context.Context, viewer candidates.Viewer, limit int) ([]model.MatchRecord, error) {
	records, err := s.matches.ListActiveForPet(ctx, viewer.PetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	out := make([]model.MatchRecord, 0, len(records))
	for _, rec := range records {
		item := model.MatchRecord{
			MatchID:        rec.ID,
			OtherPetID:     rec.OtherPetID,
			OtherName:      rec.OtherPetName,
			ViewerPetID:    viewer.PetID,
			ViewerName:     viewer.Name,
			ViewerPhotoURL: viewer.PhotoURL,
			CreatedAt:      rec.CreatedAt,
		}
		if rec.OtherPhotoKey != "" {
			url, err := s.photos.PresignGet(ctx, rec.OtherPhotoKey, s.photoTTL)
			if err != nil {
				return nil, fmt.Errorf("sign match photo: %w", err)
			}
			item.OtherPhotoURL = url
		}
		out = append(out, item)
	}

	return out, nil
}
