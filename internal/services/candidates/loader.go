package candidates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pawmatch/backend/internal/domain/model"
	"github.com/pawmatch/backend/internal/domain/rules"
	pgrepo "github.com/pawmatch/backend/internal/repo/postgres"
)

type CandidateStore interface {
	GetViewerPet(ctx context.Context, userID int64) (pgrepo.ViewerPetRecord, error)
	ListCandidates(ctx context.Context, q pgrepo.CandidateQuery) ([]pgrepo.CandidateRecord, error)
}

type MatchStore interface {
	ListMatchedPetIDs(ctx context.Context, petID int64) ([]int64, error)
}

type PhotoSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	AgeMin             int
	AgeMax             int
	RadiusDefaultMiles float64
	RadiusMaxMiles     float64
	PhotoURLTTL        time.Duration
}

// Viewer anchors a discovery session: the signed-in user's pet identity
// and coordinates.
type Viewer struct {
	UserID   int64
	PetID    int64
	Name     string
	PhotoURL string
	Lat      *float64
	Lon      *float64
}

// Loader builds the filtered, distance-annotated candidate list for one
// identity. Exact-match filters run in SQL; the distance filter needs
// the viewer's coordinates and runs here.
type Loader struct {
	store   CandidateStore
	matches MatchStore
	photos  PhotoSigner
	cfg     Config
}

type Dependencies struct {
	CandidateStore CandidateStore
	MatchStore     MatchStore
	PhotoSigner    PhotoSigner
}

func NewLoader(deps Dependencies, cfg Config) *Loader {
	if cfg.AgeMin <= 0 {
		cfg.AgeMin = 1
	}
	if cfg.AgeMax <= 0 {
		cfg.AgeMax = 15
	}
	if cfg.RadiusDefaultMiles <= 0 {
		cfg.RadiusDefaultMiles = 100
	}
	if cfg.RadiusMaxMiles <= 0 {
		cfg.RadiusMaxMiles = 500
	}
	if cfg.PhotoURLTTL <= 0 {
		cfg.PhotoURLTTL = 15 * time.Minute
	}

	return &Loader{
		store:   deps.CandidateStore,
		matches: deps.MatchStore,
		photos:  deps.PhotoSigner,
		cfg:     cfg,
	}
}

// NormalizeFilters fills zero values with configured defaults and
// clamps out-of-range input.
func (l *Loader) NormalizeFilters(f model.Filters) model.Filters {
	if strings.TrimSpace(f.Breed) == "" {
		f.Breed = model.AnyBreed
	}
	if strings.TrimSpace(f.Gender) == "" {
		f.Gender = model.AnyGender
	}
	if f.MaxDistanceMiles <= 0 {
		f.MaxDistanceMiles = l.cfg.RadiusDefaultMiles
	}
	if f.MaxDistanceMiles > l.cfg.RadiusMaxMiles {
		f.MaxDistanceMiles = l.cfg.RadiusMaxMiles
	}
	if f.AgeMin < l.cfg.AgeMin {
		f.AgeMin = l.cfg.AgeMin
	}
	if f.AgeMax <= 0 || f.AgeMax > l.cfg.AgeMax {
		f.AgeMax = l.cfg.AgeMax
	}
	if f.AgeMax < f.AgeMin {
		f.AgeMin, f.AgeMax = f.AgeMax, f.AgeMin
	}

	return f
}

// Load resolves the viewer's pet and the matching candidates under the
// given filters. Already-matched pets are excluded. Candidates without
// coordinates (or when the viewer has none) carry no distance and are
// never distance-filtered out.
func (l *Loader) Load(ctx context.Context, userID int64, f model.Filters) (Viewer, []model.Candidate, error) {
	f = l.NormalizeFilters(f)

	pet, err := l.store.GetViewerPet(ctx, userID)
	if err != nil {
		return Viewer{}, nil, fmt.Errorf("resolve viewer pet: %w", err)
	}

	viewer := Viewer{
		UserID: userID,
		PetID:  pet.PetID,
		Name:   pet.Name,
		Lat:    pet.Lat,
		Lon:    pet.Lon,
	}
	if pet.PhotoKey != "" {
		url, err := l.photos.PresignGet(ctx, pet.PhotoKey, l.cfg.PhotoURLTTL)
		if err != nil {
			return Viewer{}, nil, fmt.Errorf("sign viewer photo: %w", err)
		}
		viewer.PhotoURL = url
	}

	matchedIDs, err := l.matches.ListMatchedPetIDs(ctx, pet.PetID)
	if err != nil {
		return Viewer{}, nil, fmt.Errorf("list matched pets: %w", err)
	}
	matched := make(map[int64]struct{}, len(matchedIDs))
	for _, id := range matchedIDs {
		matched[id] = struct{}{}
	}

	query := pgrepo.CandidateQuery{
		ViewerUserID: userID,
		AgeMin:       f.AgeMin,
		AgeMax:       f.AgeMax,
		VerifiedOnly: f.VerifiedOnly,
	}
	if f.Breed != model.AnyBreed {
		query.Breed = f.Breed
	}
	if f.Gender != model.AnyGender {
		query.Gender = f.Gender
	}

	records, err := l.store.ListCandidates(ctx, query)
	if err != nil {
		return Viewer{}, nil, fmt.Errorf("list candidates: %w", err)
	}

	out := make([]model.Candidate, 0, len(records))
	for _, rec := range records {
		if _, ok := matched[rec.PetID]; ok {
			continue
		}

		c := model.Candidate{
			PetID:       rec.PetID,
			OwnerUserID: rec.OwnerUserID,
			Name:        rec.Name,
			Breed:       rec.Breed,
			Age:         rec.Age,
			Gender:      rec.Gender,
			Verified:    rec.Verified,
			Description: rec.Description,
			PhotoKey:    rec.PhotoKey,
			OwnerName:   rec.OwnerName,
			Lat:         rec.Lat,
			Lon:         rec.Lon,
			CreatedAt:   rec.CreatedAt,
		}

		if viewer.Lat != nil && viewer.Lon != nil && rec.Lat != nil && rec.Lon != nil {
			dist := rules.DistanceMiles(*viewer.Lat, *viewer.Lon, *rec.Lat, *rec.Lon)
			if dist > f.MaxDistanceMiles {
				continue
			}
			c.DistanceMiles = &dist
		}

		if rec.PhotoKey != "" {
			url, err := l.photos.PresignGet(ctx, rec.PhotoKey, l.cfg.PhotoURLTTL)
			if err != nil {
				return Viewer{}, nil, fmt.Errorf("sign candidate photo: %w", err)
			}
			c.PhotoURL = url
		}

		out = append(out, c)
	}

	return viewer, out, nil
}
