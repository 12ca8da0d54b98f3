package candidates

import (
	"context"
	"testing"
	"time"

	"github.com/pawmatch/backend/internal/domain/model"
	pgrepo "github.com/pawmatch/backend/internal/repo/postgres"
)

func ptr(v float64) *float64 { return &v }

// Manhattan and Brooklyn are a few miles apart; Los Angeles is ~2450
// miles from both.
var (
	nycLat = 40.7128
	nycLon = -74.0060
	bkLat  = 40.6782
	bkLon  = -73.9442
	laLat  = 34.0522
	laLon  = -118.2437
)

type stubCandidateStore struct {
	viewer    pgrepo.ViewerPetRecord
	viewerErr error
	records   []pgrepo.CandidateRecord
	lastQuery pgrepo.CandidateQuery
}

func (s *stubCandidateStore) GetViewerPet(_ context.Context, _ int64) (pgrepo.ViewerPetRecord, error) {
	return s.viewer, s.viewerErr
}

func (s *stubCandidateStore) ListCandidates(_ context.Context, q pgrepo.CandidateQuery) ([]pgrepo.CandidateRecord, error) {
	s.lastQuery = q
	return s.records, nil
}

type stubMatchStore struct {
	matched []int64
}

func (s *stubMatchStore) ListMatchedPetIDs(context.Context, int64) ([]int64, error) {
	return s.matched, nil
}

type stubSigner struct{}

func (stubSigner) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/" + key, nil
}

func record(petID int64, lat, lon *float64) pgrepo.CandidateRecord {
	return pgrepo.CandidateRecord{
		PetID:       petID,
		OwnerUserID: petID + 1000,
		Name:        "Pet",
		Breed:       "Corgi",
		Age:         3,
		Gender:      "male",
		PhotoKey:    "photos/pet.jpg",
		Lat:         lat,
		Lon:         lon,
	}
}

func TestLoadFiltersByDistance(t *testing.T) {
	store := &stubCandidateStore{
		viewer: pgrepo.ViewerPetRecord{PetID: 1, Name: "Rex", Lat: ptr(nycLat), Lon: ptr(nycLon)},
		records: []pgrepo.CandidateRecord{
			record(10, ptr(bkLat), ptr(bkLon)),
			record(11, ptr(laLat), ptr(laLon)),
		},
	}
	loader := NewLoader(Dependencies{
		CandidateStore: store,
		MatchStore:     &stubMatchStore{},
		PhotoSigner:    stubSigner{},
	}, Config{})

	viewer, list, err := loader.Load(context.Background(), 42, model.Filters{MaxDistanceMiles: 100})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if viewer.PetID != 1 || viewer.UserID != 42 {
		t.Fatalf("unexpected viewer: %+v", viewer)
	}
	if len(list) != 1 || list[0].PetID != 10 {
		t.Fatalf("expected only the nearby candidate, got %+v", list)
	}
	if list[0].DistanceMiles == nil || *list[0].DistanceMiles > 10 {
		t.Fatalf("unexpected distance annotation: %v", list[0].DistanceMiles)
	}
	if list[0].PhotoURL != "https://cdn.test/photos/pet.jpg" {
		t.Fatalf("unexpected photo url: %s", list[0].PhotoURL)
	}
}

func TestLoadKeepsCandidatesWithoutCoordinates(t *testing.T) {
	store := &stubCandidateStore{
		viewer: pgrepo.ViewerPetRecord{PetID: 1, Lat: ptr(nycLat), Lon: ptr(nycLon)},
		records: []pgrepo.CandidateRecord{
			record(10, nil, nil),
		},
	}
	loader := NewLoader(Dependencies{
		CandidateStore: store,
		MatchStore:     &stubMatchStore{},
		PhotoSigner:    stubSigner{},
	}, Config{})

	_, list, err := loader.Load(context.Background(), 42, model.Filters{MaxDistanceMiles: 1})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("candidate without coordinates must survive the radius filter, got %d", len(list))
	}
	if list[0].DistanceMiles != nil {
		t.Fatal("candidate without coordinates must carry no distance")
	}
}

func TestLoadExcludesMatchedPets(t *testing.T) {
	store := &stubCandidateStore{
		viewer: pgrepo.ViewerPetRecord{PetID: 1},
		records: []pgrepo.CandidateRecord{
			record(10, nil, nil),
			record(11, nil, nil),
		},
	}
	loader := NewLoader(Dependencies{
		CandidateStore: store,
		MatchStore:     &stubMatchStore{matched: []int64{10}},
		PhotoSigner:    stubSigner{},
	}, Config{})

	_, list, err := loader.Load(context.Background(), 42, model.Filters{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 1 || list[0].PetID != 11 {
		t.Fatalf("matched pet must be excluded, got %+v", list)
	}
}

func TestLoadTranslatesWildcardFilters(t *testing.T) {
	store := &stubCandidateStore{viewer: pgrepo.ViewerPetRecord{PetID: 1}}
	loader := NewLoader(Dependencies{
		CandidateStore: store,
		MatchStore:     &stubMatchStore{},
		PhotoSigner:    stubSigner{},
	}, Config{})

	_, _, err := loader.Load(context.Background(), 42, model.Filters{
		Breed:  model.AnyBreed,
		Gender: model.AnyGender,
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if store.lastQuery.Breed != "" || store.lastQuery.Gender != "" {
		t.Fatalf("wildcards must not reach SQL, got %+v", store.lastQuery)
	}
	if store.lastQuery.AgeMin != 1 || store.lastQuery.AgeMax != 15 {
		t.Fatalf("default age bounds must apply, got %+v", store.lastQuery)
	}
}

func TestNormalizeFiltersClampsRadius(t *testing.T) {
	loader := NewLoader(Dependencies{
		CandidateStore: &stubCandidateStore{},
		MatchStore:     &stubMatchStore{},
		PhotoSigner:    stubSigner{},
	}, Config{})

	f := loader.NormalizeFilters(model.Filters{MaxDistanceMiles: 9000, AgeMin: 10, AgeMax: 4})
	if f.MaxDistanceMiles != 500 {
		t.Fatalf("radius clamp: got %v want 500", f.MaxDistanceMiles)
	}
	if f.AgeMin != 4 || f.AgeMax != 10 {
		t.Fatalf("inverted age bounds must swap, got [%d, %d]", f.AgeMin, f.AgeMax)
	}
	if f.Breed != model.AnyBreed || f.Gender != model.AnyGender {
		t.Fatalf("empty breed and gender must default to wildcards, got %+v", f)
	}

	f = loader.NormalizeFilters(model.Filters{})
	if f.MaxDistanceMiles != 100 {
		t.Fatalf("default radius: got %v want 100", f.MaxDistanceMiles)
	}
}
