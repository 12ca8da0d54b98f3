package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
	"github.com/pawmatch/backend/internal/domain/model"
	"github.com/pawmatch/backend/internal/services/candidates"
	"github.com/pawmatch/backend/internal/services/gestures"
	"github.com/pawmatch/backend/internal/services/quotas"
)

type memBlobStore struct {
	data map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{data: make(map[string][]byte)}
}

func (s *memBlobStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := s.data[key]
	return data, ok, nil
}

func (s *memBlobStore) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	s.data[key] = data
	return nil
}

type stubLoader struct {
	viewer candidates.Viewer
	items  []model.Candidate
	loads  int
}

func (l *stubLoader) NormalizeFilters(f model.Filters) model.Filters {
	if f.Breed == "" {
		f.Breed = model.AnyBreed
	}
	if f.Gender == "" {
		f.Gender = model.AnyGender
	}
	if f.MaxDistanceMiles <= 0 {
		f.MaxDistanceMiles = 100
	}
	if f.AgeMin <= 0 {
		f.AgeMin = 1
	}
	if f.AgeMax <= 0 {
		f.AgeMax = 15
	}
	return f
}

func (l *stubLoader) Load(_ context.Context, _ int64, _ model.Filters) (candidates.Viewer, []model.Candidate, error) {
	l.loads++
	return l.viewer, l.items, nil
}

type likeCall struct {
	liker, liked int64
	super        bool
}

type stubLikes struct {
	createErr error
	created   []likeCall
	deleted   [][2]int64
}

func (s *stubLikes) Create(_ context.Context, likerPetID, likedPetID int64, isSuperLike bool) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, likeCall{likerPetID, likedPetID, isSuperLike})
	return nil
}

func (s *stubLikes) Delete(_ context.Context, likerPetID, likedPetID int64) (bool, error) {
	s.deleted = append(s.deleted, [2]int64{likerPetID, likedPetID})
	return true, nil
}

type stubMatches struct {
	found     bool
	rec       model.MatchRecord
	unmatched [][2]int64
}

func (s *stubMatches) CheckAfterLike(_ context.Context, _ candidates.Viewer, _ model.Candidate) (model.MatchRecord, bool, error) {
	return s.rec, s.found, nil
}

func (s *stubMatches) Unmatch(_ context.Context, petID, targetPetID int64) (bool, error) {
	s.unmatched = append(s.unmatched, [2]int64{petID, targetPetID})
	return true, nil
}

// manualExec captures async work so tests control exactly when
// persistence completes relative to user actions.
type manualExec struct {
	fns []func()
}

func (x *manualExec) run(fn func()) {
	x.fns = append(x.fns, fn)
}

func (x *manualExec) drain() {
	for len(x.fns) > 0 {
		fn := x.fns[0]
		x.fns = x.fns[1:]
		fn()
	}
}

type fixture struct {
	engine  *Engine
	loader  *stubLoader
	likes   *stubLikes
	matches *stubMatches
	exec    *manualExec
}

func newFixture(t *testing.T, tier enums.Tier) *fixture {
	t.Helper()

	loader := &stubLoader{
		viewer: candidates.Viewer{UserID: 42, PetID: 1, Name: "Rex"},
		items: []model.Candidate{
			{PetID: 10, Name: "Luna"},
			{PetID: 11, Name: "Max"},
			{PetID: 12, Name: "Bella"},
		},
	}
	likes := &stubLikes{}
	matches := &stubMatches{}
	exec := &manualExec{}

	ledger := quotas.NewLedger(newMemBlobStore(), 42, tier, time.UTC)

	eng := NewEngine(42, Dependencies{
		Loader:       loader,
		LikeStore:    likes,
		MatchService: matches,
		Ledger:       ledger,
	}, Config{})
	eng.runAsync = exec.run

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}

	return &fixture{engine: eng, loader: loader, likes: likes, matches: matches, exec: exec}
}

func currentPetID(t *testing.T, e *Engine) int64 {
	t.Helper()
	st := e.Snapshot()
	if st.Current == nil {
		t.Fatal("expected a current candidate")
	}
	return st.Current.PetID
}

func TestStartBuildsInitialState(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	st := fx.engine.Snapshot()
	if st.Current == nil || st.Current.PetID != 10 {
		t.Fatalf("current: got %+v want pet 10", st.Current)
	}
	if st.Next == nil || st.Next.PetID != 11 {
		t.Fatalf("next: got %+v want pet 11", st.Next)
	}
	if st.QueueRemaining != 3 || st.HistoryDepth != 0 {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if st.SuperLikesLeft != 1 || st.RewindsLeft != 5 {
		t.Fatalf("unexpected quotas: %+v", st)
	}
	if st.CanRewind {
		t.Fatal("empty history must not allow rewind")
	}
	if st.ActivePose.Scale != 1 {
		t.Fatalf("active card must rest at neutral, got %+v", st.ActivePose)
	}
}

func TestDecideAdvancesBeforePersistence(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	res, err := fx.engine.Decide(context.Background(), enums.DecisionLike)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if res.Decision.CandidateID != 10 || res.Decision.Kind != enums.DecisionLike {
		t.Fatalf("unexpected decision: %+v", res.Decision)
	}
	if res.Decision.ID == "" {
		t.Fatal("decision must carry a correlation id")
	}
	if res.ExitDuration != 600*time.Millisecond {
		t.Fatalf("exit duration: got %s", res.ExitDuration)
	}

	// Cursor moved before the like write ran at all.
	if len(fx.likes.created) != 0 {
		t.Fatal("like write must not run synchronously")
	}
	if got := currentPetID(t, fx.engine); got != 11 {
		t.Fatalf("current after decide: got %d want 11", got)
	}

	fx.exec.drain()
	if len(fx.likes.created) != 1 || fx.likes.created[0] != (likeCall{1, 10, false}) {
		t.Fatalf("unexpected like calls: %+v", fx.likes.created)
	}
}

func TestDislikeHasNoRemoteEffect(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionDislike); err != nil {
		t.Fatalf("decide: %v", err)
	}
	fx.exec.drain()

	if len(fx.likes.created) != 0 {
		t.Fatalf("dislike must not persist anything, got %+v", fx.likes.created)
	}
	if got := currentPetID(t, fx.engine); got != 11 {
		t.Fatalf("current: got %d want 11", got)
	}
}

func TestMatchEmittedOnlyAfterDurableLike(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	fx.matches.found = true
	fx.matches.rec = model.MatchRecord{MatchID: 99, OtherPetID: 10, OtherName: "Luna"}

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionLike); err != nil {
		t.Fatalf("decide: %v", err)
	}

	select {
	case rec := <-fx.engine.Matches():
		t.Fatalf("match emitted before the like was durable: %+v", rec)
	default:
	}

	fx.exec.drain()

	select {
	case rec := <-fx.engine.Matches():
		if rec.MatchID != 99 || rec.OtherName != "Luna" {
			t.Fatalf("unexpected match record: %+v", rec)
		}
	default:
		t.Fatal("expected a match event after the like became durable")
	}
}

func TestSuperLikeQuotaExhaustionLeavesCursor(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionSuperLike); err != nil {
		t.Fatalf("first super like: %v", err)
	}
	fx.exec.drain()

	before := currentPetID(t, fx.engine)
	depth := fx.engine.Snapshot().HistoryDepth

	_, err := fx.engine.Decide(context.Background(), enums.DecisionSuperLike)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	st := fx.engine.Snapshot()
	if st.Current == nil || st.Current.PetID != before {
		t.Fatalf("denied super like must not advance the cursor: %+v", st.Current)
	}
	if st.HistoryDepth != depth {
		t.Fatalf("denied super like must not touch history: got %d want %d", st.HistoryDepth, depth)
	}
	fx.exec.drain()
	if len(fx.likes.created) != 1 {
		t.Fatalf("denied super like must not persist, got %+v", fx.likes.created)
	}
}

func TestFailedSyncRaisesNoticeAndKeepsEntry(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	fx.likes.createErr = errors.New("network down")

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionLike); err != nil {
		t.Fatalf("decide: %v", err)
	}
	fx.exec.drain()

	select {
	case n := <-fx.engine.Notices():
		if n.Kind != NoticeSyncFailed {
			t.Fatalf("unexpected notice: %+v", n)
		}
	default:
		t.Fatal("expected a sync-failed notice")
	}

	// The entry is still locally rewindable.
	st := fx.engine.Snapshot()
	if st.HistoryDepth != 1 || !st.CanRewind {
		t.Fatalf("failed sync must keep the entry on the stack: %+v", st)
	}
}

func TestRewindRestoresCandidateAndRetracts(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionLike); err != nil {
		t.Fatalf("decide: %v", err)
	}
	fx.exec.drain() // like is durable

	res, err := fx.engine.Rewind(context.Background())
	if err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if res.Restored.PetID != 10 {
		t.Fatalf("restored: got %d want 10", res.Restored.PetID)
	}
	if got := currentPetID(t, fx.engine); got != 10 {
		t.Fatalf("current after rewind: got %d want 10", got)
	}

	fx.exec.drain()
	if len(fx.likes.deleted) != 1 || fx.likes.deleted[0] != [2]int64{1, 10} {
		t.Fatalf("expected one retraction, got %+v", fx.likes.deleted)
	}
	if len(fx.matches.unmatched) != 1 {
		t.Fatalf("expected the match row to be dropped, got %+v", fx.matches.unmatched)
	}
}

func TestRewindOfUnsyncedEntrySkipsRetraction(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	fx.likes.createErr = errors.New("network down")

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionLike); err != nil {
		t.Fatalf("decide: %v", err)
	}
	fx.exec.drain() // write failed; entry is unsynced

	if _, err := fx.engine.Rewind(context.Background()); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	fx.exec.drain()

	if len(fx.likes.deleted) != 0 {
		t.Fatalf("unsynced entry must not earn a retraction, got %+v", fx.likes.deleted)
	}
}

func TestRewindWhileWriteInFlightRetractsLateSuccess(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionLike); err != nil {
		t.Fatalf("decide: %v", err)
	}
	// Rewind lands while the like write is still in flight.
	if _, err := fx.engine.Rewind(context.Background()); err != nil {
		t.Fatalf("rewind: %v", err)
	}

	fx.exec.drain()

	if len(fx.likes.created) != 1 {
		t.Fatalf("the in-flight write still runs, got %+v", fx.likes.created)
	}
	if len(fx.likes.deleted) != 1 {
		t.Fatalf("a late success must be retracted, got %+v", fx.likes.deleted)
	}
}

func TestRewindEmptyHistoryConsumesNothing(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Rewind(context.Background()); !errors.Is(err, ErrNothingToRewind) {
		t.Fatalf("expected ErrNothingToRewind, got %v", err)
	}
	if got := fx.engine.Snapshot().RewindsLeft; got != 5 {
		t.Fatalf("empty rewind must not consume quota: got %d want 5", got)
	}
}

func TestRewindRefundsSuperLikeSlot(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionSuperLike); err != nil {
		t.Fatalf("super like: %v", err)
	}
	fx.exec.drain()

	if got := fx.engine.Snapshot().SuperLikesLeft; got != 0 {
		t.Fatalf("super likes left before rewind: got %d want 0", got)
	}

	if _, err := fx.engine.Rewind(context.Background()); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	fx.exec.drain()

	st := fx.engine.Snapshot()
	if st.SuperLikesLeft != 1 {
		t.Fatalf("super like slot must come back: got %d want 1", st.SuperLikesLeft)
	}
	if st.RewindsLeft != 4 {
		t.Fatalf("rewind slot stays consumed: got %d want 4", st.RewindsLeft)
	}
}

func TestRewindQuotaExhaustion(t *testing.T) {
	fx := newFixture(t, enums.TierPlatinum)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := fx.engine.Decide(ctx, enums.DecisionDislike); err != nil {
			t.Fatalf("decide %d: %v", i, err)
		}
		if _, err := fx.engine.Rewind(ctx); err != nil {
			t.Fatalf("rewind %d: %v", i, err)
		}
	}

	if _, err := fx.engine.Decide(ctx, enums.DecisionDislike); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if _, err := fx.engine.Rewind(ctx); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded on sixth rewind, got %v", err)
	}
}

func TestGestureDecidesOnRelease(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	ctx := context.Background()

	// Finger down and dragging: the card follows, nothing resolves.
	res, err := fx.engine.HandleGesture(ctx, model.GestureSample{
		DX: 60, Phase: enums.GestureActive,
	})
	if err != nil {
		t.Fatalf("active sample: %v", err)
	}
	if res.Outcome != gestures.OutcomeDragging {
		t.Fatalf("outcome: got %s", res.Outcome)
	}
	st := fx.engine.Snapshot()
	if st.ActivePose.X != 60 || st.ActivePose.Rotation != 6 {
		t.Fatalf("card must follow the finger: %+v", st.ActivePose)
	}

	// Release past the trigger: a like decision and an exit animation.
	res, err = fx.engine.HandleGesture(ctx, model.GestureSample{
		DX: 200, DirectionX: 1, Phase: enums.GestureReleased, Elapsed: 400 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Outcome != gestures.OutcomeDecideRight {
		t.Fatalf("outcome: got %s", res.Outcome)
	}
	if res.Decision == nil || res.Decision.Kind != enums.DecisionLike || res.Decision.CandidateID != 10 {
		t.Fatalf("unexpected decision: %+v", res.Decision)
	}
	if res.AnimationDuration != 600*time.Millisecond {
		t.Fatalf("animation duration: got %s", res.AnimationDuration)
	}
}

func TestGestureRestSpringsBack(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	ctx := context.Background()

	if _, err := fx.engine.HandleGesture(ctx, model.GestureSample{DX: 30, Phase: enums.GestureActive}); err != nil {
		t.Fatalf("active sample: %v", err)
	}

	res, err := fx.engine.HandleGesture(ctx, model.GestureSample{
		DX: 30, Phase: enums.GestureReleased, Elapsed: 400 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Outcome != gestures.OutcomeRest || res.Decision != nil {
		t.Fatalf("sub-threshold release must not decide: %+v", res)
	}
	if res.AnimationDuration != 300*time.Millisecond {
		t.Fatalf("spring-back duration: got %s", res.AnimationDuration)
	}
	if got := currentPetID(t, fx.engine); got != 10 {
		t.Fatalf("cursor must not move on rest: got %d", got)
	}
}

func TestTapEmitsProfileInspection(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	res, err := fx.engine.HandleGesture(context.Background(), model.GestureSample{
		DX: 2, DY: 1, Phase: enums.GestureReleased, Elapsed: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if res.Outcome != gestures.OutcomeTap || res.InspectPetID != 10 {
		t.Fatalf("unexpected tap result: %+v", res)
	}

	select {
	case petID := <-fx.engine.ProfileInspections():
		if petID != 10 {
			t.Fatalf("inspection pet: got %d want 10", petID)
		}
	default:
		t.Fatal("expected a profile inspection event")
	}
	if got := currentPetID(t, fx.engine); got != 10 {
		t.Fatal("tap must never advance the cursor")
	}
}

func TestFilterChangeDeferredDuringDrag(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	ctx := context.Background()
	loadsAfterStart := fx.loader.loads

	if _, err := fx.engine.HandleGesture(ctx, model.GestureSample{DX: 50, Phase: enums.GestureActive}); err != nil {
		t.Fatalf("active sample: %v", err)
	}

	applied, err := fx.engine.ApplyFilters(ctx, model.Filters{Breed: "Corgi"})
	if err != nil {
		t.Fatalf("apply filters: %v", err)
	}
	if applied {
		t.Fatal("filter change during a drag must be deferred")
	}
	if fx.loader.loads != loadsAfterStart {
		t.Fatal("deferred filters must not rebuild yet")
	}

	if _, err := fx.engine.HandleGesture(ctx, model.GestureSample{
		DX: 50, Phase: enums.GestureReleased, Elapsed: 400 * time.Millisecond,
	}); err != nil {
		t.Fatalf("release: %v", err)
	}

	if fx.loader.loads != loadsAfterStart+1 {
		t.Fatalf("release must apply the deferred filters: loads %d", fx.loader.loads)
	}
	if got := fx.engine.Snapshot().Filters.Breed; got != "Corgi" {
		t.Fatalf("filters after deferred apply: got %s", got)
	}
}

func TestFilterRebuildClearsHistory(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	ctx := context.Background()

	if _, err := fx.engine.Decide(ctx, enums.DecisionDislike); err != nil {
		t.Fatalf("decide: %v", err)
	}

	applied, err := fx.engine.ApplyFilters(ctx, model.Filters{Breed: "Corgi"})
	if err != nil || !applied {
		t.Fatalf("apply filters: got (%v, %v)", applied, err)
	}

	st := fx.engine.Snapshot()
	if st.HistoryDepth != 0 || st.CanRewind {
		t.Fatalf("rebuild must clear history: %+v", st)
	}
	if _, err := fx.engine.Rewind(ctx); !errors.Is(err, ErrNothingToRewind) {
		t.Fatalf("rewind across a filter change must fail closed, got %v", err)
	}
	// The dislike from the previous set stays decided.
	if st.Current == nil || st.Current.PetID != 11 {
		t.Fatalf("decided candidate must not resurface: %+v", st.Current)
	}
}

func TestQueueExhaustion(t *testing.T) {
	fx := newFixture(t, enums.TierFree)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := fx.engine.Decide(ctx, enums.DecisionDislike); err != nil {
			t.Fatalf("decide %d: %v", i, err)
		}
	}

	if _, err := fx.engine.Decide(ctx, enums.DecisionDislike); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}

	st := fx.engine.Snapshot()
	if st.Current != nil || st.QueueRemaining != 0 {
		t.Fatalf("queue must be exhausted: %+v", st)
	}
}

func TestDecideRejectsUnknownKind(t *testing.T) {
	fx := newFixture(t, enums.TierFree)

	if _, err := fx.engine.Decide(context.Background(), enums.DecisionKind("NOPE")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
