package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawmatch/backend/internal/domain/enums"
	"github.com/pawmatch/backend/internal/domain/model"
	"github.com/pawmatch/backend/internal/services/candidates"
	"github.com/pawmatch/backend/internal/services/cards"
	"github.com/pawmatch/backend/internal/services/gestures"
	"github.com/pawmatch/backend/internal/services/history"
	"github.com/pawmatch/backend/internal/services/quotas"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrQuotaExceeded   = errors.New("daily limit reached")
	ErrNoCandidate     = errors.New("no active candidate")
	ErrNothingToRewind = errors.New("nothing to rewind")
)

const (
	persistTimeout = 10 * time.Second
	eventBuffer    = 16
)

type LikeStore interface {
	Create(ctx context.Context, likerPetID, likedPetID int64, isSuperLike bool) error
	Delete(ctx context.Context, likerPetID, likedPetID int64) (bool, error)
}

type MatchService interface {
	CheckAfterLike(ctx context.Context, viewer candidates.Viewer, target model.Candidate) (model.MatchRecord, bool, error)
	Unmatch(ctx context.Context, petID, targetPetID int64) (bool, error)
}

type Loader interface {
	NormalizeFilters(f model.Filters) model.Filters
	Load(ctx context.Context, userID int64, f model.Filters) (candidates.Viewer, []model.Candidate, error)
}

// Notice is a soft-failure event: the session continues, the host may
// surface a hint.
type Notice struct {
	Kind       string `json:"kind"`
	DecisionID string `json:"decision_id,omitempty"`
	Message    string `json:"message"`
}

const (
	NoticeSyncFailed    = "sync_failed"
	NoticeRetractFailed = "retract_failed"
)

// DecideResult reports one applied decision and how long its commit
// animation runs.
type DecideResult struct {
	Decision     model.SwipeDecision
	ExitDuration time.Duration
}

// GestureResult reports how one sample was absorbed. Decision is set
// only when the release crossed a trigger threshold.
type GestureResult struct {
	Outcome           gestures.Outcome
	Decision          *model.SwipeDecision
	AnimationDuration time.Duration
	InspectPetID      int64
}

type RewindResult struct {
	Decision model.SwipeDecision
	Restored model.Candidate
}

// State is a point-in-time view of the whole session, enough to render
// the card stage without any engine-side callbacks.
type State struct {
	Current        *model.Candidate `json:"current,omitempty"`
	Next           *model.Candidate `json:"next,omitempty"`
	ActivePose     cards.Pose       `json:"active_pose"`
	NextPose       cards.Pose       `json:"next_pose"`
	Filters        model.Filters    `json:"filters"`
	QueueRemaining int              `json:"queue_remaining"`
	HistoryDepth   int              `json:"history_depth"`
	SuperLikesLeft int              `json:"super_likes_left"`
	RewindsLeft    int              `json:"rewinds_left"`
	CanRewind      bool             `json:"can_rewind"`
	QuotaResetAt   time.Time        `json:"quota_reset_at"`
}

// Engine owns one user's discovery session: the candidate queue, the
// decision history, the quota ledger and the card animation state. All
// entry points serialise on one mutex; persistence of like effects runs
// asynchronously and reconciles back through the same mutex.
type Engine struct {
	mu sync.Mutex

	log    *zap.Logger
	userID int64

	loader  Loader
	likes   LikeStore
	matches MatchService
	ledger  *quotas.Ledger

	classifier *gestures.Classifier
	driver     *cards.Driver
	hist       *history.Stack
	queue      *candidates.Queue

	viewer         candidates.Viewer
	filters        model.Filters
	pendingFilters *model.Filters
	dragActive     bool
	started        bool

	// decisions rewound while their like write was still in flight,
	// keyed by decision ID. A late success earns a retraction; a late
	// failure is already the desired end state.
	rewoundPending map[string]int64

	matchCh   chan model.MatchRecord
	noticeCh  chan Notice
	inspectCh chan int64

	wg sync.WaitGroup

	// runAsync schedules persistence work; tests replace it with an
	// inline call for determinism.
	runAsync func(fn func())
	now      func() time.Time
}

type Dependencies struct {
	Logger       *zap.Logger
	Loader       Loader
	LikeStore    LikeStore
	MatchService MatchService
	Ledger       *quotas.Ledger
}

type Config struct {
	Gesture   gestures.Config
	Animation cards.Config
}

func NewEngine(userID int64, deps Dependencies, cfg Config) *Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		log:            log.With(zap.Int64("user_id", userID)),
		userID:         userID,
		loader:         deps.Loader,
		likes:          deps.LikeStore,
		matches:        deps.MatchService,
		ledger:         deps.Ledger,
		classifier:     gestures.NewClassifier(cfg.Gesture),
		driver:         cards.NewDriver(cfg.Animation),
		hist:           history.NewStack(),
		queue:          candidates.NewQueue(nil),
		rewoundPending: make(map[string]int64),
		matchCh:        make(chan model.MatchRecord, eventBuffer),
		noticeCh:       make(chan Notice, eventBuffer),
		inspectCh:      make(chan int64, eventBuffer),
		runAsync:       func(fn func()) { go fn() },
		now:            time.Now,
	}
}

// Start loads persisted quota state and builds the initial queue under
// default filters. Idempotent.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	if err := e.ledger.Load(ctx); err != nil {
		return fmt.Errorf("load quota ledger: %w", err)
	}
	if err := e.rebuildLocked(ctx, e.filters); err != nil {
		return err
	}

	e.started = true
	return nil
}

// Close waits for in-flight persistence calls to settle.
func (e *Engine) Close() {
	e.wg.Wait()
}

// Matches streams match records detected during this session.
func (e *Engine) Matches() <-chan model.MatchRecord {
	return e.matchCh
}

// Notices streams soft failures.
func (e *Engine) Notices() <-chan Notice {
	return e.noticeCh
}

// ProfileInspections streams pet IDs the user tapped to inspect.
func (e *Engine) ProfileInspections() <-chan int64 {
	return e.inspectCh
}

func (e *Engine) Viewer() candidates.Viewer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewer
}

// Decide applies a button-press decision to the current candidate.
func (e *Engine) Decide(ctx context.Context, kind enums.DecisionKind) (DecideResult, error) {
	if !kind.Valid() {
		return DecideResult{}, fmt.Errorf("%w: unknown decision kind %q", ErrValidation, kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.settleLocked(now)

	decision, dur, err := e.decideLocked(ctx, kind, now)
	if err != nil {
		return DecideResult{}, err
	}

	return DecideResult{Decision: decision, ExitDuration: dur}, nil
}

// HandleGesture absorbs one drag sample. Active samples drive the card
// directly; the released sample resolves to a tap, a spring-back or a
// decision.
func (e *Engine) HandleGesture(ctx context.Context, sample model.GestureSample) (GestureResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.settleLocked(now)

	outcome := e.classifier.Classify(sample)
	res := GestureResult{Outcome: outcome}

	if outcome == gestures.OutcomeDragging {
		if _, ok := e.queue.Current(); !ok {
			return res, nil
		}
		e.dragActive = true
		e.driver.Track(sample)
		return res, nil
	}

	// Release: the drag is over whatever the outcome is, and any filter
	// change parked during it can now take effect.
	e.dragActive = false
	defer e.applyDeferredFiltersLocked(ctx)

	switch {
	case outcome == gestures.OutcomeTap:
		if cur, ok := e.queue.Current(); ok {
			res.InspectPetID = cur.PetID
			e.emitInspect(cur.PetID)
		}
		return res, nil

	case outcome.IsDecision():
		kind, _ := outcome.DecisionKind()
		decision, dur, err := e.decideLocked(ctx, kind, now)
		if err != nil {
			// The card is mid-drag; it still has to go home.
			res.AnimationDuration = e.driver.StartSpringBack(now)
			return res, err
		}
		res.Decision = &decision
		res.AnimationDuration = dur
		return res, nil

	default:
		res.AnimationDuration = e.driver.StartSpringBack(now)
		return res, nil
	}
}

// Rewind pops the most recent decision, restores its candidate under
// the cursor and undoes any remote like effect that already landed.
func (e *Engine) Rewind(ctx context.Context) (RewindResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.settleLocked(now)

	if _, ok := e.hist.Peek(); !ok {
		return RewindResult{}, ErrNothingToRewind
	}

	ok, err := e.ledger.TryUse(ctx, enums.QuotaRewind)
	if err != nil {
		return RewindResult{}, fmt.Errorf("consume rewind quota: %w", err)
	}
	if !ok {
		return RewindResult{}, ErrQuotaExceeded
	}

	entry, _ := e.hist.Pop()
	e.queue.Retreat()
	e.queue.Unmark(entry.Decision.CandidateID)
	e.driver.Reset()

	if entry.Decision.Kind == enums.DecisionSuperLike {
		// The slot goes back; the decision never happened.
		if err := e.ledger.Refund(ctx, enums.QuotaSuperLike); err != nil {
			e.log.Warn("super like refund failed", zap.Error(err))
		}
	}

	if entry.Decision.Kind.IsLike() {
		switch {
		case entry.Pending:
			e.rewoundPending[entry.Decision.ID] = entry.Decision.CandidateID
		case entry.Synced:
			e.spawnRetract(entry.Decision.ID, entry.Decision.CandidateID)
		}
		// A failed write left nothing remote to undo.
	}

	restored, _ := e.queue.Current()
	return RewindResult{Decision: entry.Decision, Restored: restored}, nil
}

// ApplyFilters swaps the active filter set and rebuilds the queue.
// During an active drag the change is parked and applied on release;
// applied reports which path was taken.
func (e *Engine) ApplyFilters(ctx context.Context, f model.Filters) (applied bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f = e.loader.NormalizeFilters(f)

	if e.dragActive {
		e.pendingFilters = &f
		return false, nil
	}

	if err := e.rebuildLocked(ctx, f); err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot renders the session at this instant.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.settleLocked(now)

	st := State{
		ActivePose:     e.driver.ActivePose(now),
		NextPose:       e.driver.NextPose(now),
		Filters:        e.filters,
		QueueRemaining: e.queue.Remaining(),
		HistoryDepth:   e.hist.Len(),
		SuperLikesLeft: e.ledger.Remaining(enums.QuotaSuperLike),
		RewindsLeft:    e.ledger.Remaining(enums.QuotaRewind),
		QuotaResetAt:   e.ledger.NextResetAt(),
	}
	st.CanRewind = st.HistoryDepth > 0 && st.RewindsLeft > 0

	if cur, ok := e.queue.Current(); ok {
		st.Current = &cur
	}
	if next, ok := e.queue.PeekNext(); ok {
		st.Next = &next
	}

	return st
}

// QuotaReport details today's quota usage against the active limits.
type QuotaReport struct {
	SuperLikesUsed  int       `json:"super_likes_used"`
	SuperLikesLimit int       `json:"super_likes_limit"`
	RewindsUsed     int       `json:"rewinds_used"`
	RewindsLimit    int       `json:"rewinds_limit"`
	DayKey          string    `json:"day_key"`
	ResetAt         time.Time `json:"reset_at"`
}

func (e *Engine) QuotaReport() QuotaReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.ledger.Snapshot()
	limits := e.ledger.Limits()

	return QuotaReport{
		SuperLikesUsed:  state.SuperLikesUsedToday,
		SuperLikesLimit: limits.SuperLikesPerDay,
		RewindsUsed:     state.RewindsUsedToday,
		RewindsLimit:    limits.RewindsPerDay,
		DayKey:          state.DayKey,
		ResetAt:         e.ledger.NextResetAt(),
	}
}

// decideLocked is the single decision path shared by gestures and
// buttons. The cursor advances and the exit animation starts before the
// like effect is durable; only the super-like quota gate is synchronous.
func (e *Engine) decideLocked(ctx context.Context, kind enums.DecisionKind, now time.Time) (model.SwipeDecision, time.Duration, error) {
	target, ok := e.queue.Current()
	if !ok {
		return model.SwipeDecision{}, 0, ErrNoCandidate
	}

	if kind == enums.DecisionSuperLike {
		ok, err := e.ledger.TryUse(ctx, enums.QuotaSuperLike)
		if err != nil {
			// Denied rather than granted on faith.
			e.log.Warn("super like quota write failed", zap.Error(err))
			return model.SwipeDecision{}, 0, ErrQuotaExceeded
		}
		if !ok {
			return model.SwipeDecision{}, 0, ErrQuotaExceeded
		}
	}

	decision := model.SwipeDecision{
		ID:          uuid.NewString(),
		CandidateID: target.PetID,
		Kind:        kind,
		CreatedAt:   now.UTC(),
	}

	e.hist.Push(history.Entry{
		Decision: decision,
		Pending:  kind.IsLike(),
		Synced:   !kind.IsLike(),
	})
	e.queue.MarkDecided(target.PetID)
	e.queue.Advance()

	dur := e.driver.StartExit(kind, now)

	if kind.IsLike() {
		e.spawnPersist(decision, target)
	}

	e.log.Info("decision applied",
		zap.String("decision_id", decision.ID),
		zap.String("kind", string(kind)),
		zap.Int64("pet_id", target.PetID),
	)

	return decision, dur, nil
}

func (e *Engine) spawnPersist(decision model.SwipeDecision, target model.Candidate) {
	viewerPetID := e.viewer.PetID
	isSuper := decision.Kind == enums.DecisionSuperLike

	e.wg.Add(1)
	e.runAsync(func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		err := e.likes.Create(ctx, viewerPetID, target.PetID, isSuper)
		e.resolvePersist(ctx, decision, target, err)
	})
}

// resolvePersist reconciles a finished like write against the current
// history state. The entry may have been rewound while the call was in
// flight; in that case a late success is immediately retracted and a
// late failure is already the desired end state.
func (e *Engine) resolvePersist(ctx context.Context, decision model.SwipeDecision, target model.Candidate, err error) {
	e.mu.Lock()

	if _, rewound := e.rewoundPending[decision.ID]; rewound {
		delete(e.rewoundPending, decision.ID)
		viewerPetID := e.viewer.PetID
		e.mu.Unlock()

		if err != nil {
			return
		}
		e.retract(ctx, decision.ID, viewerPetID, target.PetID)
		return
	}

	if err != nil {
		e.hist.MarkFailed(decision.ID)
		e.mu.Unlock()

		e.log.Warn("like persistence failed",
			zap.String("decision_id", decision.ID),
			zap.Int64("pet_id", target.PetID),
			zap.Error(err),
		)
		e.emitNotice(Notice{
			Kind:       NoticeSyncFailed,
			DecisionID: decision.ID,
			Message:    "your like could not be saved",
		})
		return
	}

	e.hist.MarkSynced(decision.ID)
	viewer := e.viewer
	e.mu.Unlock()

	rec, found, mErr := e.matches.CheckAfterLike(ctx, viewer, target)
	if mErr != nil {
		e.log.Warn("match detection failed",
			zap.String("decision_id", decision.ID),
			zap.Int64("pet_id", target.PetID),
			zap.Error(mErr),
		)
		return
	}
	if found {
		e.emitMatch(rec)
	}
}

func (e *Engine) spawnRetract(decisionID string, targetPetID int64) {
	viewerPetID := e.viewer.PetID

	e.wg.Add(1)
	e.runAsync(func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		e.retract(ctx, decisionID, viewerPetID, targetPetID)
	})
}

// retract undoes the remote effects of a rewound like: the like row and
// any match it produced. Failures leave an accepted divergence; the
// local state stays rewound.
func (e *Engine) retract(ctx context.Context, decisionID string, viewerPetID, targetPetID int64) {
	if _, err := e.likes.Delete(ctx, viewerPetID, targetPetID); err != nil {
		e.log.Warn("like retraction failed",
			zap.String("decision_id", decisionID),
			zap.Int64("pet_id", targetPetID),
			zap.Error(err),
		)
		e.emitNotice(Notice{
			Kind:       NoticeRetractFailed,
			DecisionID: decisionID,
			Message:    "your rewind could not be fully undone",
		})
		return
	}

	if _, err := e.matches.Unmatch(ctx, viewerPetID, targetPetID); err != nil {
		e.log.Warn("unmatch after rewind failed",
			zap.String("decision_id", decisionID),
			zap.Int64("pet_id", targetPetID),
			zap.Error(err),
		)
	}
}

// rebuildLocked reloads the queue under the given filters. History from
// the previous candidate set is not rewindable; the stack clears.
func (e *Engine) rebuildLocked(ctx context.Context, f model.Filters) error {
	viewer, items, err := e.loader.Load(ctx, e.userID, f)
	if err != nil {
		return fmt.Errorf("build candidate queue: %w", err)
	}

	e.viewer = viewer
	e.filters = e.loader.NormalizeFilters(f)
	e.queue.Rebuild(items)
	e.hist.Clear()
	e.driver.Reset()
	e.pendingFilters = nil

	return nil
}

func (e *Engine) applyDeferredFiltersLocked(ctx context.Context) {
	if e.pendingFilters == nil || e.dragActive {
		return
	}

	f := *e.pendingFilters
	if err := e.rebuildLocked(ctx, f); err != nil {
		e.log.Warn("deferred filter apply failed", zap.Error(err))
	}
}

// settleLocked finishes any animation that has run its course so the
// driver is idle before the next interaction mutates it.
func (e *Engine) settleLocked(now time.Time) {
	mode := e.driver.Mode()
	if (mode == cards.ModeExit || mode == cards.ModeSpringBack) && e.driver.Settled(now) {
		e.driver.Finish()
	}
}

func (e *Engine) emitMatch(rec model.MatchRecord) {
	select {
	case e.matchCh <- rec:
	default:
		e.log.Warn("match event dropped", zap.Int64("match_id", rec.MatchID))
	}
}

func (e *Engine) emitNotice(n Notice) {
	select {
	case e.noticeCh <- n:
	default:
	}
}

func (e *Engine) emitInspect(petID int64) {
	select {
	case e.inspectCh <- petID:
	default:
	}
}
