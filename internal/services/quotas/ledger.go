package quotas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
	"github.com/pawmatch/backend/internal/domain/model"
	"github.com/pawmatch/backend/internal/domain/rules"
)

var ErrLimitReached = errors.New("daily limit reached")

const stateTTL = 48 * time.Hour

// BlobStore is the persistence surface the ledger needs: opaque blobs
// keyed by identity.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Ledger tracks per-day usage of super likes and rewinds for one
// signed-in identity. Consumption persists synchronously: a slot is
// only considered used once the write succeeded, and a failed write
// rolls the counter back so the action is denied rather than granted on
// faith.
type Ledger struct {
	mu sync.Mutex

	store  BlobStore
	userID int64
	tier   enums.Tier
	loc    *time.Location

	state model.QuotaState

	now func() time.Time
}

func NewLedger(store BlobStore, userID int64, tier enums.Tier, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	if !tier.Valid() {
		tier = enums.TierFree
	}

	return &Ledger{
		store:  store,
		userID: userID,
		tier:   tier,
		loc:    loc,
		now:    time.Now,
	}
}

func (l *Ledger) key() string {
	return fmt.Sprintf("discovery:quota:%d", l.userID)
}

// Load restores persisted usage for the identity. A blob stamped with a
// previous day key is discarded and counters start fresh; a missing
// blob is a fresh day too.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := rules.DayKey(l.now(), l.loc)

	data, found, err := l.store.Get(ctx, l.key())
	if err != nil {
		return fmt.Errorf("load quota state: %w", err)
	}
	if !found {
		l.state = model.QuotaState{DayKey: today}
		return nil
	}

	var state model.QuotaState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode quota state: %w", err)
	}
	if state.DayKey != today {
		state = model.QuotaState{DayKey: today}
	}

	l.state = state
	return nil
}

// SetTier swaps the subscription tier used for limit lookups. Usage
// counters are untouched; only the ceiling moves.
func (l *Ledger) SetTier(tier enums.Tier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tier.Valid() {
		l.tier = tier
	}
}

// CanUse reports whether one more slot of the given kind is available
// right now. Advisory only; TryUse is the authoritative gate.
func (l *Ledger) CanUse(kind enums.QuotaKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.used(kind) < rules.LimitFor(l.tier, kind)
}

// TryUse consumes one slot of the given kind. Returns false with a nil
// error when the day's limit is already spent. A persistence failure
// rolls back the consumption and surfaces the error; callers treat that
// as a denial.
func (l *Ledger) TryUse(ctx context.Context, kind enums.QuotaKind) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()

	if l.used(kind) >= rules.LimitFor(l.tier, kind) {
		return false, nil
	}

	prev := l.state
	l.bump(kind, 1)
	if err := l.persist(ctx); err != nil {
		l.state = prev
		return false, fmt.Errorf("persist quota state: %w", err)
	}

	return true, nil
}

// Refund returns one slot of the given kind, never dropping a counter
// below zero. Used when a consumed action is undone in the same day.
func (l *Ledger) Refund(ctx context.Context, kind enums.QuotaKind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()

	if l.used(kind) == 0 {
		return nil
	}

	prev := l.state
	l.bump(kind, -1)
	if err := l.persist(ctx); err != nil {
		l.state = prev
		return fmt.Errorf("persist quota state: %w", err)
	}

	return nil
}

// Remaining reports how many slots of the given kind are left today.
func (l *Ledger) Remaining(kind enums.QuotaKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()

	left := rules.LimitFor(l.tier, kind) - l.used(kind)
	if left < 0 {
		return 0
	}
	return left
}

// Snapshot returns a copy of the current usage state.
func (l *Ledger) Snapshot() model.QuotaState {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.state
}

// Limits returns the active per-day ceilings for the ledger's tier.
func (l *Ledger) Limits() rules.Limits {
	l.mu.Lock()
	defer l.mu.Unlock()
	return rules.LimitsForTier(l.tier)
}

// NextResetAt reports when the counters roll over next.
func (l *Ledger) NextResetAt() time.Time {
	return rules.NextResetAt(l.now(), l.loc)
}

// rollover lazily resets counters when the local day has changed since
// the last touch. Callers hold l.mu.
func (l *Ledger) rollover() {
	today := rules.DayKey(l.now(), l.loc)
	if l.state.DayKey != today {
		l.state = model.QuotaState{DayKey: today}
	}
}

func (l *Ledger) used(kind enums.QuotaKind) int {
	switch kind {
	case enums.QuotaSuperLike:
		return l.state.SuperLikesUsedToday
	case enums.QuotaRewind:
		return l.state.RewindsUsedToday
	default:
		return 0
	}
}

func (l *Ledger) bump(kind enums.QuotaKind, delta int) {
	switch kind {
	case enums.QuotaSuperLike:
		l.state.SuperLikesUsedToday += delta
	case enums.QuotaRewind:
		l.state.RewindsUsedToday += delta
	}
}

func (l *Ledger) persist(ctx context.Context) error {
	data, err := json.Marshal(l.state)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, l.key(), data, stateTTL)
}
