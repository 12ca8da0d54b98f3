package quotas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pawmatch/backend/internal/domain/enums"
	redisrepo "github.com/pawmatch/backend/internal/repo/redis"
)

func newTestLedger(t *testing.T, tier enums.Tier) (*Ledger, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ledger := NewLedger(redisrepo.NewBlobRepo(client), 42, tier, time.UTC)
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("load ledger: %v", err)
	}

	return ledger, mr
}

func TestTryUseConsumesUntilLimit(t *testing.T) {
	ledger, _ := newTestLedger(t, enums.TierFree)
	ctx := context.Background()

	ok, err := ledger.TryUse(ctx, enums.QuotaSuperLike)
	if err != nil || !ok {
		t.Fatalf("first super like: got (%v, %v) want (true, nil)", ok, err)
	}

	ok, err = ledger.TryUse(ctx, enums.QuotaSuperLike)
	if err != nil {
		t.Fatalf("second super like: %v", err)
	}
	if ok {
		t.Fatal("free tier must be denied a second super like")
	}

	if got := ledger.Remaining(enums.QuotaSuperLike); got != 0 {
		t.Fatalf("remaining super likes: got %d want 0", got)
	}
	if ledger.CanUse(enums.QuotaSuperLike) {
		t.Fatal("CanUse must report exhaustion")
	}
}

func TestGoldTierSuperLikeLimit(t *testing.T) {
	ledger, _ := newTestLedger(t, enums.TierGold)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := ledger.TryUse(ctx, enums.QuotaSuperLike)
		if err != nil || !ok {
			t.Fatalf("super like %d: got (%v, %v)", i+1, ok, err)
		}
	}
	if ok, _ := ledger.TryUse(ctx, enums.QuotaSuperLike); ok {
		t.Fatal("gold tier must be denied a sixth super like")
	}
}

func TestRewindLimitIsFlatAcrossTiers(t *testing.T) {
	for _, tier := range []enums.Tier{enums.TierFree, enums.TierPlatinum} {
		t.Run(string(tier), func(t *testing.T) {
			ledger, _ := newTestLedger(t, tier)
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				ok, err := ledger.TryUse(ctx, enums.QuotaRewind)
				if err != nil || !ok {
					t.Fatalf("rewind %d: got (%v, %v)", i+1, ok, err)
				}
			}
			if ok, _ := ledger.TryUse(ctx, enums.QuotaRewind); ok {
				t.Fatal("sixth rewind must be denied")
			}
		})
	}
}

func TestUsagePersistsAcrossReload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisrepo.NewBlobRepo(client)
	ctx := context.Background()

	first := NewLedger(store, 7, enums.TierGold, time.UTC)
	if err := first.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < 3; i++ {
		if ok, err := first.TryUse(ctx, enums.QuotaSuperLike); err != nil || !ok {
			t.Fatalf("super like %d: got (%v, %v)", i+1, ok, err)
		}
	}

	second := NewLedger(store, 7, enums.TierGold, time.UTC)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := second.Remaining(enums.QuotaSuperLike); got != 2 {
		t.Fatalf("remaining after reload: got %d want 2", got)
	}
}

func TestDayRolloverResetsCounters(t *testing.T) {
	ledger, _ := newTestLedger(t, enums.TierFree)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day1 }

	if ok, err := ledger.TryUse(ctx, enums.QuotaSuperLike); err != nil || !ok {
		t.Fatalf("day one super like: got (%v, %v)", ok, err)
	}
	if ledger.CanUse(enums.QuotaSuperLike) {
		t.Fatal("day one quota must be spent")
	}

	ledger.now = func() time.Time { return day1.Add(2 * time.Hour) }

	if !ledger.CanUse(enums.QuotaSuperLike) {
		t.Fatal("new day must reset the super like quota")
	}
	snap := ledger.Snapshot()
	if snap.SuperLikesUsedToday != 0 || snap.DayKey != "2026-03-02" {
		t.Fatalf("unexpected snapshot after rollover: %+v", snap)
	}
}

func TestStaleBlobDiscardedOnLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mr.Set("discovery:quota:42", `{"super_likes_used_today":1,"rewinds_used_today":4,"day_key":"2020-01-01"}`)

	ledger := NewLedger(redisrepo.NewBlobRepo(client), 42, enums.TierFree, time.UTC)
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := ledger.Snapshot()
	if snap.SuperLikesUsedToday != 0 || snap.RewindsUsedToday != 0 {
		t.Fatalf("stale counters survived load: %+v", snap)
	}
}

type failingStore struct {
	getErr error
	setErr error
}

func (s *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, s.getErr
}

func (s *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return s.setErr
}

func TestTryUseFailsClosedOnWriteError(t *testing.T) {
	store := &failingStore{setErr: errors.New("write refused")}
	ledger := NewLedger(store, 42, enums.TierGold, time.UTC)
	ledger.state.DayKey = "2026-03-01"
	ledger.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	ok, err := ledger.TryUse(context.Background(), enums.QuotaSuperLike)
	if ok {
		t.Fatal("consumption must be denied when the write fails")
	}
	if err == nil {
		t.Fatal("write failure must surface an error")
	}
	if ledger.Snapshot().SuperLikesUsedToday != 0 {
		t.Fatalf("counter must roll back on write failure, got %d", ledger.Snapshot().SuperLikesUsedToday)
	}
}

func TestRefundReturnsSlot(t *testing.T) {
	ledger, _ := newTestLedger(t, enums.TierGold)
	ctx := context.Background()

	if ok, err := ledger.TryUse(ctx, enums.QuotaSuperLike); err != nil || !ok {
		t.Fatalf("try use: got (%v, %v)", ok, err)
	}
	if err := ledger.Refund(ctx, enums.QuotaSuperLike); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := ledger.Remaining(enums.QuotaSuperLike); got != 5 {
		t.Fatalf("remaining after refund: got %d want 5", got)
	}

	// Refund with nothing consumed is a no-op.
	if err := ledger.Refund(ctx, enums.QuotaRewind); err != nil {
		t.Fatalf("refund on zero: %v", err)
	}
	if got := ledger.Remaining(enums.QuotaRewind); got != 5 {
		t.Fatalf("rewind remaining: got %d want 5", got)
	}
}
