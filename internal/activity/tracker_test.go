package activity

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakeStamper struct {
	mu      sync.Mutex
	stamped map[uuid.UUID]time.Time
	calls   int
	err     error
}

func newFakeStamper() *fakeStamper {
	return &fakeStamper{stamped: map[uuid.UUID]time.Time{}}
}

func (f *fakeStamper) StampActivity(_ context.Context, id uuid.UUID, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if prev, ok := f.stamped[id]; ok && !prev.Before(day) {
		return false, nil
	}
	f.stamped[id] = day
	return true, nil
}

func testTracker(repo Stamper, now func() time.Time) *Tracker {
	t := NewTracker(repo, logger.New(logger.Options{ServiceName: "activity-test", Output: io.Discard}))
	t.now = now
	return t
}

func TestTouchAdvancesOncePerDay(t *testing.T) {
	t.Parallel()

	repo := newFakeStamper()
	at := time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)
	tracker := testTracker(repo, func() time.Time { return at })
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		tracker.Touch(context.Background(), userID)
	}

	if repo.calls != 5 {
		t.Fatalf("expected 5 repo calls, got %d", repo.calls)
	}
	want := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	if got := repo.stamped[userID]; !got.Equal(want) {
		t.Fatalf("expected stamp %v, got %v", want, got)
	}
}

func TestTouchUsesUTCCalendarDay(t *testing.T) {
	t.Parallel()

	repo := newFakeStamper()
	loc := time.FixedZone("UTC-8", -8*3600)
	// 23:00 local on March 9 is already March 10 in UTC.
	at := time.Date(2025, time.March, 9, 23, 0, 0, 0, loc)
	tracker := testTracker(repo, func() time.Time { return at })
	userID := uuid.New()

	tracker.Touch(context.Background(), userID)

	want := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	if got := repo.stamped[userID]; !got.Equal(want) {
		t.Fatalf("expected stamp %v, got %v", want, got)
	}
}

func TestTouchSwallowsRepositoryErrors(t *testing.T) {
	t.Parallel()

	repo := newFakeStamper()
	repo.err = errors.New("db down")
	tracker := testTracker(repo, time.Now)

	tracker.Touch(context.Background(), uuid.New())

	if repo.calls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.calls)
	}
}

func TestDayTruncation(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.July, 4, 23, 59, 59, 0, time.UTC)
	want := time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC)
	if got := Day(at); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
