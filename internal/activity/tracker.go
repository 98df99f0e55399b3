package activity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// Stamper persists the forward-only activity date. Satisfied by users.Repository.
type Stamper interface {
	StampActivity(ctx context.Context, id uuid.UUID, day time.Time) (bool, error)
}

// Tracker records the calendar day a member last touched the platform.
// Days are UTC: a request at 23:59 UTC and one at 00:01 UTC land on
// different days regardless of the member's local clock.
type Tracker struct {
	repo   Stamper
	logger *logger.Logger
	now    func() time.Time
}

// NewTracker wires the tracker to its persistence layer.
func NewTracker(repo Stamper, logg *logger.Logger) *Tracker {
	return &Tracker{repo: repo, logger: logg, now: time.Now}
}

// Touch moves the member's last_activity_date to today (UTC) when it is
// behind. Repeat calls on the same day are no-ops at the database level.
// Failures are logged and swallowed: activity tracking must never fail
// the request that triggered it.
func (t *Tracker) Touch(ctx context.Context, userID uuid.UUID) {
	if t == nil || t.repo == nil {
		return
	}

	day := Day(t.now())
	updated, err := t.repo.StampActivity(ctx, userID, day)
	if err != nil {
		if t.logger != nil {
			t.logger.Error(t.logger.WithUserID(ctx, userID.String()), "stamping activity date", err)
		}
		return
	}
	if updated && t.logger != nil {
		t.logger.Info(t.logger.WithUserID(ctx, userID.String()), "activity date advanced")
	}
}

// Day truncates a timestamp to its UTC calendar day.
func Day(at time.Time) time.Time {
	utc := at.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
