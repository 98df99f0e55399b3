package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type activityToucher interface {
	Touch(ctx context.Context, userID uuid.UUID)
}

// Activity advances the authenticated member's last-activity date after the
// response is written. The stamp runs in a goroutine detached from request
// cancellation so a client hangup cannot lose the touch.
func Activity(tracker activityToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tracker == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			userID, err := uuid.Parse(UserIDFromContext(r.Context()))
			if err != nil {
				return
			}

			detached := context.WithoutCancel(r.Context())
			go tracker.Touch(detached, userID)
		})
	}
}
