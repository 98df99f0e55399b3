package engagement

import (
	"time"

	"github.com/bookhaven/bookhaven-backend/internal/activity"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

const (
	// activeWithinDays is the recency window: anyone seen in the last three
	// days counts as active.
	activeWithinDays = 3
	// dormantAfterDays bounds the re-engagement window. Members idle for
	// thirty days or more have churned past the nudge window and are left
	// alone, so they classify as active here.
	dormantAfterDays = 30
)

// Classify buckets a member by the gap between their last recorded activity
// day and now, both on UTC calendar days. Non-active means strictly inside
// the (3d, 30d) window; everything else is active. A member with no recorded
// activity is non-active.
func Classify(lastActivity *time.Time, now time.Time) enums.EngagementState {
	if lastActivity == nil {
		return enums.EngagementNonActive
	}

	gap := int(activity.Day(now).Sub(activity.Day(*lastActivity)).Hours() / 24)
	if gap > activeWithinDays && gap < dormantAfterDays {
		return enums.EngagementNonActive
	}
	return enums.EngagementActive
}
