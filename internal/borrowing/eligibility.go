package borrowing

import (
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// Policy carries the lending rules the evaluator enforces.
type Policy struct {
	MaxConcurrentLoans int
}

// Decision is the evaluator's verdict. Reason is human-readable and safe to
// surface to the member when Eligible is false.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

const (
	reasonNoCopies      = "no copies available"
	reasonLoanLimit     = "maximum concurrent loans reached"
	reasonNotApproved   = "library card is not approved"
	reasonRestricted    = "account restricted until outstanding fines are settled"
	reasonMissingInputs = "borrowing context unavailable"
)

// Evaluate decides whether a member may borrow the given title. It is a pure
// function of its inputs: the detail endpoint uses it for UI gating and the
// borrow orchestrator re-runs it inside the transaction for enforcement.
func Evaluate(user *models.User, book *models.Book, openLoans int, policy Policy) Decision {
	if user == nil || book == nil {
		return Decision{Reason: reasonMissingInputs}
	}

	if book.AvailableCopies <= 0 {
		return Decision{Reason: reasonNoCopies}
	}
	if policy.MaxConcurrentLoans > 0 && openLoans >= policy.MaxConcurrentLoans {
		return Decision{Reason: reasonLoanLimit}
	}
	if user.Status != enums.StatusApproved {
		return Decision{Reason: reasonNotApproved}
	}
	if user.IsRestricted || user.FinesDue.IsPositive() {
		return Decision{Reason: reasonRestricted}
	}

	return Decision{Eligible: true}
}
