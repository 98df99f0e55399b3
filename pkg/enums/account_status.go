package enums

import "fmt"

// AccountStatus maps to the status enum in Postgres and tracks library-card approval.
type AccountStatus string

const (
	StatusPending  AccountStatus = "PENDING"
	StatusApproved AccountStatus = "APPROVED"
	StatusRejected AccountStatus = "REJECTED"
)

var validAccountStatuses = []AccountStatus{
	StatusPending,
	StatusApproved,
	StatusRejected,
}

// IsValid reports whether the value matches the canonical status enum.
func (s AccountStatus) IsValid() bool {
	for _, candidate := range validAccountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAccountStatus converts raw input into AccountStatus.
func ParseAccountStatus(value string) (AccountStatus, error) {
	for _, candidate := range validAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account status %q", value)
}
