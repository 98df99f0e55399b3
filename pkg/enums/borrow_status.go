package enums

import "fmt"

// BorrowStatus maps to the borrow_status enum in Postgres.
type BorrowStatus string

const (
	BorrowStatusBorrowed   BorrowStatus = "BORROWED"
	BorrowStatusReturned   BorrowStatus = "RETURNED"
	BorrowStatusLateReturn BorrowStatus = "LATE_RETURN"
)

var validBorrowStatuses = []BorrowStatus{
	BorrowStatusBorrowed,
	BorrowStatusReturned,
	BorrowStatusLateReturn,
}

// IsValid reports whether the value matches the canonical borrow_status enum.
func (s BorrowStatus) IsValid() bool {
	for _, candidate := range validBorrowStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBorrowStatus converts raw input into BorrowStatus.
func ParseBorrowStatus(value string) (BorrowStatus, error) {
	for _, candidate := range validBorrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid borrow status %q", value)
}
