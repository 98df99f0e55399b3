package enums

// EngagementState classifies a user by how recently they used the platform.
type EngagementState string

const (
	EngagementActive    EngagementState = "active"
	EngagementNonActive EngagementState = "non-active"
)

// IsValid reports whether the value is a recognized engagement state.
func (s EngagementState) IsValid() bool {
	return s == EngagementActive || s == EngagementNonActive
}
