package enums

import "fmt"

// TenantStatus tracks the lifecycle of a tenant account.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusPending   TenantStatus = "pending"
)

var validTenantStatuses = []TenantStatus{
	TenantStatusActive,
	TenantStatusSuspended,
	TenantStatusPending,
}

// String implements fmt.Stringer.
func (s TenantStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s TenantStatus) IsValid() bool {
	for _, candidate := range validTenantStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTenantStatus converts raw input into a TenantStatus.
func ParseTenantStatus(value string) (TenantStatus, error) {
	for _, candidate := range validTenantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tenant status %q", value)
}
