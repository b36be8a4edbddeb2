package enums

import "fmt"

// PackStatus tracks the publish lifecycle of a sample pack.
type PackStatus string

const (
	PackStatusDraft     PackStatus = "draft"
	PackStatusPublished PackStatus = "published"
	PackStatusArchived  PackStatus = "archived"
)

var validPackStatuses = []PackStatus{
	PackStatusDraft,
	PackStatusPublished,
	PackStatusArchived,
}

// String implements fmt.Stringer.
func (s PackStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PackStatus.
func (s PackStatus) IsValid() bool {
	for _, candidate := range validPackStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePackStatus converts raw input into a PackStatus.
func ParsePackStatus(value string) (PackStatus, error) {
	for _, candidate := range validPackStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pack status %q", value)
}
