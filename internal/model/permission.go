package model

// PermissionStatus is the tri-state value gating all platform-backed record access.
// The wire values match what the platform reports for its sharing authorization.
type PermissionStatus string

const (
	PermissionNotDetermined PermissionStatus = "notDetermined"
	PermissionDenied        PermissionStatus = "denied"
	PermissionAuthorized    PermissionStatus = "authorized"
)

func (s PermissionStatus) Valid() bool {
	switch s {
	case PermissionNotDetermined, PermissionDenied, PermissionAuthorized:
		return true
	}
	return false
}

func (s PermissionStatus) String() string {
	return string(s)
}

// ParsePermissionStatus returns the status for a stored value,
// falling back to notDetermined for anything unknown.
func ParsePermissionStatus(s string) PermissionStatus {
	status := PermissionStatus(s)
	if !status.Valid() {
		return PermissionNotDetermined
	}
	return status
}
