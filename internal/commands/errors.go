package commands

// ErrorKind classifies user-facing command failures.
type ErrorKind int

const (
	KindBadUsage ErrorKind = iota
	KindUnknownCommand
	KindTargetNotFound
	KindTargetOffline
	KindNoLocation
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadUsage:
		return "bad_usage"
	case KindUnknownCommand:
		return "unknown_command"
	case KindTargetNotFound:
		return "target_not_found"
	case KindTargetOffline:
		return "target_offline"
	case KindNoLocation:
		return "no_location"
	default:
		return "unknown"
	}
}

// UserError represents an error that should be displayed to the user.
// These are not system failures - just invalid input or usage.
type UserError struct {
	Kind    ErrorKind
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// NewUserError creates a user-facing usage error.
func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}
