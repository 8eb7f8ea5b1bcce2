package notify

import (
	"errors"
	"fmt"
)

// Kind categorizes a notification failure. Permission and device kinds are
// not returned by operations; they are reported by Client.LastTokenError.
type Kind int

const (
	// KindUnknown is the zero value.
	KindUnknown Kind = iota
	KindPermissionDenied
	KindNoPhysicalDevice
	// KindPlatformUnavailable covers the secondary messaging backend being unreachable or unconfigured.
	KindPlatformUnavailable
	KindNetworkFailure
	KindScheduleFailure
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNoPhysicalDevice:
		return "no_physical_device"
	case KindPlatformUnavailable:
		return "platform_unavailable"
	case KindNetworkFailure:
		return "network_failure"
	case KindScheduleFailure:
		return "schedule_failure"
	default:
		return "unknown"
	}
}

// Error is returned by the operations that report failures to the caller.
type Error struct {
	Op   string
	Kind Kind
	// Status is the HTTP status for network failures that got a response; 0 otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s [%s] status=%d: %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Kind == k
}

var (
	// ErrEmptyToken is returned when a remote send is attempted without a target token.
	ErrEmptyToken = errors.New("empty target token")
	// ErrNoSecondarySender is returned when no secondary messaging backend is configured.
	ErrNoSecondarySender = errors.New("secondary messaging is not configured")
	// ErrNoToken is wrapped by LastTokenError when no push token was issued.
	ErrNoToken = errors.New("no push token issued")
	// ErrUnexpectedStatus is wrapped by network failures that received a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
