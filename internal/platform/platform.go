// Package platform describes the operating environment the notification
// client runs on: the permission prompt, device facts, token issuance, the
// local notification center and its event streams.
package platform

import (
	"context"
	"time"
)

// PermissionStatus is the notification permission as reported by the OS.
type PermissionStatus string

const (
	StatusGranted      PermissionStatus = "granted"
	StatusDenied       PermissionStatus = "denied"
	StatusUndetermined PermissionStatus = "undetermined"
)

// DeviceInfo describes the device the app is installed on.
type DeviceInfo struct {
	// IsPhysical is false on simulators and emulators, which never receive push tokens.
	IsPhysical bool
	// OS is "ios" or "android".
	OS        string
	OSVersion string
}

// Notification is a notification delivered to the app.
type Notification struct {
	ID         string
	Title      string
	Body       string
	Data       map[string]any
	ReceivedAt time.Time
	// Source is "local" or "remote".
	Source string
}

// DefaultAction is the action identifier for a plain tap on a notification.
const DefaultAction = "default"

// Response is a user interaction with a delivered notification.
type Response struct {
	Notification Notification
	Action       string
	RespondedAt  time.Time
}

// LocalRequest asks the notification center to present a notification.
type LocalRequest struct {
	ID    string
	Title string
	Body  string
	Data  map[string]any
	// At delays presentation; nil presents immediately.
	At *time.Time
}

// Presentation declares how notifications are shown while the app is in the foreground.
type Presentation struct {
	ShowAlert  bool
	PlaySound  bool
	SetBadge   bool
	ShowBanner bool
	ShowList   bool
}

// Importance is an Android notification channel importance level.
type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceMin
	ImportanceLow
	ImportanceHigh
	ImportanceMax
)

// ParseImportance maps a config value to an Importance. Unknown values map to ImportanceDefault.
func ParseImportance(s string) Importance {
	switch s {
	case "min":
		return ImportanceMin
	case "low":
		return ImportanceLow
	case "high":
		return ImportanceHigh
	case "max":
		return ImportanceMax
	default:
		return ImportanceDefault
	}
}

func (i Importance) String() string {
	switch i {
	case ImportanceMin:
		return "min"
	case ImportanceLow:
		return "low"
	case ImportanceHigh:
		return "high"
	case ImportanceMax:
		return "max"
	default:
		return "default"
	}
}

// Channel is an Android notification channel.
type Channel struct {
	ID         string
	Name       string
	Importance Importance
	// Vibration pattern in milliseconds.
	Vibration  []int64
	LightColor string
}

// Permissions checks and prompts for notification permission.
type Permissions interface {
	// PermissionStatus returns the current status without prompting.
	PermissionStatus(ctx context.Context) (PermissionStatus, error)
	// RequestPermission prompts the user and blocks until they answer or ctx is done.
	RequestPermission(ctx context.Context) (PermissionStatus, error)
}

// Tokens issues push identifiers.
type Tokens interface {
	// PushToken returns the push-delivery service token scoped to projectID.
	PushToken(ctx context.Context, projectID string) (string, error)
	// DeviceToken returns the secondary messaging platform registration token.
	DeviceToken(ctx context.Context) (string, error)
}

// Scheduler hands requests to the local notification center.
type Scheduler interface {
	Schedule(ctx context.Context, req LocalRequest) error
}

// Events exposes notification streams. Every listener receives every event.
type Events interface {
	ListenReceived(handler func(Notification)) *Subscription
	ListenResponses(handler func(Response)) *Subscription
}

// Host is the full operating environment contract.
type Host interface {
	Permissions
	Tokens
	Scheduler
	Events

	Device() DeviceInfo
	SetPresentation(p Presentation)
	SetNotificationChannel(ctx context.Context, ch Channel) error
}
