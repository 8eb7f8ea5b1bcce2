package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotPermitted is returned by the simulated notification center when
// notifications are not allowed.
var ErrNotPermitted = errors.New("notifications are not permitted")

// SimulatorOptions configures a Simulator.
type SimulatorOptions struct {
	Device DeviceInfo
	// Initial permission status; empty means undetermined.
	Status PermissionStatus
	// GrantOnRequest is the user's answer to the permission prompt.
	GrantOnRequest bool
	// Fixed tokens; generated on first request when empty.
	PushToken   string
	DeviceToken string
}

// Simulator is an in-process Host. It stands in for a device in the CLI and
// in tests and counts every platform call it receives.
type Simulator struct {
	mu             sync.Mutex
	device         DeviceInfo
	status         PermissionStatus
	grantOnRequest bool
	pushToken      string
	deviceToken    string

	permissionErr  error
	pushTokenErr   error
	deviceTokenErr error
	scheduleErr    error
	channelErr     error

	presentation *Presentation
	channels     map[string]Channel
	scheduled    []LocalRequest
	calls        map[string]int
	prompts      int

	received  stream[Notification]
	responses stream[Response]

	// Now is the clock used for event timestamps.
	Now func() time.Time
}

var _ Host = (*Simulator)(nil)

// NewSimulator returns a simulated host.
func NewSimulator(opts SimulatorOptions) *Simulator {
	status := opts.Status
	if status == "" {
		status = StatusUndetermined
	}
	return &Simulator{
		device:         opts.Device,
		status:         status,
		grantOnRequest: opts.GrantOnRequest,
		pushToken:      opts.PushToken,
		deviceToken:    opts.DeviceToken,
		channels:       make(map[string]Channel),
		calls:          make(map[string]int),
		Now:            time.Now,
	}
}

func (s *Simulator) record(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

// Calls returns how many times a Host method was invoked.
func (s *Simulator) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Prompts returns how many times the user was actually shown the permission prompt.
func (s *Simulator) Prompts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts
}

// TotalCalls returns the number of Host calls of any kind, excluding Device.
func (s *Simulator) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Device returns the simulated device facts.
func (s *Simulator) Device() DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// PermissionStatus implements Permissions.
func (s *Simulator) PermissionStatus(ctx context.Context) (PermissionStatus, error) {
	s.record("PermissionStatus")
	if err := ctx.Err(); err != nil {
		return StatusUndetermined, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permissionErr != nil {
		return StatusUndetermined, s.permissionErr
	}
	return s.status, nil
}

// RequestPermission implements Permissions. An already granted permission
// returns without prompting.
func (s *Simulator) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	s.record("RequestPermission")
	if err := ctx.Err(); err != nil {
		return StatusUndetermined, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permissionErr != nil {
		return StatusUndetermined, s.permissionErr
	}
	if s.status == StatusGranted {
		return s.status, nil
	}
	s.prompts++
	if s.grantOnRequest {
		s.status = StatusGranted
	} else {
		s.status = StatusDenied
	}
	return s.status, nil
}

// PushToken implements Tokens.
func (s *Simulator) PushToken(ctx context.Context, projectID string) (string, error) {
	s.record("PushToken")
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if projectID == "" {
		return "", errors.New("project id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushTokenErr != nil {
		return "", s.pushTokenErr
	}
	if !s.device.IsPhysical {
		return "", errors.New("push tokens are only issued on physical devices")
	}
	if s.pushToken == "" {
		s.pushToken = fmt.Sprintf("ExponentPushToken[%s]", strings.ReplaceAll(uuid.NewString(), "-", "")[:22])
	}
	return s.pushToken, nil
}

// DeviceToken implements Tokens.
func (s *Simulator) DeviceToken(ctx context.Context) (string, error) {
	s.record("DeviceToken")
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceTokenErr != nil {
		return "", s.deviceTokenErr
	}
	if s.deviceToken == "" {
		s.deviceToken = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	}
	return s.deviceToken, nil
}

// Schedule implements Scheduler. Immediate requests are delivered to the
// received listeners right away, as a foregrounded app would see them.
func (s *Simulator) Schedule(ctx context.Context, req LocalRequest) error {
	s.record("Schedule")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.scheduleErr != nil {
		err := s.scheduleErr
		s.mu.Unlock()
		return err
	}
	if s.status != StatusGranted {
		s.mu.Unlock()
		return ErrNotPermitted
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	s.scheduled = append(s.scheduled, req)
	s.mu.Unlock()

	if req.At == nil {
		s.received.dispatch(Notification{
			ID:         req.ID,
			Title:      req.Title,
			Body:       req.Body,
			Data:       req.Data,
			ReceivedAt: s.Now(),
			Source:     "local",
		})
	}
	return nil
}

// SetPresentation records the foreground presentation options.
func (s *Simulator) SetPresentation(p Presentation) {
	s.record("SetPresentation")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presentation = &p
}

// SetNotificationChannel records an Android channel declaration.
func (s *Simulator) SetNotificationChannel(ctx context.Context, ch Channel) error {
	s.record("SetNotificationChannel")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelErr != nil {
		return s.channelErr
	}
	s.channels[ch.ID] = ch
	return nil
}

// ListenReceived implements Events.
func (s *Simulator) ListenReceived(handler func(Notification)) *Subscription {
	return s.received.listen(handler)
}

// ListenResponses implements Events.
func (s *Simulator) ListenResponses(handler func(Response)) *Subscription {
	return s.responses.listen(handler)
}

// Deliver simulates a remote notification arriving while foregrounded and
// returns how many listeners saw it.
func (s *Simulator) Deliver(n Notification) int {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = s.Now()
	}
	if n.Source == "" {
		n.Source = "remote"
	}
	return s.received.dispatch(n)
}

// Respond simulates the user tapping a notification.
func (s *Simulator) Respond(n Notification, action string) int {
	if action == "" {
		action = DefaultAction
	}
	return s.responses.dispatch(Response{Notification: n, Action: action, RespondedAt: s.Now()})
}

// Revoke simulates the user turning notifications off in system settings.
func (s *Simulator) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusDenied
}

// SetPermissionError makes permission calls fail with err (nil clears it).
func (s *Simulator) SetPermissionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionErr = err
}

// SetPushTokenError makes PushToken fail with err (nil clears it).
func (s *Simulator) SetPushTokenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushTokenErr = err
}

// SetDeviceTokenError makes DeviceToken fail with err (nil clears it).
func (s *Simulator) SetDeviceTokenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceTokenErr = err
}

// SetScheduleError makes Schedule fail with err (nil clears it).
func (s *Simulator) SetScheduleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleErr = err
}

// SetChannelError makes SetNotificationChannel fail with err (nil clears it).
func (s *Simulator) SetChannelError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelErr = err
}

// Presentation returns the last presentation options set, if any.
func (s *Simulator) Presentation() (Presentation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presentation == nil {
		return Presentation{}, false
	}
	return *s.presentation, true
}

// Channels returns the declared channels keyed by ID.
func (s *Simulator) Channels() map[string]Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Channel, len(s.channels))
	for k, v := range s.channels {
		out[k] = v
	}
	return out
}

// Scheduled returns every accepted local request.
func (s *Simulator) Scheduled() []LocalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LocalRequest(nil), s.scheduled...)
}

// Listeners returns the number of live received and response subscriptions.
func (s *Simulator) Listeners() (received, responses int) {
	return s.received.count(), s.responses.count()
}
