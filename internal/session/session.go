package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pushhand/pushhand/internal/logging"
	"github.com/pushhand/pushhand/internal/notify"
)

const (
	TestTitle = "Test Notification"
	TestBody  = "This is a test notification from your app!"
)

// ErrNoPushToken is returned by SendTestNotification when no push token is held.
var ErrNoPushToken = errors.New("no push token available, check notification permissions")

// Client is the subset of *notify.Client a Session drives.
type Client interface {
	ConfigureForegroundPresentation()
	RequestPermission(ctx context.Context) notify.PermissionState
	State() notify.PermissionState
	AcquirePushToken(ctx context.Context) (string, bool)
	AcquireSecondaryToken(ctx context.Context) (string, bool)
	LastTokenError() error
	AddReceivedListener(fn func(notify.NotificationEvent)) *notify.ListenerHandle
	AddInteractionListener(fn func(notify.NotificationResponse)) *notify.ListenerHandle
	RemoveListener(h *notify.ListenerHandle)
	ScheduleLocalNotification(ctx context.Context, title, body string) error
	SendRemoteNotification(ctx context.Context, token, title, body string, data map[string]any) error
}

var _ Client = (*notify.Client)(nil)

// Snapshot is the render state of a session. TokenError says why no push
// token was issued after a grant.
type Snapshot struct {
	Permission     notify.PermissionState
	PushToken      string
	SecondaryToken string
	TokenError     error
	Last           *notify.NotificationEvent
	Active         bool
	ActivatedAt    time.Time
}

// Session is the lifecycle of one notification-consuming screen: it sets up
// permission and tokens on activation and owns the listener pair it registers.
type Session struct {
	client Client
	Now    func() time.Time // injectable clock for testing

	mu             sync.Mutex
	active         bool
	activatedAt    time.Time
	permission     notify.PermissionState
	pushToken      string
	secondaryToken string
	tokenErr       error
	last           *notify.NotificationEvent
	received       *notify.ListenerHandle
	interaction    *notify.ListenerHandle
}

// New returns an inactive session over client.
func New(client Client) *Session {
	return &Session{client: client, Now: time.Now, permission: notify.PermissionUnknown}
}

// Activate runs the setup sequence and registers the listener pair. Calling
// it on an active session does nothing.
func (s *Session) Activate(ctx context.Context) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.activatedAt = s.Now()
	// listeners go in first so nothing delivered during setup is missed
	s.received = s.client.AddReceivedListener(s.onReceived)
	s.interaction = s.client.AddInteractionListener(s.onInteraction)
	s.mu.Unlock()

	s.client.ConfigureForegroundPresentation()
	perm := s.client.RequestPermission(ctx)
	// a failed request reports denied to the caller but error in State
	if st := s.client.State(); st == notify.PermissionError {
		perm = st
	}

	var push, secondary string
	var tokenErr error
	if perm == notify.PermissionGranted {
		var ok bool
		if push, ok = s.client.AcquirePushToken(ctx); !ok {
			tokenErr = s.client.LastTokenError()
		}
		secondary, _ = s.client.AcquireSecondaryToken(ctx)
	}

	s.mu.Lock()
	s.permission = perm
	s.pushToken = push
	s.secondaryToken = secondary
	s.tokenErr = tokenErr
	s.mu.Unlock()

	logging.For("session").Info().
		Str("permission", string(perm)).
		Bool("push_token", push != "").
		Bool("secondary_token", secondary != "").
		AnErr("token_error", tokenErr).
		Msg("notification session active")
}

// Deactivate releases the listener pair. Repeated calls are no-ops.
func (s *Session) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	received, interaction := s.received, s.interaction
	s.active = false
	s.received, s.interaction = nil, nil
	s.mu.Unlock()

	s.client.RemoveListener(received)
	s.client.RemoveListener(interaction)
	logging.For("session").Info().Msg("notification session inactive")
}

func (s *Session) onReceived(n notify.NotificationEvent) {
	s.mu.Lock()
	s.last = &n
	s.mu.Unlock()
	logging.For("session").Info().Str("id", n.ID).Str("title", n.Title).Str("source", n.Source).Msg("notification received")
}

func (s *Session) onInteraction(r notify.NotificationResponse) {
	logging.For("session").Info().Str("id", r.Notification.ID).Str("action", r.Action).Msg("notification response")
}

// Snapshot returns a copy of the current render state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Permission:     s.permission,
		PushToken:      s.pushToken,
		SecondaryToken: s.secondaryToken,
		TokenError:     s.tokenErr,
		Active:         s.active,
		ActivatedAt:    s.activatedAt,
	}
	if s.last != nil {
		last := *s.last
		snap.Last = &last
	}
	return snap
}

// SendTestNotification sends a remote push to the session's own token.
func (s *Session) SendTestNotification(ctx context.Context) error {
	s.mu.Lock()
	token := s.pushToken
	s.mu.Unlock()
	if token == "" {
		return ErrNoPushToken
	}
	return s.client.SendRemoteNotification(ctx, token, TestTitle, TestBody, nil)
}

// SendLocalTest presents the test notification locally.
func (s *Session) SendLocalTest(ctx context.Context) error {
	return s.client.ScheduleLocalNotification(ctx, TestTitle, TestBody)
}
