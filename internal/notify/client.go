package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushhand/pushhand/internal/config"
	"github.com/pushhand/pushhand/internal/logging"
	"github.com/pushhand/pushhand/internal/metrics"
	"github.com/pushhand/pushhand/internal/platform"
	"github.com/pushhand/pushhand/internal/semver"
)

// PermissionState is the client's view of notification permission.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionError   PermissionState = "error"
)

// DefaultData returns the payload attached to remote sends that carry none.
// Each call returns a fresh map.
func DefaultData() map[string]any {
	return map[string]any{"someData": "goes here"}
}

// Options configures a Client.
type Options struct {
	// ProjectID scopes issued push tokens.
	ProjectID    string
	Presentation platform.Presentation
	Channel      platform.Channel
	// ChannelPolicy selects the Android versions that get Channel declared; nil means all.
	ChannelPolicy *semver.Policy
	// TokenTimeout bounds permission and token calls; zero leaves them to the caller's context.
	TokenTimeout time.Duration
	Remote       Sender
	// Secondary is optional.
	Secondary Sender
}

// OptionsFromConfig maps configuration onto Options. The secondary sender is
// left for the caller since it needs credentials and a context.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := semver.NewPolicy(cfg.AndroidChannel.Policy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ProjectID: cfg.ProjectID,
		Presentation: platform.Presentation{
			ShowAlert:  cfg.Presentation.ShowAlert,
			PlaySound:  cfg.Presentation.PlaySound,
			SetBadge:   cfg.Presentation.SetBadge,
			ShowBanner: cfg.Presentation.ShowBanner,
			ShowList:   cfg.Presentation.ShowList,
		},
		Channel: platform.Channel{
			ID:         cfg.AndroidChannel.ID,
			Name:       cfg.AndroidChannel.Name,
			Importance: platform.ParseImportance(cfg.AndroidChannel.Importance),
			Vibration:  append([]int64(nil), cfg.AndroidChannel.Vibration...),
			LightColor: cfg.AndroidChannel.LightColor,
		},
		ChannelPolicy: policy,
		TokenTimeout:  cfg.TokenTimeout,
		Remote:        NewExpoSender(cfg.PushEndpoint, cfg.Sound, cfg.SendTimeout),
	}, nil
}

// Client mediates between the application, the platform's notification
// subsystem and the remote push backends. Create one per process.
type Client struct {
	host platform.Host
	opts Options

	mu             sync.Mutex
	state          PermissionState
	pushToken      string
	secondaryToken string
	tokenErr       error
	handles        map[*ListenerHandle]struct{}

	presentOnce sync.Once
	// channelMu serializes channel declaration; channelDone is set once it succeeded.
	channelMu   sync.Mutex
	channelDone bool
}

// New returns a Client bound to host. A nil Remote sender defaults to the
// public push endpoint with a 10s timeout.
func New(host platform.Host, opts Options) *Client {
	if opts.Remote == nil {
		opts.Remote = NewExpoSender(config.DefaultPushEndpoint, "default", 10*time.Second)
	}
	return &Client{
		host:    host,
		opts:    opts,
		state:   PermissionUnknown,
		handles: make(map[*ListenerHandle]struct{}),
	}
}

// State returns the current permission state.
func (c *Client) State() PermissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PushToken returns the last acquired push token, if any.
func (c *Client) PushToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushToken, c.pushToken != ""
}

// SecondaryToken returns the last acquired secondary messaging token, if any.
func (c *Client) SecondaryToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secondaryToken, c.secondaryToken != ""
}

// LastTokenError explains why the last AcquirePushToken returned no token:
// KindPermissionDenied, KindNoPhysicalDevice or KindPlatformUnavailable. It is
// nil after a successful acquisition or before the first attempt.
func (c *Client) LastTokenError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenErr
}

func (c *Client) setTokenErr(kind Kind, err error) {
	c.mu.Lock()
	c.tokenErr = &Error{Op: "notify.push_token", Kind: kind, Err: err}
	c.mu.Unlock()
}

func (c *Client) setState(s PermissionState) {
	c.mu.Lock()
	c.state = s
	if s != PermissionGranted {
		c.pushToken = ""
	}
	c.mu.Unlock()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.TokenTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.TokenTimeout)
	}
	return context.WithCancel(ctx)
}

// RequestPermission asks for notification permission unless it is already
// granted. The current status is checked first so a user who already allowed
// notifications is never prompted again. Failures are never returned: the
// caller gets PermissionDenied while State reports PermissionError.
func (c *Client) RequestPermission(ctx context.Context) PermissionState {
	if c.State() == PermissionGranted {
		return PermissionGranted
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := c.host.PermissionStatus(ctx)
	if err == nil && status != platform.StatusGranted {
		status, err = c.host.RequestPermission(ctx)
	}
	if err != nil {
		logging.Get().Warn().Err(err).Msg("notification permission request failed")
		c.setState(PermissionError)
		metrics.IncPermission(string(PermissionError))
		return PermissionDenied
	}

	state := PermissionDenied
	if status == platform.StatusGranted {
		state = PermissionGranted
	} else {
		logging.Get().Info().Str("status", string(status)).Msg("notification permission not granted")
	}
	c.setState(state)
	metrics.IncPermission(string(state))
	return state
}

// AcquirePushToken fetches the device push token. It returns ("", false)
// without touching the platform unless permission is granted, and on
// non-physical devices. A permission revoked in system settings is noticed
// here and moves the state to denied.
func (c *Client) AcquirePushToken(ctx context.Context) (string, bool) {
	if st := c.State(); st != PermissionGranted {
		c.setTokenErr(KindPermissionDenied, fmt.Errorf("%w: permission %s", ErrNoToken, st))
		metrics.IncTokenAbsent("push")
		return "", false
	}
	dev := c.host.Device()
	if !dev.IsPhysical {
		logging.Get().Info().Str("os", dev.OS).Msg("must use physical device for push notifications")
		c.setTokenErr(KindNoPhysicalDevice, ErrNoToken)
		metrics.IncTokenAbsent("push")
		return "", false
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := c.host.PermissionStatus(ctx)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("failed to re-check notification permission")
		c.setTokenErr(KindPlatformUnavailable, err)
		metrics.IncTokenAbsent("push")
		return "", false
	}
	if status != platform.StatusGranted {
		logging.Get().Info().Str("status", string(status)).Msg("notification permission revoked")
		c.setState(PermissionDenied)
		c.setTokenErr(KindPermissionDenied, fmt.Errorf("%w: permission %s", ErrNoToken, status))
		metrics.IncTokenAbsent("push")
		return "", false
	}

	c.ensureChannel(ctx, dev)

	token, err := c.host.PushToken(ctx, c.opts.ProjectID)
	if err != nil || token == "" {
		logging.Get().Warn().Err(err).Str("project_id", c.opts.ProjectID).Msg("failed to get push token")
		if err == nil {
			err = ErrNoToken
		}
		c.setTokenErr(KindPlatformUnavailable, err)
		metrics.IncTokenAbsent("push")
		return "", false
	}
	c.mu.Lock()
	c.pushToken = token
	c.tokenErr = nil
	c.mu.Unlock()
	metrics.IncTokenAcquired("push")
	logging.Get().Debug().Str("project_id", c.opts.ProjectID).Msg("push token acquired")
	return token, true
}

// ensureChannel declares the default Android channel on versions the policy
// allows. A failed declaration is attempted again on the next acquisition.
func (c *Client) ensureChannel(ctx context.Context, dev platform.DeviceInfo) {
	if dev.OS != "android" || c.opts.Channel.ID == "" {
		return
	}
	c.channelMu.Lock()
	defer c.channelMu.Unlock()
	if c.channelDone {
		return
	}
	ok, err := c.opts.ChannelPolicy.Allows(dev.OSVersion)
	if err != nil {
		logging.Get().Warn().Err(err).Str("os_version", dev.OSVersion).Msg("cannot evaluate channel policy")
		return
	}
	if !ok {
		logging.Get().Debug().Str("os_version", dev.OSVersion).Str("policy", c.opts.ChannelPolicy.String()).Msg("skipping notification channel")
		c.channelDone = true
		return
	}
	if err := c.host.SetNotificationChannel(ctx, c.opts.Channel); err != nil {
		logging.Get().Warn().Err(err).Str("channel", c.opts.Channel.ID).Msg("failed to declare notification channel")
		return
	}
	c.channelDone = true
}

// AcquireSecondaryToken fetches the secondary messaging token. Any failure
// yields ("", false).
func (c *Client) AcquireSecondaryToken(ctx context.Context) (string, bool) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	token, err := c.host.DeviceToken(ctx)
	if err != nil || token == "" {
		logging.Get().Warn().Err(err).Msg("secondary messaging token unavailable")
		metrics.IncTokenAbsent("secondary")
		return "", false
	}
	c.mu.Lock()
	c.secondaryToken = token
	c.mu.Unlock()
	metrics.IncTokenAcquired("secondary")
	return token, true
}

// ConfigureForegroundPresentation declares how notifications are presented
// while the app is active. Only the first call has an effect.
func (c *Client) ConfigureForegroundPresentation() {
	c.presentOnce.Do(func() {
		c.host.SetPresentation(c.opts.Presentation)
	})
}

// ScheduleLocalNotification presents a notification immediately through the
// local notification center. Rejections are returned, not retried.
func (c *Client) ScheduleLocalNotification(ctx context.Context, title, body string) error {
	req := platform.LocalRequest{ID: uuid.NewString(), Title: title, Body: body}
	if err := c.host.Schedule(ctx, req); err != nil {
		metrics.IncLocalFailed()
		return &Error{Op: "notify.schedule", Kind: KindScheduleFailure, Err: err}
	}
	metrics.IncLocalScheduled()
	return nil
}

// SendRemoteNotification sends one push to token through the primary
// backend. A nil data map is replaced by DefaultData().
func (c *Client) SendRemoteNotification(ctx context.Context, token, title, body string, data map[string]any) error {
	return c.send(ctx, c.opts.Remote, token, title, body, data)
}

// SendSecondaryNotification sends one push to a secondary messaging token.
func (c *Client) SendSecondaryNotification(ctx context.Context, token, title, body string, data map[string]any) error {
	if c.opts.Secondary == nil {
		return &Error{Op: "notify.send", Kind: KindPlatformUnavailable, Err: ErrNoSecondarySender}
	}
	return c.send(ctx, c.opts.Secondary, token, title, body, data)
}

func (c *Client) send(ctx context.Context, s Sender, token, title, body string, data map[string]any) error {
	if token == "" {
		return &Error{Op: s.Name() + ".send", Kind: KindNetworkFailure, Err: ErrEmptyToken}
	}
	if data == nil {
		data = DefaultData()
	}
	start := time.Now()
	err := s.Send(ctx, Message{To: token, Title: title, Body: body, Data: data})
	metrics.ObserveSendDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.IncRemoteFailed(s.Name())
		logging.Get().Warn().Err(err).Str("backend", s.Name()).Msg("remote notification failed")
		return err
	}
	metrics.IncRemoteSent(s.Name())
	metrics.SetLastSend(time.Now())
	logging.Get().Debug().Str("backend", s.Name()).Msg("remote notification sent")
	return nil
}
