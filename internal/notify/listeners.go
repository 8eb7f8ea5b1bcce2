package notify

import (
	"sync/atomic"

	"github.com/pushhand/pushhand/internal/metrics"
	"github.com/pushhand/pushhand/internal/platform"
)

// NotificationEvent is a notification received while the app is foregrounded.
type NotificationEvent = platform.Notification

// NotificationResponse is a user interaction with a notification.
type NotificationResponse = platform.Response

// ListenerKind tells received listeners from interaction listeners.
type ListenerKind int

const (
	ReceivedListener ListenerKind = iota
	InteractionListener
)

func (k ListenerKind) String() string {
	if k == InteractionListener {
		return "interaction"
	}
	return "received"
}

// ListenerHandle is the subscription returned by the Add*Listener methods.
// It must be passed to RemoveListener; releasing it twice is harmless.
type ListenerHandle struct {
	kind     ListenerKind
	sub      *platform.Subscription
	released atomic.Bool
}

// Kind returns the event kind the handle listens to.
func (h *ListenerHandle) Kind() ListenerKind { return h.kind }

// Released reports whether the handle has been released.
func (h *ListenerHandle) Released() bool { return h.released.Load() }

// AddReceivedListener registers fn for notifications arriving while the app
// is foregrounded. A nil fn registers nothing and yields a released handle.
func (c *Client) AddReceivedListener(fn func(NotificationEvent)) *ListenerHandle {
	if fn == nil {
		return releasedHandle(ReceivedListener)
	}
	sub := c.host.ListenReceived(func(n platform.Notification) {
		metrics.IncNotificationCallback()
		fn(n)
	})
	return c.track(ReceivedListener, sub)
}

// AddInteractionListener registers fn for user interactions with notifications.
// A nil fn registers nothing and yields a released handle.
func (c *Client) AddInteractionListener(fn func(NotificationResponse)) *ListenerHandle {
	if fn == nil {
		return releasedHandle(InteractionListener)
	}
	sub := c.host.ListenResponses(func(r platform.Response) {
		metrics.IncInteractionCallback()
		fn(r)
	})
	return c.track(InteractionListener, sub)
}

func releasedHandle(kind ListenerKind) *ListenerHandle {
	h := &ListenerHandle{kind: kind}
	h.released.Store(true)
	return h
}

func (c *Client) track(kind ListenerKind, sub *platform.Subscription) *ListenerHandle {
	h := &ListenerHandle{kind: kind, sub: sub}
	c.mu.Lock()
	c.handles[h] = struct{}{}
	c.mu.Unlock()
	metrics.AddActiveListeners(1)
	return h
}

// RemoveListener releases h. Nil and already released handles are ignored.
func (c *Client) RemoveListener(h *ListenerHandle) {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.sub.Cancel()
	c.mu.Lock()
	delete(c.handles, h)
	c.mu.Unlock()
	metrics.AddActiveListeners(-1)
}

// ActiveListeners returns the number of handles not yet released.
func (c *Client) ActiveListeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Close releases every handle still registered through the client.
func (c *Client) Close() {
	c.mu.Lock()
	pending := make([]*ListenerHandle, 0, len(c.handles))
	for h := range c.handles {
		pending = append(pending, h)
	}
	c.mu.Unlock()
	for _, h := range pending {
		c.RemoveListener(h)
	}
}
