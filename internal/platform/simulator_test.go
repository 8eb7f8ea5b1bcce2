package platform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func physical() SimulatorOptions {
	return SimulatorOptions{Device: DeviceInfo{IsPhysical: true, OS: "ios", OSVersion: "17.2"}, GrantOnRequest: true}
}

func TestRequestPermissionPromptsOnce(t *testing.T) {
	s := NewSimulator(physical())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		st, err := s.RequestPermission(ctx)
		if err != nil {
			t.Fatalf("RequestPermission: %v", err)
		}
		if st != StatusGranted {
			t.Fatalf("expected granted, got %s", st)
		}
	}
	if s.Prompts() != 1 {
		t.Fatalf("expected a single prompt, got %d", s.Prompts())
	}
	if s.Calls("RequestPermission") != 3 {
		t.Fatalf("expected 3 RequestPermission calls, got %d", s.Calls("RequestPermission"))
	}
}

func TestRequestPermissionDenied(t *testing.T) {
	opts := physical()
	opts.GrantOnRequest = false
	s := NewSimulator(opts)
	st, err := s.RequestPermission(context.Background())
	if err != nil || st != StatusDenied {
		t.Fatalf("expected denied, got %s %v", st, err)
	}
}

func TestPushTokenGeneratedAndStable(t *testing.T) {
	s := NewSimulator(physical())
	ctx := context.Background()
	a, err := s.PushToken(ctx, "proj")
	if err != nil {
		t.Fatalf("PushToken: %v", err)
	}
	if !strings.HasPrefix(a, "ExponentPushToken[") || !strings.HasSuffix(a, "]") {
		t.Fatalf("unexpected token shape: %s", a)
	}
	b, _ := s.PushToken(ctx, "proj")
	if a != b {
		t.Fatalf("expected stable token, got %s then %s", a, b)
	}
}

func TestPushTokenRefusedOnEmulator(t *testing.T) {
	s := NewSimulator(SimulatorOptions{Device: DeviceInfo{OS: "android", OSVersion: "14"}})
	if _, err := s.PushToken(context.Background(), "proj"); err == nil {
		t.Fatal("expected error on non-physical device")
	}
}

func TestScheduleDeliversImmediateRequests(t *testing.T) {
	s := NewSimulator(physical())
	fixed := time.Unix(1700000000, 0)
	s.Now = func() time.Time { return fixed }
	if _, err := s.RequestPermission(context.Background()); err != nil {
		t.Fatal(err)
	}
	var got []Notification
	sub := s.ListenReceived(func(n Notification) { got = append(got, n) })
	defer sub.Cancel()

	if err := s.Schedule(context.Background(), LocalRequest{Title: "T", Body: "B"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	later := fixed.Add(time.Hour)
	if err := s.Schedule(context.Background(), LocalRequest{Title: "later", At: &later}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the immediate request to be delivered, got %d", len(got))
	}
	if got[0].Source != "local" || got[0].Title != "T" || !got[0].ReceivedAt.Equal(fixed) || got[0].ID == "" {
		t.Fatalf("unexpected delivered notification: %+v", got[0])
	}
	if len(s.Scheduled()) != 2 {
		t.Fatalf("expected 2 scheduled requests, got %d", len(s.Scheduled()))
	}
}

func TestScheduleRejectedWithoutPermission(t *testing.T) {
	s := NewSimulator(physical())
	if err := s.Schedule(context.Background(), LocalRequest{Title: "T"}); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("expected ErrNotPermitted, got %v", err)
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	s := NewSimulator(physical())
	calls := 0
	sub := s.ListenReceived(func(Notification) { calls++ })
	other := s.ListenReceived(func(Notification) {})
	sub.Cancel()
	sub.Cancel()
	if !sub.IsCanceled() {
		t.Fatal("expected subscription to report canceled")
	}
	if n := s.Deliver(Notification{Title: "x"}); n != 1 {
		t.Fatalf("expected delivery to the remaining listener only, got %d", n)
	}
	if calls != 0 {
		t.Fatalf("canceled listener was invoked %d times", calls)
	}
	other.Cancel()
	if r, _ := s.Listeners(); r != 0 {
		t.Fatalf("expected no received listeners left, got %d", r)
	}
}

func TestCancelDuringDispatch(t *testing.T) {
	s := NewSimulator(physical())
	var second int
	var subB *Subscription
	subA := s.ListenReceived(func(Notification) { subB.Cancel() })
	subB = s.ListenReceived(func(Notification) { second++ })
	defer subA.Cancel()

	s.Deliver(Notification{Title: "x"})
	if second != 0 {
		t.Fatalf("listener canceled mid-dispatch should not fire, fired %d", second)
	}
}

func TestRespondDefaultsAction(t *testing.T) {
	s := NewSimulator(physical())
	var got Response
	sub := s.ListenResponses(func(r Response) { got = r })
	defer sub.Cancel()
	s.Respond(Notification{ID: "n1"}, "")
	if got.Action != DefaultAction || got.Notification.ID != "n1" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestNilSubscriptionCancel(t *testing.T) {
	var sub *Subscription
	sub.Cancel()
	if sub.IsCanceled() {
		t.Fatal("nil subscription should not report canceled")
	}
}

func TestParseImportance(t *testing.T) {
	for _, s := range []string{"min", "low", "default", "high", "max"} {
		if got := ParseImportance(s).String(); got != s {
			t.Fatalf("round trip of %q gave %q", s, got)
		}
	}
	if ParseImportance("loud") != ImportanceDefault {
		t.Fatal("expected unknown importance to map to default")
	}
}
