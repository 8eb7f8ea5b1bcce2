package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushhand/pushhand/internal/config"
	"github.com/pushhand/pushhand/internal/metrics"
	"github.com/pushhand/pushhand/internal/notify"
	"github.com/pushhand/pushhand/internal/platform"
	"github.com/pushhand/pushhand/internal/session"
)

// recorder is a stand-in for the push-delivery service.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, string(b))
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":{"status":"ok"}}`))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func loadConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pushhand.yaml")
	yaml := "push_endpoint: " + endpoint + "\nsend_timeout: 2s\ntoken_timeout: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	require.NoError(t, config.ApplyEnvOverrides(cfg))
	return cfg
}

func TestPushFlowGranted(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	cfg := loadConfig(t, srv.URL)
	opts, err := notify.OptionsFromConfig(cfg)
	require.NoError(t, err)

	sim := platform.NewSimulator(platform.SimulatorOptions{
		Device:         platform.DeviceInfo{IsPhysical: true, OS: "android", OSVersion: "13"},
		GrantOnRequest: true,
		PushToken:      "ExponentPushToken[abc123]",
	})
	client := notify.New(sim, opts)
	defer client.Close()

	before := metrics.GetSnapshot()

	sess := session.New(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess.Activate(ctx)
	defer sess.Deactivate()

	snap := sess.Snapshot()
	require.Equal(t, notify.PermissionGranted, snap.Permission)
	require.Equal(t, "ExponentPushToken[abc123]", snap.PushToken)

	ch, ok := sim.Channels()["default"]
	require.True(t, ok, "android channel declared before the token request")
	assert.Equal(t, platform.ImportanceMax, ch.Importance)
	assert.Equal(t, []int64{0, 250, 250, 250}, ch.Vibration)
	assert.Equal(t, "#FF231F7C", ch.LightColor)

	require.NoError(t, client.SendRemoteNotification(ctx, snap.PushToken, "Hello", "World", nil))
	require.Equal(t, 1, rec.count())
	assert.Equal(t,
		`{"to":"ExponentPushToken[abc123]","sound":"default","title":"Hello","body":"World","data":{"someData":"goes here"}}`,
		rec.bodies[0])
	assert.Equal(t, http.MethodPost, rec.requests[0].Method)
	assert.Equal(t, "application/json", rec.requests[0].Header.Get("Content-Type"))

	// the push arrives while foregrounded
	sim.Deliver(platform.Notification{Title: "Hello", Body: "World", Data: notify.DefaultData()})
	last := sess.Snapshot().Last
	require.NotNil(t, last)
	assert.Equal(t, "remote", last.Source)

	after := metrics.GetSnapshot()
	assert.Equal(t, before.RemoteSent+1, after.RemoteSent)
	assert.GreaterOrEqual(t, after.Notifications, before.Notifications+1)
}

func TestPushFlowDenied(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	cfg := loadConfig(t, srv.URL)
	opts, err := notify.OptionsFromConfig(cfg)
	require.NoError(t, err)

	sim := platform.NewSimulator(platform.SimulatorOptions{
		Device:         platform.DeviceInfo{IsPhysical: true, OS: "ios", OSVersion: "17.2"},
		GrantOnRequest: false,
	})
	client := notify.New(sim, opts)
	defer client.Close()

	sess := session.New(client)
	sess.Activate(context.Background())
	defer sess.Deactivate()

	snap := sess.Snapshot()
	assert.Equal(t, notify.PermissionDenied, snap.Permission)
	assert.Empty(t, snap.PushToken)
	assert.Zero(t, sim.Calls("PushToken"))

	require.ErrorIs(t, sess.SendTestNotification(context.Background()), session.ErrNoPushToken)
	assert.Zero(t, rec.count(), "no network call after a denied permission")
}
