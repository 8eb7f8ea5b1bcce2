package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pushhand/pushhand/internal/logging"
)

// StartInfluxPusher pushes the metrics snapshot to InfluxDB every interval until ctx is done.
func StartInfluxPusher(ctx context.Context, baseURL, token, org, bucket string, interval time.Duration) {
	if baseURL == "" || bucket == "" {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	logging.Get().Info().Str("url", baseURL).Dur("interval", interval).Msg("starting influxdb pusher")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	q := url.Values{"org": {org}, "bucket": {bucket}, "precision": {"s"}}
	writeURL := strings.TrimRight(baseURL, "/") + "/api/v2/write?" + q.Encode()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pushToInflux(ctx, client, writeURL, token, time.Now()); err != nil {
				logging.Get().Warn().Err(err).Msg("influxdb push failed")
			}
		}
	}
}

// lineProtocol renders a snapshot as a single InfluxDB line.
func lineProtocol(s StatsSnapshot, at time.Time) string {
	return fmt.Sprintf(
		"pushhand permission_granted=%di,permission_denied=%di,tokens_acquired=%di,tokens_absent=%di,local_scheduled=%di,local_failed=%di,remote_sent=%di,remote_failed=%di,active_listeners=%di %d",
		s.PermissionGranted, s.PermissionDenied, s.TokensAcquired, s.TokensAbsent,
		s.LocalScheduled, s.LocalFailed, s.RemoteSent, s.RemoteFailed, s.ActiveListeners, at.Unix(),
	)
}

func pushToInflux(ctx context.Context, client *http.Client, writeURL, token string, at time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, strings.NewReader(lineProtocol(GetSnapshot(), at)))
	if err != nil {
		return fmt.Errorf("influxdb request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("influxdb rejected metrics: status %d", resp.StatusCode)
	}
	return nil
}
