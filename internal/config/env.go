package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - PUSHHAND_PROJECT_ID (string, UUID)
// - PUSHHAND_PUSH_ENDPOINT (string, URL)
// - PUSHHAND_SOUND (string, "default" or "" for null)
// - PUSHHAND_SEND_TIMEOUT (duration, e.g. "10s")
// - PUSHHAND_TOKEN_TIMEOUT (duration, e.g. "30s")
// - PUSHHAND_SHOW_ALERT / PUSHHAND_PLAY_SOUND / PUSHHAND_SET_BADGE (bool)
// - PUSHHAND_ANDROID_CHANNEL_POLICY (semver constraint, e.g. ">= 8.0.0")
// - PUSHHAND_FIREBASE_CREDENTIALS (path to service account JSON)
// - PUSHHAND_METRICS_ENABLED (bool, "true"/"false")
// - PUSHHAND_METRICS_PORT (int, e.g. 9090)
// - PUSHHAND_INFLUX_URL / _TOKEN / _ORG / _BUCKET (string)
// - PUSHHAND_INFLUX_INTERVAL (duration, e.g. "1m")
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyPushEnv(cfg); err != nil {
		return err
	}
	if err := applyPresentationEnv(cfg); err != nil {
		return err
	}
	if err := applyMetricsEnv(cfg); err != nil {
		return err
	}
	if err := applyInfluxEnv(cfg); err != nil {
		return err
	}
	return nil
}

func applyPushEnv(cfg *Config) error {
	if v := os.Getenv("PUSHHAND_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("PUSHHAND_PUSH_ENDPOINT"); v != "" {
		cfg.PushEndpoint = v
	}
	// an explicitly empty value is meaningful here (sound: null)
	if v, ok := os.LookupEnv("PUSHHAND_SOUND"); ok {
		cfg.Sound = v
	}
	if err := setDurationEnv("PUSHHAND_SEND_TIMEOUT", func(d time.Duration) { cfg.SendTimeout = d }); err != nil {
		return err
	}
	if err := setDurationEnv("PUSHHAND_TOKEN_TIMEOUT", func(d time.Duration) { cfg.TokenTimeout = d }); err != nil {
		return err
	}
	if v := os.Getenv("PUSHHAND_FIREBASE_CREDENTIALS"); v != "" {
		cfg.FirebaseCredentialsFile = v
	}
	return nil
}

func applyPresentationEnv(cfg *Config) error {
	if err := setBoolEnv("PUSHHAND_SHOW_ALERT", func(b bool) { cfg.Presentation.ShowAlert = b }); err != nil {
		return err
	}
	if err := setBoolEnv("PUSHHAND_PLAY_SOUND", func(b bool) { cfg.Presentation.PlaySound = b }); err != nil {
		return err
	}
	if err := setBoolEnv("PUSHHAND_SET_BADGE", func(b bool) { cfg.Presentation.SetBadge = b }); err != nil {
		return err
	}
	if v := os.Getenv("PUSHHAND_ANDROID_CHANNEL_POLICY"); v != "" {
		cfg.AndroidChannel.Policy = v
	}
	return nil
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

func setDurationEnv(env string, setter func(time.Duration)) error {
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}

// applyMetricsEnv consolidates metrics-related env parsing
func applyMetricsEnv(cfg *Config) error {
	if v := os.Getenv("PUSHHAND_METRICS_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "true":
			cfg.MetricsEnabled = true
		case "false":
			cfg.MetricsEnabled = false
		}
	}
	if v := os.Getenv("PUSHHAND_METRICS_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHHAND_METRICS_PORT: %w", err)
		}
		cfg.MetricsPort = p
	}
	return nil
}

// applyInfluxEnv consolidates Influx-related env parsing
func applyInfluxEnv(cfg *Config) error {
	if v := os.Getenv("PUSHHAND_INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := os.Getenv("PUSHHAND_INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := os.Getenv("PUSHHAND_INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := os.Getenv("PUSHHAND_INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
	return setDurationEnv("PUSHHAND_INFLUX_INTERVAL", func(d time.Duration) { cfg.InfluxInterval = d })
}
