package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultProjectID is the project the push tokens are scoped to when nothing else is configured.
const DefaultProjectID = "7ba05442-2282-4e0a-9d15-415635a2fa8e"

// DefaultPushEndpoint is the push-delivery service send endpoint.
const DefaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

// Presentation declares how notifications are shown while the app is in the foreground.
type Presentation struct {
	ShowAlert  bool `json:"show_alert" yaml:"show_alert"`
	PlaySound  bool `json:"play_sound" yaml:"play_sound"`
	SetBadge   bool `json:"set_badge" yaml:"set_badge"`
	ShowBanner bool `json:"show_banner" yaml:"show_banner"`
	ShowList   bool `json:"show_list" yaml:"show_list"`
}

// AndroidChannel is the notification channel declared on Android hosts before requesting a token.
type AndroidChannel struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Importance string  `json:"importance" yaml:"importance"` // "min", "low", "default", "high", "max"
	Vibration  []int64 `json:"vibration" yaml:"vibration"`
	LightColor string  `json:"light_color" yaml:"light_color"`
	// Policy is a semver constraint on the Android OS version; channels only exist from 8.0 on.
	Policy string `json:"policy" yaml:"policy"`
}

// Config holds runtime configuration for pushhand
type Config struct {
	ProjectID    string `json:"project_id" yaml:"project_id"`
	PushEndpoint string `json:"push_endpoint" yaml:"push_endpoint"`
	// Sound sent in remote push envelopes; empty sends null.
	Sound string `json:"sound" yaml:"sound"`

	// SendTimeout bounds the single remote push POST.
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout"`
	// TokenTimeout bounds permission prompts and token acquisition.
	TokenTimeout time.Duration `json:"token_timeout" yaml:"token_timeout"`

	Presentation   Presentation   `json:"presentation" yaml:"presentation"`
	AndroidChannel AndroidChannel `json:"android_channel" yaml:"android_channel"`

	// Secondary messaging (FCM). Disabled when empty.
	FirebaseCredentialsFile string `json:"firebase_credentials_file" yaml:"firebase_credentials_file"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		ProjectID:    DefaultProjectID,
		PushEndpoint: DefaultPushEndpoint,
		Sound:        "default",
		SendTimeout:  10 * time.Second,
		TokenTimeout: 30 * time.Second,
		Presentation: Presentation{
			ShowAlert:  true,
			PlaySound:  true,
			SetBadge:   true,
			ShowBanner: true,
			ShowList:   true,
		},
		AndroidChannel: AndroidChannel{
			ID:         "default",
			Name:       "default",
			Importance: "max",
			Vibration:  []int64{0, 250, 250, 250},
			LightColor: "#FF231F7C",
			Policy:     ">= 8.0.0",
		},

		// Metrics defaults (opt-in)
		MetricsEnabled: false,
		MetricsPort:    9090,

		InfluxInterval: 1 * time.Minute,
	}
}

var lightColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// Validate returns a list of non-fatal configuration warnings.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.SendTimeout <= 0, "send_timeout is not positive; remote sends will never time out"},
		{c.TokenTimeout <= 0, "token_timeout is not positive; token acquisition will never time out"},
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
		{c.InfluxBucket != "" && c.InfluxURL == "", "influx bucket provided but URL is missing"},
		{c.Sound != "" && c.Sound != "default", fmt.Sprintf("sound %q is not \"default\"; the push service may ignore it", c.Sound)},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	if _, err := uuid.Parse(c.ProjectID); err != nil {
		warnings = append(warnings, fmt.Sprintf("project_id %q is not a UUID: %v", c.ProjectID, err))
	}
	if u, err := url.Parse(c.PushEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		warnings = append(warnings, fmt.Sprintf("invalid push_endpoint %q", c.PushEndpoint))
	}
	if c.AndroidChannel.Policy != "" {
		if _, err := semver.NewConstraint(c.AndroidChannel.Policy); err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid android_channel.policy %q: %v", c.AndroidChannel.Policy, err))
		}
	}
	if lc := c.AndroidChannel.LightColor; lc != "" && !lightColorPattern.MatchString(lc) {
		warnings = append(warnings, fmt.Sprintf("invalid android_channel.light_color %q (expected #RRGGBB or #RRGGBBAA)", lc))
	}
	return warnings
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
