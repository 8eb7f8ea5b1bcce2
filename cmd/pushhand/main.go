package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pushhand/pushhand/internal/config"
	"github.com/pushhand/pushhand/internal/logging"
	"github.com/pushhand/pushhand/internal/metrics"
	"github.com/pushhand/pushhand/internal/notify"
	"github.com/pushhand/pushhand/internal/platform"
	"github.com/pushhand/pushhand/internal/session"
	"github.com/pushhand/pushhand/internal/state"
)

// cliOptions are the command line flags.
type cliOptions struct {
	configFile string
	envFile    string

	physical  bool
	grant     bool
	os        string
	osVersion string

	to        string
	title     string
	body      string
	data      string
	local     bool
	secondary bool

	list    bool
	forget  bool
	runOnce bool
}

func parseFlags(fs *flag.FlagSet, args []string) (cliOptions, error) {
	var o cliOptions
	fs.StringVar(&o.configFile, "config", "", "Path to config file")
	fs.StringVar(&o.envFile, "env-file", ".env", "Optional dotenv file loaded before env overrides")

	fs.BoolVar(&o.physical, "simulator-physical", true, "simulate a physical device (emulators get no push token)")
	fs.BoolVar(&o.grant, "simulator-grant", true, "simulated user answer to the permission prompt")
	fs.StringVar(&o.os, "simulator-os", "ios", "simulated OS: ios or android")
	fs.StringVar(&o.osVersion, "simulator-os-version", "17.0", "simulated OS version")

	fs.StringVar(&o.to, "to", "", "push token to send to (defaults to the cached registration)")
	fs.StringVar(&o.title, "title", "", "remote notification title; a remote push is sent when title or body is set")
	fs.StringVar(&o.body, "body", "", "remote notification body")
	fs.StringVar(&o.data, "data", "", "remote notification data as a JSON object")
	fs.BoolVar(&o.local, "local", false, "present the local test notification")
	fs.BoolVar(&o.secondary, "secondary", false, "send through the secondary messaging backend (FCM) instead")

	fs.BoolVar(&o.list, "list", false, "list cached registrations and exit")
	fs.BoolVar(&o.forget, "forget", false, "remove the cached registration for the project and exit")

	fs.BoolVar(&o.runOnce, "run-once", false, "run the session setup and sends once, then exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	loadDotEnv(opts.envFile)
	cfg := loadConfigOrFatal(opts.configFile)

	cleanup := initLogging()
	defer cleanup()

	for _, w := range cfg.Validate() {
		logging.Get().Warn().Str("warning", w).Msg("config validation")
	}

	initMetricsAndInflux(cfg)

	if err := run(context.Background(), cfg, opts, waitForSignal); err != nil {
		logging.Get().Error().Err(err).Msg("pushhand failed")
		cleanup()
		os.Exit(1)
	}
}

// loadDotEnv loads path into the environment when it exists. Variables
// already set win over the file.
func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("warning: failed to load %s: %v", path, err)
	}
}

// loadConfigOrFatal layers defaults, the config file and env overrides.
func loadConfigOrFatal(path string) *config.Config {
	cfg := config.DefaultConfig()
	if path != "" {
		c, err := config.LoadConfigFromFile(path)
		if err != nil {
			log.Fatalf("failed loading config: %v", err)
		}
		cfg = c
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}
	return cfg
}

// initLogging initializes log subsystem from env and returns a cleanup func
func initLogging() func() {
	logLevel := os.Getenv("PUSHHAND_LOG_LEVEL")
	logFile := os.Getenv("PUSHHAND_LOG_FILE")
	cleanup, err := logging.Init(logFile, logLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return cleanup
}

// initMetricsAndInflux starts optional metrics server and Influx pusher
func initMetricsAndInflux(cfg *config.Config) {
	if cfg.MetricsEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.PromHandler())
			mux.Handle("/status", metrics.JSONHandler())
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logging.Get().Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	if cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(context.Background(), cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
	}
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.Get().Info().Msg("shutdown signal received")
}

func newSimulator(o cliOptions) *platform.Simulator {
	return platform.NewSimulator(platform.SimulatorOptions{
		Device:         platform.DeviceInfo{IsPhysical: o.physical, OS: o.os, OSVersion: o.osVersion},
		GrantOnRequest: o.grant,
	})
}

// newSecondarySender builds the FCM backend; tests swap it for a fake.
var newSecondarySender = func(ctx context.Context, credentialsFile string) (notify.Sender, error) {
	return notify.NewFCMSender(ctx, credentialsFile)
}

var errNoSecondaryToken = errors.New("no secondary messaging token available")

// newClient builds the notification client, adding the FCM sender when
// credentials are configured. A broken FCM setup only disables secondary sends.
func newClient(ctx context.Context, cfg *config.Config, host platform.Host) (*notify.Client, error) {
	nopts, err := notify.OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("notification options: %w", err)
	}
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := newSecondarySender(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logging.Get().Warn().Err(err).Msg("secondary messaging disabled")
		} else {
			nopts.Secondary = fcm
		}
	}
	return notify.New(host, nopts), nil
}

// run activates a session, caches the resulting registration and performs
// the requested sends. Unless runOnce is set it then blocks in wait.
func run(ctx context.Context, cfg *config.Config, o cliOptions, wait func()) error {
	switch {
	case o.list:
		return listRegistrations()
	case o.forget:
		if err := state.RemoveRegistration(cfg.ProjectID); err != nil {
			return err
		}
		logging.Get().Info().Str("project_id", cfg.ProjectID).Msg("cached registration removed")
		return nil
	}

	data, err := parseData(o.data)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, cfg, newSimulator(o))
	if err != nil {
		return err
	}
	defer client.Close()

	sess := session.New(client)
	sess.Activate(ctx)
	defer sess.Deactivate()

	snap := sess.Snapshot()
	cacheRegistration(cfg.ProjectID, snap)
	logging.Get().Info().
		Str("permission", string(snap.Permission)).
		Str("push_token", snap.PushToken).
		Str("secondary_token", snap.SecondaryToken).
		AnErr("token_error", snap.TokenError).
		Msg("registration")

	if o.local {
		if err := sess.SendLocalTest(ctx); err != nil {
			return fmt.Errorf("local notification: %w", err)
		}
	}

	if o.title != "" || o.body != "" {
		if err := sendRemote(ctx, client, cfg.ProjectID, snap, o, data); err != nil {
			return err
		}
	}

	if o.runOnce {
		return nil
	}
	wait()
	return nil
}

func sendRemote(ctx context.Context, client *notify.Client, projectID string, snap session.Snapshot, o cliOptions, data map[string]any) error {
	if o.secondary {
		target, err := resolveTarget(projectID, o.to, snap.SecondaryToken, true)
		if err != nil {
			return err
		}
		if err := client.SendSecondaryNotification(ctx, target, o.title, o.body, data); err != nil {
			return fmt.Errorf("secondary notification: %w", err)
		}
		logging.Get().Info().Str("to", target).Msg("secondary notification sent")
		return nil
	}
	target, err := resolveTarget(projectID, o.to, snap.PushToken, false)
	if err != nil {
		return err
	}
	if err := client.SendRemoteNotification(ctx, target, o.title, o.body, data); err != nil {
		return fmt.Errorf("remote notification: %w", err)
	}
	logging.Get().Info().Str("to", target).Msg("remote notification sent")
	return nil
}

// cacheRegistration merges the tokens acquired in this run into the cached
// registration. Runs that acquired no token leave the cache untouched.
func cacheRegistration(projectID string, snap session.Snapshot) {
	if snap.PushToken == "" && snap.SecondaryToken == "" {
		return
	}
	reg, _, err := state.GetRegistration(projectID)
	if err != nil {
		logging.Get().Warn().Err(err).Str("path", state.FilePath()).Msg("failed to read cached registration")
	}
	reg.ProjectID = projectID
	reg.Permission = string(snap.Permission)
	reg.UpdatedAt = time.Time{}
	if snap.PushToken != "" {
		reg.PushToken = snap.PushToken
	}
	if snap.SecondaryToken != "" {
		reg.SecondaryToken = snap.SecondaryToken
	}
	if err := state.SaveRegistration(reg); err != nil {
		logging.Get().Warn().Err(err).Str("path", state.FilePath()).Msg("failed to cache registration")
	}
}

// resolveTarget picks the explicit token, then the token acquired in this
// run, then the cached one.
func resolveTarget(projectID, to, current string, secondary bool) (string, error) {
	if to != "" {
		return to, nil
	}
	if current != "" {
		return current, nil
	}
	reg, ok, err := state.GetRegistration(projectID)
	if err != nil {
		return "", err
	}
	cached, missing := reg.PushToken, session.ErrNoPushToken
	if secondary {
		cached, missing = reg.SecondaryToken, errNoSecondaryToken
	}
	if !ok || cached == "" {
		return "", missing
	}
	return cached, nil
}

func listRegistrations() error {
	all, err := state.GetAllRegistrations()
	if err != nil {
		return err
	}
	for _, r := range all {
		logging.Get().Info().
			Str("project_id", r.ProjectID).
			Str("permission", r.Permission).
			Str("push_token", r.PushToken).
			Str("secondary_token", r.SecondaryToken).
			Time("updated_at", r.UpdatedAt).
			Msg("cached registration")
	}
	logging.Get().Info().Int("count", len(all)).Str("path", state.FilePath()).Msg("registrations listed")
	return nil
}

// parseData decodes the -data flag. Empty means the default payload.
func parseData(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("invalid -data: %w", err)
	}
	if m == nil {
		return nil, errors.New("invalid -data: expected a JSON object")
	}
	return m, nil
}
