package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pushhand/pushhand/internal/config"
)

// Message is a remote notification addressed to a single device token.
type Message struct {
	To    string
	Title string
	Body  string
	Data  map[string]any
}

// Sender delivers a Message through a remote push backend.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// PushMessage is the JSON envelope accepted by the push-delivery service.
// Field order is the wire order.
type PushMessage struct {
	To    string         `json:"to"`
	Sound *string        `json:"sound"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// ExpoSender posts a single envelope to the push-delivery service. It never
// retries: a send is attempted at most once.
type ExpoSender struct {
	Endpoint string
	// Sound is sent verbatim; empty encodes as null.
	Sound  string
	Client *http.Client
}

// NewExpoSender returns a sender for endpoint with a client bounded by timeout.
func NewExpoSender(endpoint, sound string, timeout time.Duration) *ExpoSender {
	if endpoint == "" {
		endpoint = config.DefaultPushEndpoint
	}
	return &ExpoSender{Endpoint: endpoint, Sound: sound, Client: &http.Client{Timeout: timeout}}
}

func (e *ExpoSender) Name() string { return "expo" }

// Envelope builds the wire envelope for msg.
func (e *ExpoSender) Envelope(msg Message) PushMessage {
	pm := PushMessage{To: msg.To, Title: msg.Title, Body: msg.Body, Data: msg.Data}
	if e.Sound != "" {
		sound := e.Sound
		pm.Sound = &sound
	}
	return pm
}

// Send issues exactly one POST. Transport errors and non-2xx responses are
// returned as KindNetworkFailure; the response body is not interpreted.
func (e *ExpoSender) Send(ctx context.Context, msg Message) error {
	status, err := postJSON(ctx, e.client(), e.Endpoint, e.Envelope(msg))
	if err != nil {
		return &Error{Op: "expo.send", Kind: KindNetworkFailure, Status: status, Err: err}
	}
	return nil
}

func (e *ExpoSender) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

// postJSON is the shared JSON POST used by the push senders. It returns the
// response status when one was received.
func postJSON(ctx context.Context, client *http.Client, url string, data interface{}) (int, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp.StatusCode, nil
}
