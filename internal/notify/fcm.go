package notify

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// MessagingClient is the part of the Firebase messaging client used here.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers to secondary messaging tokens through Firebase Cloud Messaging.
type FCMSender struct {
	client MessagingClient
}

// NewFCMSender builds a sender from a service account credentials file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMSender{client: mc}, nil
}

// NewFCMSenderWithClient wraps an existing messaging client.
func NewFCMSenderWithClient(c MessagingClient) *FCMSender {
	return &FCMSender{client: c}
}

func (f *FCMSender) Name() string { return "fcm" }

// Send delivers msg once. FCM data payloads are string-only, so non-string
// values are JSON-encoded.
func (f *FCMSender) Send(ctx context.Context, msg Message) error {
	data, err := stringifyData(msg.Data)
	if err != nil {
		return &Error{Op: "fcm.send", Kind: KindPlatformUnavailable, Err: err}
	}
	_, err = f.client.Send(ctx, &messaging.Message{
		Token:        msg.To,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         data,
	})
	if err != nil {
		return &Error{Op: "fcm.send", Kind: KindPlatformUnavailable, Err: err}
	}
	return nil
}

func stringifyData(in map[string]any) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode data %q: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}
