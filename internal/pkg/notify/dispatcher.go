package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/gofiber/fiber/v2/log"
	"google.golang.org/api/option"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// Dispatcher delivers a created campaign to its audience.
type Dispatcher interface {
	Dispatch(ctx context.Context, campaign *models.NotificationCampaign) error
}

// LogDispatcher only logs campaigns. Used when no transport is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, c *models.NotificationCampaign) error {
	log.Infof("[Notify] Campaign %s for %q: %s", c.ID, c.Audience, c.Title)
	return nil
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDispatcher publishes campaigns to one FCM topic per audience, named
// <prefix>-<audience>.
type FCMDispatcher struct {
	client      messagingClient
	topicPrefix string
}

// NewFCMDispatcher initializes firebase from a service account file.
func NewFCMDispatcher(ctx context.Context, credentialsPath, topicPrefix string) (*FCMDispatcher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FCMDispatcher{client: client, topicPrefix: topicPrefix}, nil
}

func (d *FCMDispatcher) Topic(audience string) string {
	if d.topicPrefix == "" {
		return audience
	}
	return d.topicPrefix + "-" + audience
}

func (d *FCMDispatcher) Dispatch(ctx context.Context, c *models.NotificationCampaign) error {
	msg := &messaging.Message{
		Topic: d.Topic(c.Audience),
		Notification: &messaging.Notification{
			Title: c.Title,
			Body:  c.Body,
		},
		Data: map[string]string{
			"campaign_id": c.ID,
			"audience":    c.Audience,
		},
	}
	id, err := d.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send to topic %s failed: %w", msg.Topic, err)
	}
	log.Infof("[Notify] Campaign %s sent to topic %s (message %s)", c.ID, msg.Topic, id)
	return nil
}

// HTTPDispatcher hands the campaign id to an external push sender.
type HTTPDispatcher struct {
	URL        string
	Secret     string
	HTTPClient *http.Client
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, c *models.NotificationCampaign) error {
	body, err := json.Marshal(map[string]string{"campaignId": c.ID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+d.Secret)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("push dispatch failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// NewDispatcherFromEnv selects the dispatcher by NOTIFY_DISPATCHER
// (fcm|http|log). Misconfiguration falls back to LogDispatcher.
func NewDispatcherFromEnv(ctx context.Context) Dispatcher {
	switch strings.ToLower(strings.TrimSpace(env.GetEnv("NOTIFY_DISPATCHER", "log"))) {
	case "fcm":
		credentials := env.GetEnv("FIREBASE_CREDENTIALS_FILE", "")
		if credentials == "" {
			log.Warn("[Notify] FIREBASE_CREDENTIALS_FILE is not set, using log dispatcher")
			return LogDispatcher{}
		}
		d, err := NewFCMDispatcher(ctx, credentials, env.GetEnv("FCM_TOPIC_PREFIX", "storefox"))
		if err != nil {
			log.Errorf("[Notify] %v, using log dispatcher", err)
			return LogDispatcher{}
		}
		log.Info("[Notify] Using FCM dispatcher")
		return d
	case "http":
		url := strings.TrimSpace(env.GetEnv("NOTIFY_DISPATCH_URL", ""))
		if url == "" {
			log.Warn("[Notify] NOTIFY_DISPATCH_URL is not set, using log dispatcher")
			return LogDispatcher{}
		}
		log.Info("[Notify] Using HTTP dispatcher")
		return &HTTPDispatcher{
			URL:        url,
			Secret:     env.GetEnv("NOTIFY_DISPATCH_SECRET", ""),
			HTTPClient: &http.Client{Timeout: 10 * time.Second},
		}
	default:
		return LogDispatcher{}
	}
}
