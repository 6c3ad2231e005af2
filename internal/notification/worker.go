package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert reports an advisor who went past the daily limit of a state.
type Alert struct {
	AdvisorID    int64
	OccupancyID  int64
	StateSlug    string
	StateName    string
	LimitMinutes int
	UsedMinutes  int
	// Closed is set when the alert comes from an occupancy that just ended.
	Closed bool
}

// Payload is the JSON document delivered to the browser.
type Payload struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	AdvisorID    int64  `json:"advisor_id"`
	State        string `json:"state"`
	LimitMinutes int    `json:"limit_minutes"`
	UsedMinutes  int    `json:"used_minutes"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*8),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	slog.Debug("notification worker started", "worker", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			slog.Debug("notification worker stopped", "worker", id)
			return
		}
	}
}

// Dispatch queues an alert. It never blocks; a full queue drops the alert and returns false.
func (wp *WorkerPool) Dispatch(alert Alert) bool {
	select {
	case wp.jobs <- alert:
		return true
	default:
		slog.Warn("notification queue full, dropping alert", "advisor_id", alert.AdvisorID, "state", alert.StateSlug)
		return false
	}
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	subscriptions, err := wp.store.SubscriptionsForAdvisor(ctx, alert.AdvisorID)
	if err != nil {
		slog.Error("failed to fetch subscriptions", "advisor_id", alert.AdvisorID, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := fmt.Sprintf("Advisor %d", alert.AdvisorID)
	if advisor, err := wp.store.FindAdvisor(ctx, alert.AdvisorID); err != nil {
		slog.Warn("failed to fetch advisor for alert", "advisor_id", alert.AdvisorID, "error", err)
	} else if advisor.Name != "" {
		label = advisor.Name
	}

	payload, err := json.Marshal(buildPayload(label, alert))
	if err != nil {
		slog.Error("failed to encode alert", "advisor_id", alert.AdvisorID, "error", err)
		return
	}

	slog.Info("sending overage alerts", "advisor_id", alert.AdvisorID, "state", alert.StateSlug, "subscriptions", len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func buildPayload(label string, alert Alert) Payload {
	state := alert.StateName
	if state == "" {
		state = alert.StateSlug
	}
	body := fmt.Sprintf("%s has used %d of %d minutes of %s today.", label, alert.UsedMinutes, alert.LimitMinutes, state)
	if alert.Closed {
		body = fmt.Sprintf("%s ended %s %d min over the %d minute limit.", label, state, alert.UsedMinutes-alert.LimitMinutes, alert.LimitMinutes)
	}
	return Payload{
		Title:        "State limit exceeded",
		Body:         body,
		AdvisorID:    alert.AdvisorID,
		State:        alert.StateSlug,
		LimitMinutes: alert.LimitMinutes,
		UsedMinutes:  alert.UsedMinutes,
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		slog.Error("failed to send notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are removed.
	if resp.StatusCode == http.StatusGone {
		slog.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			slog.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
