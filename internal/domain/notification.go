package domain

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeJobClaimed      NotificationType = "job_claimed"
	NotificationTypeJobConfirmed    NotificationType = "job_confirmed"
	NotificationTypeJobStarted      NotificationType = "job_started"
	NotificationTypeJobCompleted    NotificationType = "job_completed"
	NotificationTypeJobCancelled    NotificationType = "job_cancelled"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypeWeatherAlert    NotificationType = "weather_alert"
)

// Notification is the transport format sent to the dispatch queue. The
// worker that drains the queue applies the per-(user, type) rate limit and
// delivers best-effort; delivery failures are logged, never returned to the
// site that enqueued.
type Notification struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Type        NotificationType  `json:"type"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Attempt     int               `json:"attempt"`
	RequestedAt time.Time         `json:"requested_at"`
}
