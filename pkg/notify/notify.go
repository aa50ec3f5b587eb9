// Package notify delivers best-effort messages about donations and schedules.
// Delivery never blocks or fails the operation that triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kindnest/kindnest-api/pkg/metrics"
)

type Event string

const (
	EventVolunteerAssigned   Event = "volunteer_assigned"
	EventPickupAssigned      Event = "pickup_assigned"
	EventCodeIssued          Event = "code_issued"
	EventScheduleCancelled   Event = "schedule_cancelled"
	EventDonationConfirmed   Event = "donation_confirmed"
	EventDonationRejected    Event = "donation_rejected"
	EventVolunteerApproved   Event = "volunteer_approved"
	EventVolunteerRegistered Event = "volunteer_registered"
)

// Audience says who a notification is for. Admin notifications carry no
// address; each sink resolves the admin destination itself.
type Audience string

const (
	AudienceAdmin     Audience = "admin"
	AudienceDonor     Audience = "donor"
	AudienceVolunteer Audience = "volunteer"
)

type Notification struct {
	Event    Event
	Audience Audience
	To       string
	Data     map[string]string
}

// Notifier is one delivery channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Dispatcher fans notifications out to its sinks on background goroutines.
type Dispatcher struct {
	sinks   []Notifier
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, m *metrics.Metrics, sinks ...Notifier) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{sinks: sinks, log: log, metrics: m, timeout: 30 * time.Second}
}

// Send queues n on every sink and returns immediately. Failures are logged.
func (d *Dispatcher) Send(n Notification) {
	if d == nil {
		return
	}
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink Notifier) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			outcome := "sent"
			if err := sink.Notify(ctx, n); err != nil {
				outcome = "failed"
				d.log.Warn("notification failed",
					"event", n.Event, "audience", n.Audience, "error", err)
			}
			if d.metrics != nil {
				d.metrics.Notifications.WithLabelValues(string(n.Event), outcome).Inc()
			}
		}(sink)
	}
}

// Wait blocks until every queued notification has been attempted.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// LogNotifier writes notifications to the log. It stands in for email when
// no SMTP server is configured.
type LogNotifier struct{ Log *slog.Logger }

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification", "event", n.Event, "audience", n.Audience, "to", n.To)
	return nil
}
