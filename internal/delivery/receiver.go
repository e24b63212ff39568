package delivery

import (
	"context"
	"log"
	"time"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/metrics"
	"github.com/tazhate/remora/internal/scheduler"
)

const (
	OutcomePresented = "presented"
	OutcomeDropped   = "dropped"
)

// AlertPresenter raises the visible alert for a delivered reminder.
// *scheduler.Gateway satisfies it.
type AlertPresenter interface {
	PresentAlert(ctx context.Context, r *domain.Reminder, alert scheduler.Alert)
}

// Receiver is the entry point invoked when a registration fires.
type Receiver struct {
	presenter   AlertPresenter
	permissions scheduler.Permissions
	alerts      *AlertController
	metrics     *metrics.Metrics
	location    *time.Location
	now         func() time.Time
}

// NewReceiver wires the receiver and subscribes the alert controller to the
// stop-alert broadcast. The returned func unsubscribes it.
func NewReceiver(p AlertPresenter, perms scheduler.Permissions, alerts *AlertController, signals *Signals, loc *time.Location, m *metrics.Metrics) (*Receiver, func()) {
	if perms == nil {
		perms = scheduler.StaticPermissions{Exact: true, Notifications: true}
	}
	if loc == nil {
		loc = time.Local
	}
	r := &Receiver{
		presenter:   p,
		permissions: perms,
		alerts:      alerts,
		metrics:     m,
		location:    loc,
		now:         time.Now,
	}

	unsubscribe := func() {}
	if signals != nil {
		unsubscribe = signals.Listen(ActionStopAlert, func() {
			if !alerts.StopAll() {
				log.Println("[delivery] Stop signal with no alert active")
			}
		})
	}
	return r, unsubscribe
}

// Receive rebuilds the reminder from the payload, starts ringing and presents
// the alert. Without notification permission the delivery is dropped.
func (r *Receiver) Receive(ctx context.Context, extras domain.Extras) {
	if !r.permissions.CanPostNotifications() {
		log.Printf("[delivery] Notification permission denied, dropping alert for %q", extras[domain.ExtraID])
		r.metrics.Delivered(OutcomeDropped)
		return
	}

	reminder := domain.ReminderFromExtras(extras, r.now().In(r.location))
	handle := r.alerts.Start(reminder)

	log.Printf("[delivery] Reminder %d %q due %s", reminder.ID, reminder.Title, domain.FormatDisplay(reminder.DueDateTime))
	r.presenter.PresentAlert(ctx, reminder, handle)
	r.metrics.Delivered(OutcomePresented)
}
