package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/remora/internal/domain"
)

const (
	productID     = "-//Remora//Reminders//EN"
	eventDuration = 15 * time.Minute
)

// UID is the stable calendar identifier of a reminder.
func UID(id int64) string {
	return fmt.Sprintf("remora-%d", id)
}

// ToICS renders one reminder as a calendar with a single VEVENT that carries
// a display alarm at the due time.
func ToICS(loc *time.Location, reminders ...*domain.Reminder) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC()
	for _, r := range reminders {
		cal.Children = append(cal.Children, reminderEvent(loc, r, stamp).Component)
	}
	return cal
}

func reminderEvent(loc *time.Location, r *domain.Reminder, stamp time.Time) *ical.Event {
	start := domain.At(r.DueDateTime, loc).UTC()

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, UID(r.ID))
	vevent.Props.SetText(ical.PropSummary, r.Title)
	if r.Description != "" {
		vevent.Props.SetText(ical.PropDescription, r.Description)
	}

	// Convert to UTC explicitly - iCalendar will use Z suffix
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(eventDuration))
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	vevent.Props.SetText(ical.PropPriority, icalPriority(r.Priority))
	if r.IsCompleted {
		vevent.Props.SetText(ical.PropStatus, "CANCELLED")
	} else {
		vevent.Props.SetText(ical.PropStatus, "CONFIRMED")
	}
	vevent.Props.SetText(ical.PropCategories, string(r.Priority))

	if !r.IsCompleted {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, r.Title)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = "PT0S"
		alarm.Props.Set(trigger)
		vevent.Children = append(vevent.Children, alarm)
	}

	return vevent
}

// icalPriority maps to RFC 5545 levels: 1 highest, 9 lowest.
func icalPriority(p domain.Priority) string {
	switch p {
	case domain.PriorityHigh:
		return "1"
	case domain.PriorityMedium:
		return "5"
	default:
		return "9"
	}
}

func Encode(w io.Writer, cal *ical.Calendar) error {
	return ical.NewEncoder(w).Encode(cal)
}

// Export writes every reminder as one calendar. An empty list still yields a
// valid, empty VCALENDAR.
func Export(w io.Writer, loc *time.Location, reminders []*domain.Reminder) error {
	if len(reminders) == 0 {
		_, err := io.WriteString(w, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:"+productID+"\r\nEND:VCALENDAR\r\n")
		return err
	}
	return Encode(w, ToICS(loc, reminders...))
}
