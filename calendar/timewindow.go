package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklahomer/go-kasumi/logger"
	gcal "google.golang.org/api/calendar/v3"
)

const (
	// DefaultLeadTime is used for events without a reminder override.
	DefaultLeadTime = 30 * time.Minute

	dateLayout          = "2006-01-02"
	localDateTimeLayout = "2006-01-02T15:04:05"
)

// ParseEventTime converts an event's start or end into loc.
// All-day values are midnight in loc; the returned bool reports whether the value was all-day.
func ParseEventTime(t *gcal.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	if t == nil {
		return time.Time{}, false, ErrMissingTime
	}

	switch {
	case t.DateTime != "":
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			// Values without an offset are wall-clock times in the event's zone, or in loc when it has none.
			local, localErr := time.ParseInLocation(localDateTimeLayout, t.DateTime, eventLocation(t, loc))
			if localErr != nil {
				return time.Time{}, false, fmt.Errorf("invalid dateTime %q: %w", t.DateTime, err)
			}
			return local.In(loc), false, nil
		}
		return parsed.In(loc), false, nil

	case t.Date != "":
		parsed, err := time.ParseInLocation(dateLayout, t.Date, loc)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid date %q: %w", t.Date, err)
		}
		return parsed, true, nil

	default:
		return time.Time{}, false, ErrMissingTime
	}
}

func eventLocation(t *gcal.EventDateTime, loc *time.Location) *time.Location {
	if t.TimeZone == "" {
		return loc
	}

	zone, err := time.LoadLocation(t.TimeZone)
	if err != nil {
		logger.Debugf("Using %s for unknown event time zone %q: %+v", loc, t.TimeZone, err)
		return loc
	}
	return zone
}

// LeadTime returns how long before its start an event is announced:
// the minutes of the first reminder override, or DefaultLeadTime.
func LeadTime(event *gcal.Event) time.Duration {
	if event == nil || event.Reminders == nil || len(event.Reminders.Overrides) == 0 || event.Reminders.Overrides[0] == nil {
		return DefaultLeadTime
	}
	return time.Duration(event.Reminders.Overrides[0].Minutes) * time.Minute
}

type unit struct {
	length   time.Duration
	singular string
	plural   string
	dative   string
}

var units = []unit{
	{length: 365 * 24 * time.Hour, singular: "Jahr", plural: "Jahre", dative: "Jahren"},
	{length: 30 * 24 * time.Hour, singular: "Monat", plural: "Monate", dative: "Monaten"},
	{length: 24 * time.Hour, singular: "Tag", plural: "Tage", dative: "Tagen"},
	{length: time.Hour, singular: "Stunde", plural: "Stunden", dative: "Stunden"},
	{length: time.Minute, singular: "Minute", plural: "Minuten", dative: "Minuten"},
}

const lessThanAMinute = "weniger als 1 Minute"

// Humanize renders d as German text, e.g. "2 Stunden, 5 Minuten".
// The sign of d is ignored and anything below one minute is "weniger als 1 Minute".
func Humanize(d time.Duration) string {
	return humanize(d, false)
}

// Relative renders d as a German relative time: "in 5 Minuten" for the future, "seit 2 Tagen" for the past.
func Relative(d time.Duration) string {
	if d < 0 {
		return "seit " + humanize(-d, true)
	}
	return "in " + humanize(d, true)
}

func humanize(d time.Duration, dative bool) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return lessThanAMinute
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		n := d / u.length
		if n == 0 {
			continue
		}
		d -= n * u.length

		name := u.singular
		if n > 1 {
			name = u.plural
			if dative {
				name = u.dative
			}
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}

	return strings.Join(parts, ", ")
}

// FormatDuration renders d as hours and minutes, e.g. "1:30".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return fmt.Sprintf("%d:%02d", d/time.Hour, (d%time.Hour)/time.Minute)
}
