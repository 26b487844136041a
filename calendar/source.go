package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Source lists calendars and their upcoming events.
type Source interface {
	CalendarList(ctx context.Context) ([]*gcal.CalendarListEntry, error)
	Events(ctx context.Context, calendarID string, timeMin time.Time, limit int64) ([]*gcal.Event, error)
}

// GoogleSource is a Source backed by the Google Calendar API.
type GoogleSource struct {
	service *gcal.Service
}

var _ Source = (*GoogleSource)(nil)

// NewGoogleSource creates a GoogleSource with read-only access using the given credentials file.
// Additional client options are applied after the credentials, so they may replace them.
func NewGoogleSource(ctx context.Context, credentialsFile string, options ...option.ClientOption) (*GoogleSource, error) {
	opts := make([]option.ClientOption, 0, len(options)+2)
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(gcal.CalendarReadonlyScope))
	opts = append(opts, options...)

	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Calendar service: %w", err)
	}

	return &GoogleSource{service: service}, nil
}

// CalendarList returns every calendar on the account's calendar list.
func (s *GoogleSource) CalendarList(ctx context.Context) ([]*gcal.CalendarListEntry, error) {
	var items []*gcal.CalendarListEntry
	err := s.service.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return items, nil
}

// Events returns up to limit single events of the calendar that have not ended at timeMin, ordered by start.
func (s *GoogleSource) Events(ctx context.Context, calendarID string, timeMin time.Time, limit int64) ([]*gcal.Event, error) {
	res, err := s.service.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(limit).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events of %s: %w", calendarID, err)
	}
	return res.Items, nil
}
