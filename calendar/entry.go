package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	gcal "google.golang.org/api/calendar/v3"
)

// RawEntry is an event as listed from a calendar, together with the calendar's presentation details.
type RawEntry struct {
	Event *gcal.Event

	// CalendarName is used when the event has no organizer display name.
	CalendarName string

	// Color is the calendar's background color, e.g. "#9fe1e7".
	Color string
}

// Entry is one decoded snapshot of a calendar event.
// Entries are never modified; a changed event produces a new Entry with a different Updated value.
type Entry struct {
	ID           string
	Updated      time.Time
	CalendarName string
	Summary      string

	Start  time.Time
	End    time.Time // zero when the event has no end
	AllDay bool

	LeadTime      time.Duration
	ReminderStart time.Time

	Description string
	Location    string
	Color       int
	Thumbnail   string
}

// NewEntry decodes raw into an Entry with all times converted to loc.
// An error is returned when the event has no ID, an invalid update timestamp or an unusable start or end.
func NewEntry(raw RawEntry, loc *time.Location, thumbnails *Thumbnails) (*Entry, error) {
	ev := raw.Event
	if ev == nil || ev.Id == "" {
		return nil, ErrMissingID
	}

	updated, err := time.Parse(time.RFC3339, ev.Updated)
	if err != nil {
		return nil, fmt.Errorf("event %s: invalid updated timestamp %q: %w", ev.Id, ev.Updated, err)
	}

	start, allDay, err := ParseEventTime(ev.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("event %s: start: %w", ev.Id, err)
	}

	entry := &Entry{
		ID:           ev.Id,
		Updated:      updated.In(loc),
		CalendarName: raw.CalendarName,
		Summary:      ev.Summary,
		Start:        start,
		AllDay:       allDay,
		LeadTime:     LeadTime(ev),
		Description:  htmlToText(ev.Description),
		Location:     ev.Location,
		Color:        parseColor(raw.Color),
	}
	entry.ReminderStart = start.Add(-entry.LeadTime)

	if ev.Organizer != nil && ev.Organizer.DisplayName != "" {
		entry.CalendarName = ev.Organizer.DisplayName
	}

	if ev.End != nil {
		end, _, err := ParseEventTime(ev.End, loc)
		if err != nil && !errors.Is(err, ErrMissingTime) {
			return nil, fmt.Errorf("event %s: end: %w", ev.Id, err)
		}
		entry.End = end
	}

	thumbnail, err := thumbnails.Resolve(ev.Summary)
	if err != nil {
		logger.Debugf("No thumbnail for event %s: %+v", ev.Id, err)
	}
	entry.Thumbnail = thumbnail

	return entry, nil
}

// HasEnd reports whether the event end is known.
func (e *Entry) HasEnd() bool {
	return !e.End.IsZero()
}

// Duration returns the event length, or zero when the end is unknown.
func (e *Entry) Duration() time.Duration {
	if !e.HasEnd() {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Ended reports whether the event is over at now. Events without an end never end.
func (e *Entry) Ended(now time.Time) bool {
	return e.HasEnd() && !now.Before(e.End)
}

// InWindow reports whether now lies in the reminder window [ReminderStart, End).
func (e *Entry) InWindow(now time.Time) bool {
	return !now.Before(e.ReminderStart) && !e.Ended(now)
}

// Route splits CalendarName into group and course at the first separator.
func (e *Entry) Route(separator string) (group string, course string, err error) {
	group, course, found := strings.Cut(e.CalendarName, separator)
	if separator == "" || !found || strings.TrimSpace(group) == "" {
		return "", "", fmt.Errorf("%w: %q", ErrNoSeparator, e.CalendarName)
	}
	return strings.TrimSpace(group), strings.TrimSpace(course), nil
}

// Title returns the embed title for now, including the countdown to the event start.
func (e *Entry) Title(now time.Time) string {
	return fmt.Sprintf("**%s**:  %s %s", e.CalendarName, e.Summary, Relative(e.Start.Sub(now)))
}

// Embed renders the entry without a title; Reminder sets the title on every update.
func (e *Entry) Embed() *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: e.Description,
		Color:       e.Color,
	}

	if e.Location != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Ort / URL", Value: e.Location, Inline: false})
	}

	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Datum", Value: e.Start.Format("02.01.2006"), Inline: false},
		&discordgo.MessageEmbedField{Name: "Beginn", Value: e.Start.Format("15:04"), Inline: true},
	)

	if e.HasEnd() {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Dauer", Value: FormatDuration(e.Duration()), Inline: true},
			&discordgo.MessageEmbedField{Name: "Ende", Value: e.End.Format("15:04"), Inline: true},
		)
	}

	if e.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}

	return embed
}

func parseColor(color string) int {
	if color == "" {
		return 0
	}

	value, err := strconv.ParseInt(strings.TrimPrefix(color, "#"), 16, 32)
	if err != nil {
		logger.Debugf("Ignoring invalid calendar color %q: %+v", color, err)
		return 0
	}
	return int(value)
}

// htmlToText flattens an event description, which Google Calendar stores as HTML, into plain text.
func htmlToText(description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		logger.Debugf("Using raw event description: %+v", err)
		return description
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		text := strings.TrimSpace(link.Text())
		if ok && href != "" && href != text {
			link.SetText(fmt.Sprintf("%s (%s)", text, href))
		}
	})
	doc.Find("li").PrependHtml("• ")
	doc.Find("p, div, li").AppendHtml("\n")

	return strings.TrimSpace(doc.Text())
}
