// Package calendar mirrors upcoming Google Calendar events into Discord announcements.
//
// Every refresh, Calendar lists the near-term events of all calendars visible to its Source, decodes them
// into Entry values and reconciles them against the Reminders it already tracks: changed entries are
// pushed into their Reminder, vanished ones are removed together with their message, and new ones get a
// Reminder bound to the channel of their group. A second, faster timer calls Reminder.Update so that
// messages appear, count down and disappear on time.
package calendar
