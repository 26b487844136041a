package calendar

import "time"

// Config contains configuration variables for Calendar.
type Config struct {
	// CredentialsFile is the Google credentials JSON used by GoogleSource.
	// Empty by default, which runs the bot without calendar reminders.
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`

	// Timezone is the IANA zone all event times are converted to.
	Timezone string `json:"timezone" yaml:"timezone"`

	// RefreshInterval is how often the calendars are polled.
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`

	// UpdateInterval is how often every Reminder re-evaluates its message.
	UpdateInterval time.Duration `json:"update_interval" yaml:"update_interval"`

	// Horizon bounds how far ahead of its reminder time an event is picked up.
	Horizon time.Duration `json:"horizon" yaml:"horizon"`

	// Limit is the maximum number of upcoming events fetched per calendar.
	Limit int64 `json:"limit" yaml:"limit"`

	// Separator splits a calendar name such as "WS23-INF1" into group and course.
	Separator string `json:"separator" yaml:"separator"`

	// FallbackChannel is the name of the channel used for groups without a channel of their own.
	FallbackChannel string `json:"fallback_channel" yaml:"fallback_channel"`

	// Autostart starts polling right after the bot is up instead of waiting for the start command.
	Autostart bool `json:"autostart" yaml:"autostart"`

	// Thumbnails maps a lecturer name, as written in brackets in an event summary, to an image URL.
	Thumbnails map[string]string `json:"thumbnails" yaml:"thumbnails"`

	// ThumbnailURL is the fallback image URL for names missing in Thumbnails; "{name}" is replaced.
	ThumbnailURL string `json:"thumbnail_url" yaml:"thumbnail_url"`
}

// NewConfig creates and returns a new Config instance with default settings.
func NewConfig() *Config {
	return &Config{
		CredentialsFile: "",
		Timezone:        "Europe/Berlin",
		RefreshInterval: 20 * time.Second,
		UpdateInterval:  20 * time.Second,
		Horizon:         300 * time.Second,
		Limit:           5,
		Separator:       "-",
		FallbackChannel: "",
		Autostart:       false,
		Thumbnails:      map[string]string{},
		ThumbnailURL:    "",
	}
}
