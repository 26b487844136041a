package bot

import "errors"

// ErrNoCalendar indicates that the bot runs without calendar access.
var ErrNoCalendar = errors.New("calendar is not configured")

// ErrUnexpectedInput indicates that a command received an input of another adapter.
var ErrUnexpectedInput = errors.New("input is not a *discord.Input")
