package calendar

import "errors"

// ErrMissingTime indicates that an event has neither a date nor a dateTime value.
var ErrMissingTime = errors.New("event time has neither date nor dateTime")

// ErrMissingID indicates that an event has no ID.
var ErrMissingID = errors.New("event has no id")

// ErrNoSeparator indicates that a calendar name can not be split into group and course.
var ErrNoSeparator = errors.New("calendar name has no group separator")

// ErrNoChannel indicates that neither the group's channel nor a fallback channel is configured.
var ErrNoChannel = errors.New("no channel for calendar entry")

// ErrNoThumbnail indicates that no thumbnail could be derived from an event summary.
var ErrNoThumbnail = errors.New("no thumbnail for summary")

// ErrAlreadyStarted is returned by Calendar.Start when its timers are already running.
var ErrAlreadyStarted = errors.New("calendar is already started")
