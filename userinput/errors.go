package userinput

import "errors"

// ErrSuperseded is returned by Registry.Wait when a newer wait for the same user and channel was registered.
var ErrSuperseded = errors.New("wait was superseded by a newer one for the same user and channel")

// ErrAborted is returned by Loop when the user answered with a command instead of a value.
var ErrAborted = errors.New("dialog was aborted by a command")

// ErrTooManyAttempts is returned by Loop when no acceptable answer was given within the allowed repetitions.
var ErrTooManyAttempts = errors.New("too many invalid answers")
