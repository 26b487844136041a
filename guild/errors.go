package guild

import "errors"

// ErrUnknownRole indicates that a configured role is missing in the guild.
var ErrUnknownRole = errors.New("role is not available in the guild")

// ErrNotMember indicates that a user is not a member of the guild.
var ErrNotMember = errors.New("user is not a member of the guild")
