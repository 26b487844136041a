package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrEmptyToken indicates that no token was provided and no session was injected via WithSession.
var ErrEmptyToken = errors.New("token must be set or a session must be provided via WithSession")

// ErrNoAuthor indicates that the given message has no author.
var ErrNoAuthor = errors.New("message has no author")

// IsNotFound reports whether err is a Discord REST error caused by a resource that no longer exists,
// e.g. a message that was deleted by a moderator in the meantime.
func IsNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}

	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return true
		}
	}

	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
