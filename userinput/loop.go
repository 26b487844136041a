package userinput

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
)

const defaultMaxRepetitions = 10

// Session abstracts the discordgo.Session method Loop uses to send error prompts.
// *discordgo.Session satisfies this interface.
type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Waiter is what Loop waits on. *Registry satisfies this interface.
type Waiter interface {
	Wait(ctx context.Context, userID string, channelID string) (*discordgo.Message, error)
}

// ConvertFunc turns a raw answer into a value. ok is false when the answer is not acceptable.
type ConvertFunc[T any] func(answer string) (value T, ok bool)

// Validate adapts a predicate to a ConvertFunc that returns the trimmed answer itself.
func Validate(pred func(answer string) bool) ConvertFunc[string] {
	return func(answer string) (string, bool) {
		answer = strings.TrimSpace(answer)
		return answer, pred(answer)
	}
}

// LoopOption defines a function signature for Loop's functional options.
type LoopOption func(*loopOptions)

type loopOptions struct {
	maxRepetitions int
	errorEmbed     func(answer string) *discordgo.MessageEmbed
	commandPrefix  string
}

// WithMaxRepetitions sets how many invalid answers are retried before Loop gives up.
func WithMaxRepetitions(n int) LoopOption {
	return func(o *loopOptions) {
		o.maxRepetitions = n
	}
}

// WithErrorEmbed sets the prompt sent to the channel after an invalid answer.
func WithErrorEmbed(fnc func(answer string) *discordgo.MessageEmbed) LoopOption {
	return func(o *loopOptions) {
		o.errorEmbed = fnc
	}
}

// WithCommandPrefix makes Loop return ErrAborted when an answer starts with prefix.
func WithCommandPrefix(prefix string) LoopOption {
	return func(o *loopOptions) {
		o.commandPrefix = prefix
	}
}

// Loop waits for answers from userID in channelID until convert accepts one.
// Each rejected answer triggers the error embed, if any, and another wait; after the initial answer plus
// the configured number of repetitions were all rejected, ErrTooManyAttempts is returned.
func Loop[T any](ctx context.Context, waiter Waiter, session Session, userID string, channelID string, convert ConvertFunc[T], options ...LoopOption) (T, error) {
	opts := &loopOptions{
		maxRepetitions: defaultMaxRepetitions,
	}
	for _, opt := range options {
		opt(opts)
	}

	var zero T
	for attempt := 0; attempt <= opts.maxRepetitions; attempt++ {
		message, err := waiter.Wait(ctx, userID, channelID)
		if err != nil {
			return zero, err
		}

		answer := strings.TrimSpace(message.Content)
		if opts.commandPrefix != "" && strings.HasPrefix(answer, opts.commandPrefix) {
			return zero, ErrAborted
		}

		if value, ok := convert(answer); ok {
			return value, nil
		}

		if opts.errorEmbed != nil && session != nil {
			if _, err := session.ChannelMessageSendEmbed(channelID, opts.errorEmbed(answer)); err != nil {
				logger.Errorf("Failed to send error prompt to %s: %+v", channelID, err)
			}
		}
	}

	return zero, ErrTooManyAttempts
}
