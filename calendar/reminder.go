package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"

	"github.com/hm-eit/eitbot/discord"
)

// Session abstracts the discordgo.Session methods a Reminder uses to manage its message.
// *discordgo.Session satisfies this interface.
type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID string, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID string, messageID string, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

// MessageRef points to a posted reminder message.
type MessageRef struct {
	EntryID   string `json:"entry_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Reminder binds one calendar entry to the Discord message announcing it.
// Its message exists only while the entry is inside its reminder window.
type Reminder struct {
	ID      string
	Updated time.Time

	entry     *Entry
	embed     *discordgo.MessageEmbed
	channelID string
	messageID string

	// shownTitle is the title of the posted message; stale is set when the embed was re-rendered since.
	shownTitle string
	stale      bool

	// dismissed is set when the posted message was removed by someone else.
	// The reminder then stays silent until its entry changes.
	dismissed bool

	// withdrawn is set when the entry left the feed. The message is deleted on every update until that succeeds.
	withdrawn bool

	session Session
	metrics *Metrics
}

// NewReminder creates a Reminder for entry that posts to channelID. No message is sent until Update.
func NewReminder(entry *Entry, channelID string, session Session, metrics *Metrics) *Reminder {
	return &Reminder{
		ID:        entry.ID,
		Updated:   entry.Updated,
		entry:     entry,
		embed:     entry.Embed(),
		channelID: channelID,
		session:   session,
		metrics:   metrics,
	}
}

// Entry returns the currently bound entry.
func (r *Reminder) Entry() *Entry {
	return r.entry
}

// ChannelID returns the channel the reminder posts to.
func (r *Reminder) ChannelID() string {
	return r.channelID
}

// Message returns the reference of the posted message, if any.
func (r *Reminder) Message() (MessageRef, bool) {
	if r.messageID == "" {
		return MessageRef{}, false
	}
	return MessageRef{EntryID: r.ID, ChannelID: r.channelID, MessageID: r.messageID}, true
}

// Update brings the message in line with now: it is deleted once the event is over or while the reminder
// window has not begun, and sent or edited while inside the window.
// Nothing is sent to Discord when the message already shows the current state.
func (r *Reminder) Update(ctx context.Context, now time.Time) error {
	switch {
	case r.withdrawn, r.entry.Ended(now):
		return r.DeleteMessage(ctx)

	case !now.Before(r.entry.ReminderStart):
		return r.show(ctx, now)

	default:
		return r.DeleteMessage(ctx)
	}
}

// UpdateEntry binds a changed snapshot of the event, re-renders the embed and runs Update.
func (r *Reminder) UpdateEntry(ctx context.Context, entry *Entry, now time.Time) error {
	r.entry = entry
	r.Updated = entry.Updated
	r.embed = entry.Embed()
	r.stale = true
	r.dismissed = false
	r.withdrawn = false

	return r.Update(ctx, now)
}

// Withdraw marks the entry as gone from the calendar and deletes the message.
// When the delete fails, the reminder keeps its message reference and Update retries the delete.
func (r *Reminder) Withdraw(ctx context.Context) error {
	r.withdrawn = true
	return r.DeleteMessage(ctx)
}

// Withdrawn reports whether the entry left the calendar.
func (r *Reminder) Withdrawn() bool {
	return r.withdrawn
}

// DeleteMessage removes the posted message. A message that is already gone counts as deleted.
func (r *Reminder) DeleteMessage(ctx context.Context) error {
	if r.messageID == "" {
		return nil
	}

	err := r.session.ChannelMessageDelete(r.channelID, r.messageID, discordgo.WithContext(ctx))
	switch {
	case err == nil:
		r.metrics.messageOp("delete", "ok")

	case discord.IsNotFound(err):
		r.metrics.messageOp("delete", "not_found")

	default:
		r.metrics.messageOp("delete", "error")
		return fmt.Errorf("failed to delete reminder message %s of %s: %w", r.messageID, r.ID, err)
	}

	r.messageID = ""
	r.shownTitle = ""
	return nil
}

func (r *Reminder) show(ctx context.Context, now time.Time) error {
	if r.dismissed {
		return nil
	}

	title := r.entry.Title(now)
	if r.messageID != "" && !r.stale && title == r.shownTitle {
		return nil
	}
	r.embed.Title = title

	if r.messageID == "" {
		message, err := r.session.ChannelMessageSendEmbed(r.channelID, r.embed, discordgo.WithContext(ctx))
		if err != nil {
			r.metrics.messageOp("send", "error")
			return fmt.Errorf("failed to send reminder %s to %s: %w", r.ID, r.channelID, err)
		}
		r.metrics.messageOp("send", "ok")
		r.messageID = message.ID
	} else {
		_, err := r.session.ChannelMessageEditEmbed(r.channelID, r.messageID, r.embed, discordgo.WithContext(ctx))
		switch {
		case err == nil:
			r.metrics.messageOp("edit", "ok")

		case discord.IsNotFound(err):
			r.metrics.messageOp("edit", "not_found")
			logger.Infof("Reminder message %s of %s was removed externally", r.messageID, r.ID)
			r.messageID = ""
			r.shownTitle = ""
			r.dismissed = true
			return nil

		default:
			r.metrics.messageOp("edit", "error")
			return fmt.Errorf("failed to edit reminder message %s of %s: %w", r.messageID, r.ID, err)
		}
	}

	r.shownTitle = title
	r.stale = false
	return nil
}
