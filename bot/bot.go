package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"

	"github.com/hm-eit/eitbot/calendar"
	"github.com/hm-eit/eitbot/config"
	"github.com/hm-eit/eitbot/dialog"
	"github.com/hm-eit/eitbot/guild"
	"github.com/hm-eit/eitbot/userinput"
)

// dialogTimeout bounds how long a dialog waits for answers in total.
const dialogTimeout = time.Hour

// Session abstracts the discordgo.Session methods the bot and its packages use.
// *discordgo.Session satisfies this interface.
type Session interface {
	guild.Session
	calendar.Session
	dialog.Session
}

var _ Session = (*discordgo.Session)(nil)

// Option defines a function signature for Bot's functional options.
type Option func(*Bot)

// WithCalendarSource enables the calendar reminders, reading events from source.
func WithCalendarSource(source calendar.Source, options ...calendar.Option) Option {
	return func(b *Bot) {
		b.source = source
		b.calendarOptions = options
	}
}

// Bot is the top-level object owning everything the commands share.
type Bot struct {
	// ctx bounds the dialogs and timers that commands start and outlive the command itself.
	ctx context.Context

	config   *config.Config
	session  Session
	guild    *guild.Guild
	registry *userinput.Registry
	dialogs  *dialog.Dialogs

	source          calendar.Source
	calendarOptions []calendar.Option
	calendar        *calendar.Calendar

	dialogsRunning sync.WaitGroup
}

// New creates a Bot for the resolved guild g. ctx bounds every dialog and timer the bot starts.
func New(ctx context.Context, cfg *config.Config, session Session, g *guild.Guild, options ...Option) (*Bot, error) {
	registry := userinput.NewRegistry()
	b := &Bot{
		ctx:      ctx,
		config:   cfg,
		session:  session,
		guild:    g,
		registry: registry,
		dialogs: dialog.New(g, session, registry,
			dialog.WithLoopOptions(userinput.WithCommandPrefix(cfg.Discord.CommandPrefix))),
	}

	for _, opt := range options {
		opt(b)
	}

	if b.source != nil {
		cal, err := b.newCalendar()
		if err != nil {
			return nil, err
		}
		b.calendar = cal
	}

	return b, nil
}

// Registry returns the registry the discord adapter delivers dialog answers to.
func (b *Bot) Registry() *userinput.Registry {
	return b.registry
}

// Calendar returns the calendar, or nil when the bot runs without one.
func (b *Bot) Calendar() *calendar.Calendar {
	return b.calendar
}

// StartCalendar starts the reminder timers.
func (b *Bot) StartCalendar() error {
	if b.calendar == nil {
		return ErrNoCalendar
	}
	return b.calendar.Start(b.ctx)
}

// StopCalendar stops the reminder timers and removes the posted reminders.
func (b *Bot) StopCalendar(ctx context.Context) error {
	if b.calendar == nil {
		return ErrNoCalendar
	}
	b.calendar.Stop(ctx)
	return nil
}

// OnMemberJoin starts the setup dialog for a member that just joined. Wait joins it like every other dialog.
func (b *Bot) OnMemberJoin(ctx context.Context, member *discordgo.Member) {
	b.startDialog(ctx, "setup", member, b.dialogs.Setup)
}

// Wait blocks until all dialogs started by the bot have returned.
func (b *Bot) Wait() {
	b.dialogsRunning.Wait()
}

func (b *Bot) newCalendar() (*calendar.Calendar, error) {
	options := []calendar.Option{
		calendar.WithChannels(b.guild.ChannelMapping(), b.fallbackChannelID()),
	}
	options = append(options, b.calendarOptions...)

	cal, err := calendar.New(b.config.Calendar, b.source, b.session, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up calendar: %w", err)
	}
	return cal, nil
}

func (b *Bot) fallbackChannelID() string {
	name := b.config.Calendar.FallbackChannel
	if name == "" {
		return ""
	}

	channel, ok := b.guild.Channel(name)
	if !ok {
		logger.Warnf("Fallback channel %s is not available, reminders of unmapped groups are postponed", name)
		return ""
	}
	return channel.ID
}

// startDialog runs a dialog in the background, bounded by ctx.
func (b *Bot) startDialog(ctx context.Context, name string, member *discordgo.Member, dialogFunc func(context.Context, *discordgo.Member) error) {
	b.dialogsRunning.Add(1)
	go func() {
		defer b.dialogsRunning.Done()
		b.runDialog(ctx, name, member, dialogFunc)
	}()
}

func (b *Bot) runDialog(ctx context.Context, name string, member *discordgo.Member, dialogFunc func(context.Context, *discordgo.Member) error) {
	ctx, cancel := context.WithTimeout(ctx, dialogTimeout)
	defer cancel()

	userID := ""
	if member != nil && member.User != nil {
		userID = member.User.ID
	}

	err := dialogFunc(ctx, member)
	switch {
	case err == nil:
		logger.Infof("Dialog %s with %s finished", name, userID)

	case errors.Is(err, userinput.ErrAborted), errors.Is(err, userinput.ErrSuperseded), errors.Is(err, context.Canceled):
		logger.Debugf("Dialog %s with %s ended early: %+v", name, userID, err)

	default:
		logger.Warnf("Dialog %s with %s failed: %+v", name, userID, err)
	}
}
