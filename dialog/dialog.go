package dialog

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"

	"github.com/hm-eit/eitbot/guild"
	"github.com/hm-eit/eitbot/userinput"
)

// MaxNameLength is the longest nickname Discord accepts.
const MaxNameLength = 32

// Session abstracts the discordgo.Session methods the dialogs use.
// *discordgo.Session satisfies this interface.
type Session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Session = (*discordgo.Session)(nil)

// Guild is the part of *guild.Guild the dialogs need.
type Guild interface {
	Semesters() []*guild.Semester
	RoleFor(answer string) (*discordgo.Role, bool)
	SetNickname(ctx context.Context, userID string, nickname string) error
	AssignGroup(ctx context.Context, member *discordgo.Member, role *discordgo.Role) error
}

var _ Guild = (*guild.Guild)(nil)

// Option defines a function signature for Dialogs' functional options.
type Option func(*Dialogs)

// WithLoopOptions passes options to every answer loop, e.g. userinput.WithCommandPrefix.
func WithLoopOptions(options ...userinput.LoopOption) Option {
	return func(d *Dialogs) {
		d.loopOptions = append(d.loopOptions, options...)
	}
}

// Dialogs runs the member dialogs in direct messages.
type Dialogs struct {
	guild       Guild
	session     Session
	waiter      userinput.Waiter
	loopOptions []userinput.LoopOption
}

// New creates Dialogs that read answers from waiter.
func New(g Guild, session Session, waiter userinput.Waiter, options ...Option) *Dialogs {
	d := &Dialogs{
		guild:   g,
		session: session,
		waiter:  waiter,
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Setup greets member, asks for a name to use as nickname and then runs GroupSelection.
func (d *Dialogs) Setup(ctx context.Context, member *discordgo.Member) error {
	channelID, err := d.open(ctx, member)
	if err != nil {
		return err
	}
	userID := member.User.ID

	if err := d.send(ctx, channelID, setupStartEmbed()); err != nil {
		return err
	}

	name, err := userinput.Loop(ctx, d.waiter, d.session, userID, channelID, userinput.Validate(ValidName), d.loop(nameErrorEmbed)...)
	if err != nil {
		return err
	}

	if err := d.guild.SetNickname(ctx, userID, name); err != nil {
		// Server owners and members ranked above the bot can not be renamed.
		logger.Infof("Could not assign nickname %q to %s: %+v", name, userID, err)
	}

	if err := d.send(ctx, channelID, groupSelectEmbed(name, d.guild.Semesters())); err != nil {
		return err
	}

	return d.selectGroup(ctx, member, channelID)
}

// SemesterStart asks member for the study group of the new semester.
func (d *Dialogs) SemesterStart(ctx context.Context, member *discordgo.Member) error {
	channelID, err := d.open(ctx, member)
	if err != nil {
		return err
	}

	if err := d.send(ctx, channelID, semesterStartEmbed(d.guild.Semesters())); err != nil {
		return err
	}

	return d.selectGroup(ctx, member, channelID)
}

// GroupSelection waits for member to name a study group, assigns it and confirms the result.
func (d *Dialogs) GroupSelection(ctx context.Context, member *discordgo.Member) error {
	channelID, err := d.open(ctx, member)
	if err != nil {
		return err
	}

	return d.selectGroup(ctx, member, channelID)
}

func (d *Dialogs) selectGroup(ctx context.Context, member *discordgo.Member, channelID string) error {
	role, err := userinput.Loop[*discordgo.Role](ctx, d.waiter, d.session, member.User.ID, channelID, d.guild.RoleFor, d.loop(groupErrorEmbed)...)
	if err != nil {
		return err
	}

	if err := d.guild.AssignGroup(ctx, member, role); err != nil {
		return err
	}

	logger.Infof("Assigned %s to %s", role.Name, member.User.ID)
	return d.send(ctx, channelID, setupEndEmbed(role.Name))
}

func (d *Dialogs) open(ctx context.Context, member *discordgo.Member) (string, error) {
	if member == nil || member.User == nil {
		return "", guild.ErrNotMember
	}

	channel, err := d.session.UserChannelCreate(member.User.ID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to open direct message channel with %s: %w", member.User.ID, err)
	}
	return channel.ID, nil
}

func (d *Dialogs) send(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if _, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", embed.Title, channelID, err)
	}
	return nil
}

func (d *Dialogs) loop(errorEmbed func(string) *discordgo.MessageEmbed) []userinput.LoopOption {
	return append([]userinput.LoopOption{userinput.WithErrorEmbed(errorEmbed)}, d.loopOptions...)
}

// ValidName reports whether name can be used as nickname: up to MaxNameLength letters, spaces and hyphens.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return false
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' {
			return false
		}
	}
	return true
}
