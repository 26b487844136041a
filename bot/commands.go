package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/hm-eit/eitbot/calendar"
	"github.com/hm-eit/eitbot/discord"
	"github.com/hm-eit/eitbot/guild"
)

const noOngoing = "Es gibt momentan keine laufenden Termine!"

type commandFunc func(ctx context.Context, input *discord.Input, args string) (*sarah.CommandResponse, error)

type command struct {
	name        string
	instruction string
	fn          commandFunc
}

func (b *Bot) commands() []command {
	p := b.config.Discord.CommandPrefix
	return []command{
		{name: "setup", instruction: fmt.Sprintf("Input %ssetup to start the setup dialog in a direct message.", p), fn: b.setup},
		{name: "semesterstart", instruction: fmt.Sprintf("Input %ssemesterstart to choose your study group for the new semester.", p), fn: b.semesterStart},
		{name: "gamer", instruction: fmt.Sprintf("Input %sgamer to get or drop the %s role.", p, guild.RoleGamer), fn: b.gamer},
		{name: "ongoing", instruction: fmt.Sprintf("Input %songoing to list the upcoming and running events.", p), fn: b.ongoing},
		{name: "broadcast", instruction: fmt.Sprintf("Input %sbroadcast <role...> <setup|semesterstart> to start a dialog for every member of the roles.", p), fn: b.broadcast},
		{name: "config", instruction: fmt.Sprintf("Input %sconfig to show the configuration.", p), fn: b.showConfig},
		{name: "start", instruction: fmt.Sprintf("Input %sstart to start the calendar reminders.", p), fn: b.start},
		{name: "stop", instruction: fmt.Sprintf("Input %sstop to stop the calendar reminders.", p), fn: b.stop},
	}
}

// Commands builds the go-sarah command definitions of the bot.
func (b *Bot) Commands() ([]*sarah.CommandProps, error) {
	var props []*sarah.CommandProps
	for _, cmd := range b.commands() {
		pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(b.config.Discord.CommandPrefix+cmd.name) + `(\s|$)`)
		fn := cmd.fn

		p, err := sarah.NewCommandPropsBuilder().
			BotType(discord.DISCORD).
			Identifier(cmd.name).
			MatchPattern(pattern).
			Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
				in, ok := input.(*discord.Input)
				if !ok {
					return nil, ErrUnexpectedInput
				}
				return fn(ctx, in, sarah.StripMessage(pattern, input.Message()))
			}).
			Instruction(cmd.instruction).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build command %s: %w", cmd.name, err)
		}
		props = append(props, p)
	}
	return props, nil
}

// Register registers the bot's commands with go-sarah.
func (b *Bot) Register() error {
	props, err := b.Commands()
	if err != nil {
		return err
	}

	for _, p := range props {
		sarah.RegisterCommandProps(p)
	}
	return nil
}

func (b *Bot) setup(ctx context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	member, err := b.guild.Member(ctx, input.AuthorID())
	if err != nil {
		return b.failure(input, "Du bist kein Mitglied des Servers.", err)
	}

	b.startDialog(b.ctx, "setup", member, b.dialogs.Setup)
	return discord.NewResponse(input, "Schau in deine Direktnachrichten! :envelope:")
}

func (b *Bot) semesterStart(ctx context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	member, err := b.guild.Member(ctx, input.AuthorID())
	if err != nil {
		return b.failure(input, "Du bist kein Mitglied des Servers.", err)
	}

	b.startDialog(b.ctx, "semesterstart", member, b.dialogs.SemesterStart)
	return discord.NewResponse(input, "Schau in deine Direktnachrichten! :envelope:")
}

func (b *Bot) gamer(ctx context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	if _, err := b.guild.ToggleRole(ctx, input.AuthorID(), guild.RoleGamer); err != nil {
		return b.failure(input, fmt.Sprintf("Die Rolle %s konnte nicht geändert werden.", guild.RoleGamer), err)
	}

	// The member is told by direct message.
	return nil, nil
}

func (b *Bot) ongoing(_ context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	if b.calendar == nil {
		return discord.NewResponse(input, noOngoing)
	}

	entries := b.calendar.Entries()
	if len(entries) == 0 {
		return discord.NewResponse(input, noOngoing)
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", entry.CalendarName, entry.Summary))
	}
	return b.respondLong(input, strings.Join(lines, "\n"))
}

func (b *Bot) broadcast(ctx context.Context, input *discord.Input, args string) (*sarah.CommandResponse, error) {
	fields := strings.Fields(args)
	usage := fmt.Sprintf("Benutzung: %sbroadcast <Rolle...> <setup|semesterstart>", b.config.Discord.CommandPrefix)
	if len(fields) == 0 {
		return discord.NewResponse(input, usage)
	}

	name := fields[len(fields)-1]
	var dialogFunc func(context.Context, *discordgo.Member) error
	switch name {
	case "setup":
		dialogFunc = b.dialogs.Setup
	case "semesterstart":
		dialogFunc = b.dialogs.SemesterStart
	default:
		return discord.NewResponse(input, usage)
	}

	roles := fields[:len(fields)-1]
	if len(roles) == 0 {
		return discord.NewResponse(input, "Es muss eine Rolle angegeben werden!")
	}

	members, err := b.guild.MembersWithRoles(ctx, roles)
	if errors.Is(err, guild.ErrUnknownRole) {
		return discord.NewResponse(input, fmt.Sprintf("Unbekannte Rolle: %s", err.Error()))
	}
	if err != nil {
		return b.failure(input, "Die Mitglieder konnten nicht geladen werden.", err)
	}

	for _, member := range members {
		b.startDialog(b.ctx, name, member, dialogFunc)
	}

	logger.Infof("%s started %s for %d members of %v", input.AuthorID(), name, len(members), roles)
	return discord.NewResponse(input, fmt.Sprintf("%s wurde für %d Mitglieder gestartet.", name, len(members)))
}

func (b *Bot) showConfig(_ context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	return b.respondLong(input, b.config.String()+"\n\n"+b.guild.Summary())
}

func (b *Bot) start(_ context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	err := b.StartCalendar()
	switch {
	case err == nil:
		return discord.NewResponse(input, "Der Kalender wurde gestartet.")

	case errors.Is(err, calendar.ErrAlreadyStarted):
		return discord.NewResponse(input, "Der Kalender läuft bereits.")

	case errors.Is(err, ErrNoCalendar):
		return discord.NewResponse(input, "Es ist kein Kalender eingerichtet.")

	default:
		return b.failure(input, "Der Kalender konnte nicht gestartet werden.", err)
	}
}

func (b *Bot) stop(ctx context.Context, input *discord.Input, _ string) (*sarah.CommandResponse, error) {
	if b.calendar == nil {
		return discord.NewResponse(input, "Es ist kein Kalender eingerichtet.")
	}
	if !b.calendar.Running() {
		return discord.NewResponse(input, "Der Kalender läuft nicht.")
	}

	if err := b.StopCalendar(ctx); err != nil {
		return b.failure(input, "Der Kalender konnte nicht gestoppt werden.", err)
	}
	return discord.NewResponse(input, "Der Kalender wurde gestoppt.")
}

// respondLong sends all but the last code block directly and returns the last one as the response.
func (b *Bot) respondLong(input *discord.Input, content string) (*sarah.CommandResponse, error) {
	blocks := SplitCodeBlocks(content)
	channelID := string(input.ReplyTo().(discord.ChannelID))

	for _, block := range blocks[:len(blocks)-1] {
		if _, err := b.session.ChannelMessageSend(channelID, block); err != nil {
			return nil, fmt.Errorf("failed to send message part to %s: %w", channelID, err)
		}
	}
	return discord.NewResponse(input, blocks[len(blocks)-1])
}

func (b *Bot) failure(input *discord.Input, message string, err error) (*sarah.CommandResponse, error) {
	logger.Errorf("Command %q of %s failed: %+v", input.Message(), input.AuthorID(), err)
	return discord.NewResponse(input, message)
}
