package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"
)

const (
	// DISCORD is a designated sarah.BotType for Discord integration.
	DISCORD sarah.BotType = "discord"
)

// session is an internal interface that abstracts the discordgo.Session methods
// used by the Adapter. This allows mocking the session in tests.
// *discordgo.Session satisfies this interface.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// InputRouter receives every inbound message before go-sarah does.
// Deliver returns true when the message was consumed by a pending dialog wait.
// *userinput.Registry satisfies this interface.
type InputRouter interface {
	Deliver(message *discordgo.Message) bool
}

// MemberJoinFunc is called for every member that joins a guild the bot is part of.
type MemberJoinFunc func(ctx context.Context, member *discordgo.Member)

// ChannelID represents a Discord channel as sarah.OutputDestination.
type ChannelID string

var _ sarah.OutputDestination = ChannelID("")

// AdapterOption defines a function signature for Adapter's functional options.
type AdapterOption func(adapter *Adapter)

// WithSession creates an AdapterOption with the given *discordgo.Session.
// Use this to inject a pre-configured session.
// If this option is not given, NewAdapter creates a new session from Config.Token.
func WithSession(session *discordgo.Session) AdapterOption {
	return func(adapter *Adapter) {
		adapter.session = session
	}
}

// WithInputRouter creates an AdapterOption that offers every inbound message to the given router first.
func WithInputRouter(router InputRouter) AdapterOption {
	return func(adapter *Adapter) {
		adapter.router = router
	}
}

// WithMemberJoinHandler creates an AdapterOption that runs fnc for every newly joined guild member.
// fnc runs on its own goroutine so that a long-running dialog does not block the event stream.
func WithMemberJoinHandler(fnc MemberJoinFunc) AdapterOption {
	return func(adapter *Adapter) {
		adapter.onMemberJoin = fnc
	}
}

// Adapter is a sarah.Adapter implementation for Discord.
type Adapter struct {
	config       *Config
	session      session
	router       InputRouter
	onMemberJoin MemberJoinFunc
}

var _ sarah.Adapter = (*Adapter)(nil)

// NewAdapter creates a new Adapter with the given Config and options.
func NewAdapter(config *Config, options ...AdapterOption) (*Adapter, error) {
	adapter := &Adapter{
		config: config,
	}

	for _, opt := range options {
		opt(adapter)
	}

	if adapter.session == nil {
		s, err := NewSession(config)
		if err != nil {
			return nil, err
		}
		adapter.session = s
	}

	return adapter, nil
}

// NewSession creates a *discordgo.Session from Config.Token and Config.Intents.
// The returned session is not opened yet; REST calls can be made right away.
func NewSession(config *Config) (*discordgo.Session, error) {
	if config.Token == "" {
		return nil, ErrEmptyToken
	}

	s, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	s.Identify.Intents = config.Intents

	return s, nil
}

// BotType returns a designated BotType for Discord integration.
func (a *Adapter) BotType() sarah.BotType {
	return DISCORD
}

// Run establishes a connection with Discord and blocks until the context is canceled.
func (a *Adapter) Run(ctx context.Context, enqueueInput func(sarah.Input) error, notifyErr func(error)) {
	a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(s, m, enqueueInput)
	})
	a.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		a.handleMemberJoin(ctx, m)
	})

	err := a.session.Open()
	if err != nil {
		notifyErr(sarah.NewBotNonContinuableError(fmt.Sprintf("failed to open Discord session: %s", err.Error())))
		return
	}

	// Block until the context is canceled.
	<-ctx.Done()

	if closeErr := a.session.Close(); closeErr != nil {
		logger.Errorf("Failed to close Discord session: %+v", closeErr)
	}
}

// handleMessage processes an incoming Discord message and routes it to a pending dialog wait or to enqueueInput.
func (a *Adapter) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate, enqueueInput func(sarah.Input) error) {
	input, err := MessageToInput(m)
	if err != nil {
		// MessageToInput returns ErrNoAuthor for system messages with no author.
		logger.Debugf("Skipping message: %+v", err)
		return
	}

	// Ignore messages from the bot itself.
	if s != nil && s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	trimmed := strings.TrimSpace(input.Message())

	// A dialog answer is not a command, unless the user typed one to leave the dialog.
	if a.router != nil && a.router.Deliver(m.Message) && !a.isCommand(trimmed) {
		return
	}

	var enqueueErr error
	if a.config.HelpCommand != "" && trimmed == a.config.HelpCommand {
		enqueueErr = enqueueInput(sarah.NewHelpInput(input))
	} else if a.config.AbortCommand != "" && trimmed == a.config.AbortCommand {
		enqueueErr = enqueueInput(sarah.NewAbortInput(input))
	} else {
		enqueueErr = enqueueInput(input)
	}
	if enqueueErr != nil {
		logger.Errorf("Failed to enqueue input: %+v", enqueueErr)
	}
}

func (a *Adapter) isCommand(text string) bool {
	return a.config.CommandPrefix != "" && strings.HasPrefix(text, a.config.CommandPrefix)
}

func (a *Adapter) handleMemberJoin(ctx context.Context, m *discordgo.GuildMemberAdd) {
	if a.onMemberJoin == nil || m.Member == nil || m.Member.User == nil {
		return
	}

	if m.Member.User.Bot {
		logger.Debugf("Skipping joined bot account %s", m.Member.User.ID)
		return
	}

	logger.Infof("Member %s joined guild %s", m.Member.User.ID, m.GuildID)
	go a.onMemberJoin(ctx, m.Member)
}

// SendMessage sends the given message to Discord.
func (a *Adapter) SendMessage(_ context.Context, output sarah.Output) {
	destination, ok := output.Destination().(ChannelID)
	if !ok {
		logger.Errorf("Destination is not instance of ChannelID. %#v.", output.Destination())
		return
	}

	channelID := string(destination)

	switch content := output.Content().(type) {
	case string:
		_, err := a.session.ChannelMessageSend(channelID, content)
		if err != nil {
			logger.Errorf("Failed to send message to %s: %+v", channelID, err)
		}

	case *discordgo.MessageSend:
		_, err := a.session.ChannelMessageSendComplex(channelID, content)
		if err != nil {
			logger.Errorf("Failed to send complex message to %s: %+v", channelID, err)
		}

	case *sarah.CommandHelps:
		lines := make([]string, 0, len(*content))
		for _, h := range *content {
			lines = append(lines, fmt.Sprintf("**%s**: %s", h.Identifier, h.Instruction))
		}
		text := strings.Join(lines, "\n")
		_, err := a.session.ChannelMessageSend(channelID, text)
		if err != nil {
			logger.Errorf("Failed to send help message to %s: %+v", channelID, err)
		}

	default:
		logger.Warnf("Unexpected output %#v", output)
	}
}

// Input is a sarah.Input implementation that represents a received Discord message.
type Input struct {
	Event     *discordgo.MessageCreate
	senderKey string
	text      string
	sentAt    time.Time
	channelID ChannelID
}

var _ sarah.Input = (*Input)(nil)

// SenderKey returns a unique key representing the sender in the channel.
func (i *Input) SenderKey() string {
	return i.senderKey
}

// Message returns the received text.
func (i *Input) Message() string {
	return i.text
}

// SentAt returns when the message was sent.
func (i *Input) SentAt() time.Time {
	return i.sentAt
}

// ReplyTo returns the Discord channel where the message was received.
func (i *Input) ReplyTo() sarah.OutputDestination {
	return i.channelID
}

// AuthorID returns the Discord user ID of the sender.
func (i *Input) AuthorID() string {
	if i.Event == nil || i.Event.Author == nil {
		return ""
	}
	return i.Event.Author.ID
}

// MessageToInput converts a *discordgo.MessageCreate event to *Input.
func MessageToInput(m *discordgo.MessageCreate) (*Input, error) {
	if m.Message == nil || m.Author == nil {
		return nil, ErrNoAuthor
	}

	return &Input{
		Event:     m,
		senderKey: fmt.Sprintf("%s_%s", m.ChannelID, m.Author.ID),
		text:      m.Content,
		sentAt:    m.Timestamp,
		channelID: ChannelID(m.ChannelID),
	}, nil
}

// NewResponse creates a *sarah.CommandResponse with the given content.
// content is either a string or a *discordgo.MessageSend, the two kinds SendMessage knows how to deliver.
func NewResponse(input sarah.Input, content interface{}) (*sarah.CommandResponse, error) {
	if _, ok := input.(*Input); !ok {
		return nil, fmt.Errorf("%T is not a *discord.Input", input)
	}

	return &sarah.CommandResponse{
		Content: content,
	}, nil
}
