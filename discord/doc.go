// Package discord provides the sarah.Adapter implementation eitbot runs on.
//
// It bridges go-sarah's bot framework with Discord using discordgo. Inbound
// Discord messages are first offered to a pending dialog wait (see
// WithInputRouter) and otherwise converted into sarah.Input, while
// sarah.Output is dispatched as Discord messages. Newly joined guild members
// are handed to an optional onboarding hook.
package discord
