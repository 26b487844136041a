// Package userinput captures the next free-text message a specific user sends in a specific channel.
//
// A Registry holds at most one pending wait per (user, channel) pair. Registering a new wait for a pair
// that already has one supersedes the older wait, which then returns ErrSuperseded and never receives a
// message. Loop builds the ask-validate-retry cycle used by onboarding dialogs on top of Registry.Wait.
package userinput
