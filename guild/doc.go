// Package guild resolves the configured role, channel and semester names against a Discord guild
// and performs the role changes the dialogs and commands ask for.
package guild
